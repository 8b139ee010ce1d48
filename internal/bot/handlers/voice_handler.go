package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/happybot/internal/pipeline"
)

// NewVoiceHandler returns a handler for voice notes. The transcript is
// answered like text; model replies are also sent back as a voice note when
// speech synthesis is enabled.
func NewVoiceHandler(deps HandlerDeps) bot.HandlerFunc {
	return voiceHandler{deps}.Handle
}

type voiceHandler struct {
	deps HandlerDeps
}

func (h voiceHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "voice")

	msg := update.Message
	if msg == nil || msg.Voice == nil {
		return
	}

	chatID := msg.Chat.ID
	userID := senderID(msg)
	d := h.deps.dispatcher(b)

	stopTyping := d.KeepTyping(ctx, chatID)
	reqCtx, cancel := context.WithTimeout(ctx, h.deps.Config.AI.Timeout)

	audio, err := d.DownloadFile(reqCtx, msg.Voice.FileID)
	if err != nil {
		log.WarnContext(ctx, "Failed to download voice note", "error", err, "chat_id", chatID)
		audio = nil
	}

	reply, respErr := h.deps.Responder.RespondVoice(reqCtx, userID, audio, "ogg")
	cancel()
	stopTyping()

	out := reply.Text
	if respErr != nil {
		logFailure(ctx, log, respErr, "chat_id", chatID, "user_id", userID)
		out = h.deps.Config.Messages.GeneralError
	} else {
		log.InfoContext(ctx, "Voice reply ready", "chat_id", chatID, "user_id", userID, "kind", reply.Kind, "topic", reply.Topic)
	}

	if err := d.SendText(ctx, chatID, out); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
		return
	}

	if respErr != nil || reply.Kind != pipeline.KindAI || !h.deps.Responder.SpeechEnabled() {
		return
	}

	speech, err := h.deps.Responder.Speak(ctx, reply.Text)
	if err != nil {
		log.WarnContext(ctx, "Failed to synthesize voice reply", "error", err, "chat_id", chatID)
		return
	}
	if err := d.SendVoice(ctx, chatID, speech); err != nil {
		log.WarnContext(ctx, "Failed to send voice reply", "error", err, "chat_id", chatID)
	}
}
