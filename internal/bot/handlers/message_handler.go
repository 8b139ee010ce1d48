package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/happybot/internal/llm"
)

// NewMessageHandler returns the default handler: plain text messages go
// through the response pipeline. Other updates are ignored.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	msg := update.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" || strings.HasPrefix(text, "/") {
		log.DebugContext(ctx, "Ignoring non-text message or unknown command", "chat_id", msg.Chat.ID)
		return
	}

	chatID := msg.Chat.ID
	userID := senderID(msg)
	d := h.deps.dispatcher(b)

	stopTyping := d.KeepTyping(ctx, chatID)
	reqCtx, cancel := context.WithTimeout(ctx, h.deps.Config.AI.Timeout)
	reply, err := h.deps.Responder.Respond(reqCtx, userID, text)
	cancel()
	stopTyping()

	out := reply.Text
	if err != nil {
		logFailure(ctx, log, err, "chat_id", chatID, "user_id", userID)
		out = h.deps.Config.Messages.GeneralError
	} else {
		log.InfoContext(ctx, "Reply ready", "chat_id", chatID, "user_id", userID, "kind", reply.Kind, "topic", reply.Topic)
	}

	if err := d.SendText(ctx, chatID, out); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}

// senderID identifies the user whose session is updated; channel posts have
// no sender, so the chat stands in.
func senderID(msg *models.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return msg.Chat.ID
}

func logFailure(ctx context.Context, log *slog.Logger, err error, attrs ...any) {
	attrs = append(attrs, "error", err)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.WarnContext(ctx, "Completion timed out", attrs...)
	case llm.IsUpstream(err):
		log.ErrorContext(ctx, "Completion service failed", attrs...)
	default:
		log.ErrorContext(ctx, "Failed to generate reply", attrs...)
	}
}
