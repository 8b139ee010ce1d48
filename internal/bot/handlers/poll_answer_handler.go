package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewPollAnswerHandler acknowledges answers to the check-in poll.
func NewPollAnswerHandler(deps HandlerDeps) bot.HandlerFunc {
	return pollAnswerHandler{deps}.Handle
}

type pollAnswerHandler struct {
	deps HandlerDeps
}

func (h pollAnswerHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "poll_answer")

	answer := update.PollAnswer
	if answer == nil {
		return
	}

	var chatID int64
	switch {
	case answer.User != nil:
		chatID = answer.User.ID
	case answer.VoterChat != nil:
		chatID = answer.VoterChat.ID
	default:
		log.WarnContext(ctx, "Poll answer without voter", "poll_id", answer.PollID)
		return
	}

	log.InfoContext(ctx, "Received check-in answer", "poll_id", answer.PollID, "chat_id", chatID, "option_ids", answer.OptionIDs)

	if err := h.deps.dispatcher(b).SendText(ctx, chatID, h.deps.Config.Messages.PollThanks); err != nil {
		log.ErrorContext(ctx, "Failed to acknowledge poll answer", "error", err, "chat_id", chatID)
	}
}
