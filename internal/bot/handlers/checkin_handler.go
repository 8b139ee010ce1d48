package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewCheckinHandler returns a handler for the /checkin command. It schedules
// the weekly wellbeing poll for the chat, replacing an earlier schedule.
func NewCheckinHandler(deps HandlerDeps) bot.HandlerFunc {
	return checkinHandler{deps}.Handle
}

type checkinHandler struct {
	deps HandlerDeps
}

func (h checkinHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "checkin")

	if update.Message == nil {
		log.WarnContext(ctx, "Checkin handler received update with nil message", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID
	cfg := h.deps.Config.Checkin
	d := h.deps.dispatcher(b)

	send := func(ctx context.Context) error {
		return d.SendPoll(ctx, chatID, cfg.Question, cfg.Options)
	}

	reply := h.deps.Config.Messages.CheckinScheduled
	if err := h.deps.Scheduler.ScheduleCheckin(chatID, cfg.Schedule, send); err != nil {
		log.ErrorContext(ctx, "Failed to schedule check-in", "error", err, "chat_id", chatID)
		reply = h.deps.Config.Messages.GeneralError
	}

	if err := d.SendText(ctx, chatID, reply); err != nil {
		log.ErrorContext(ctx, "Failed to confirm check-in", "error", err, "chat_id", chatID)
	}
}
