package handlers

import (
	"log/slog"

	"github.com/go-telegram/bot"

	"github.com/edgard/happybot/internal/bot/tasks"
	"github.com/edgard/happybot/internal/config"
	"github.com/edgard/happybot/internal/pipeline"
	"github.com/edgard/happybot/internal/telegram"
)

// CheckinScheduler registers the weekly check-in job of a chat.
type CheckinScheduler interface {
	ScheduleCheckin(chatID int64, schedule string, send tasks.ScheduledTaskFunc) error
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Responder *pipeline.Responder
	Scheduler CheckinScheduler
}

func (d HandlerDeps) dispatcher(b *bot.Bot) *telegram.Dispatcher {
	return telegram.NewDispatcher(b, d.Logger)
}
