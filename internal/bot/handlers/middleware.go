// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"runtime/debug"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Recover stops a panicking handler from taking the process down. The panic
// is logged and, when the update came from a chat, the user gets the general
// error message.
func Recover(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				log := deps.Logger.With("middleware", "Recover")
				log.ErrorContext(ctx, "Handler panicked", "panic", r, "update_id", update.ID, "stack", string(debug.Stack()))

				if update.Message == nil || bot == nil {
					return
				}
				chatID := update.Message.Chat.ID
				if err := deps.dispatcher(bot).SendText(ctx, chatID, deps.Config.Messages.GeneralError); err != nil {
					log.ErrorContext(ctx, "Failed to send error message", "error", err, "chat_id", chatID)
				}
			}()

			next(ctx, bot, update)
		}
	}
}
