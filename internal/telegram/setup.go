// Package telegram creates the Telegram bot client, registers handlers and
// sends replies through the go-telegram/bot library.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RegisteredHandler describes one handler and how updates are routed to it.
// When Match is set it takes precedence over HandlerType and Pattern.
type RegisteredHandler struct {
	HandlerType bot.HandlerType
	Pattern     string
	MatchType   bot.MatchType
	Match       bot.MatchFunc
	Handler     bot.HandlerFunc
	Middleware  []bot.Middleware
	// Description is published with SetMyCommands; empty means the handler
	// is not a user-visible command.
	Description string
}

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created successfully", "token_prefix", tokenPrefix(token))
	return b, nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}

// applyMiddleware wraps a handler function with a slice of middleware.
// Middleware are applied in reverse order so the first one in the slice is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers command and message handlers with the Telegram bot instance.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, registeredHandlers map[string]RegisteredHandler) error {
	if b == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	if len(registeredHandlers) == 0 {
		log.Warn("No handlers provided for registration.")
		return nil
	}

	log.Info("Registering Telegram handlers...", "count", len(registeredHandlers))

	for name, regHandler := range registeredHandlers {
		if regHandler.Handler == nil {
			log.Warn("Skipping registration for nil handler", "name", name)
			continue
		}

		finalHandler := applyMiddleware(regHandler.Handler, regHandler.Middleware)
		if regHandler.Match != nil {
			b.RegisterHandlerMatchFunc(regHandler.Match, finalHandler)
		} else {
			b.RegisterHandler(regHandler.HandlerType, regHandler.Pattern, regHandler.MatchType, finalHandler)
		}
		log.Debug("Registered handler", "name", name, "pattern", regHandler.Pattern, "middleware_count", len(regHandler.Middleware))
	}

	log.Info("Registered Telegram handlers successfully", "count", len(registeredHandlers))
	return nil
}

// BotCommands returns the user-visible commands sorted by name.
func BotCommands(registeredHandlers map[string]RegisteredHandler) []models.BotCommand {
	var cmds []models.BotCommand
	for _, h := range registeredHandlers {
		if h.Description == "" || h.Pattern == "" {
			continue
		}
		cmds = append(cmds, models.BotCommand{Command: h.Pattern, Description: h.Description})
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Command < cmds[j].Command })
	return cmds
}

// PublishCommands sets the command menu shown by Telegram clients.
func PublishCommands(ctx context.Context, b *bot.Bot, logger *slog.Logger, registeredHandlers map[string]RegisteredHandler) error {
	cmds := BotCommands(registeredHandlers)
	if len(cmds) == 0 {
		return nil
	}
	if _, err := b.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: cmds}); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	logger.Info("Published bot commands", "count", len(cmds))
	return nil
}

// IsVoiceMessage matches messages carrying a voice note.
func IsVoiceMessage(update *models.Update) bool {
	return update.Message != nil && update.Message.Voice != nil
}

// IsPollAnswer matches answers to non-anonymous polls.
func IsPollAnswer(update *models.Update) bool {
	return update.PollAnswer != nil
}
