// Package logger provides structured logging for HappyBot built on log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewLogger creates a slog Logger writing to stdout at levelStr ("debug",
// "info", "warn", "error"; anything else means info) and installs it as the
// default logger.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	logger := newLogger(os.Stdout, levelStr, jsonOutput)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, levelStr string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(levelStr)}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a configured level name to a slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Middleware logs every incoming update and how long its handler took.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			startTime := time.Now()

			logEntry := log.With(updateAttrs(update)...)
			logEntry.InfoContext(ctx, "Processing update")

			next(ctx, b, update)

			logEntry.InfoContext(ctx, "Finished processing update", "duration", time.Since(startTime))
		}
	}
}

func updateAttrs(update *models.Update) []any {
	attrs := []any{"update_id", update.ID}

	switch {
	case update.Message != nil:
		msg := update.Message
		attrs = append(attrs,
			"update_type", "message",
			"message_id", msg.ID,
			"chat_id", msg.Chat.ID,
		)
		if msg.From != nil {
			attrs = append(attrs, "user_id", msg.From.ID)
		}
		if msg.Voice != nil {
			attrs = append(attrs, "voice", true, "voice_duration", msg.Voice.Duration)
		} else {
			attrs = append(attrs, "text_preview", truncateString(msg.Text, 50))
		}
	case update.PollAnswer != nil:
		attrs = append(attrs,
			"update_type", "poll_answer",
			"poll_id", update.PollAnswer.PollID,
			"option_ids", update.PollAnswer.OptionIDs,
		)
		if update.PollAnswer.User != nil {
			attrs = append(attrs, "user_id", update.PollAnswer.User.ID)
		}
	case update.Poll != nil:
		attrs = append(attrs, "update_type", "poll", "poll_id", update.Poll.ID)
	default:
		attrs = append(attrs, "update_type", "other")
	}

	return attrs
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(r[:maxLen-3]) + "..."
}
