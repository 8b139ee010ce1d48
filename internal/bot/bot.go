// Package bot implements lifecycle management and component orchestration
// for HappyBot: the Telegram listener, the HTTP server and the scheduler.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/happybot/internal/config"
)

// TelegramClient is the part of *tgbot.Bot the orchestrator drives.
type TelegramClient interface {
	Start(ctx context.Context)
	StartWebhook(ctx context.Context)
	SetWebhook(ctx context.Context, params *tgbot.SetWebhookParams) (bool, error)
	DeleteWebhook(ctx context.Context, params *tgbot.DeleteWebhookParams) (bool, error)
}

// SessionCloser releases the session backend on shutdown.
type SessionCloser interface {
	Close() error
}

// Bot owns the long-running components and their shutdown order.
type Bot struct {
	logger     *slog.Logger
	cfg        *config.Config
	tgBot      TelegramClient
	httpServer *http.Server
	scheduler  *Scheduler
	sessions   SessionCloser
}

// NewBot creates the orchestrator. httpServer and sessions may be nil.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	tgBot TelegramClient,
	httpServer *http.Server,
	scheduler *Scheduler,
	sessions SessionCloser,
) *Bot {
	return &Bot{
		logger:     logger.With("component", "bot_orchestrator"),
		cfg:        cfg,
		tgBot:      tgBot,
		httpServer: httpServer,
		scheduler:  scheduler,
		sessions:   sessions,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. Sessions are closed after all components have stopped.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.runTelegram(gCtx) })

	if b.httpServer != nil {
		g.Go(func() error { return b.runHTTP(gCtx) })
	}

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if b.sessions != nil {
		if cerr := b.sessions.Close(); cerr != nil {
			b.logger.Error("Failed to close session store", "error", cerr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

func (b *Bot) runTelegram(ctx context.Context) error {
	tg := b.cfg.Telegram

	if b.cfg.WebhookMode() {
		b.logger.Info("Registering Telegram webhook", "url", tg.WebhookURL)
		_, err := b.tgBot.SetWebhook(ctx, &tgbot.SetWebhookParams{
			URL:                tg.WebhookURL,
			DropPendingUpdates: tg.DropPendingUpdates,
			SecretToken:        tg.WebhookSecret,
		})
		if err != nil {
			return fmt.Errorf("failed to set telegram webhook: %w", err)
		}

		b.logger.Info("Starting Telegram webhook listener...")
		b.tgBot.StartWebhook(ctx)
	} else {
		// Long polling is rejected by Telegram while a webhook is registered.
		if _, err := b.tgBot.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{DropPendingUpdates: tg.DropPendingUpdates}); err != nil {
			b.logger.Warn("Failed to delete Telegram webhook", "error", err)
		}

		b.logger.Info("Starting Telegram long polling listener...")
		b.tgBot.Start(ctx)
	}
	b.logger.Info("Telegram bot listener stopped.")

	if ctx.Err() == nil {
		b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
		return fmt.Errorf("telegram listener stopped unexpectedly")
	}
	return nil
}

func (b *Bot) runHTTP(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		b.logger.Info("Starting HTTP server", "addr", b.httpServer.Addr)
		errCh <- b.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	b.logger.Info("Shutdown signal received, stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), b.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := b.httpServer.Shutdown(shutdownCtx); err != nil {
		b.logger.Error("Error stopping HTTP server", "error", err)
		return nil
	}
	b.logger.Info("HTTP server stopped.")
	return nil
}
