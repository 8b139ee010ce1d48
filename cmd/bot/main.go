// Package main contains the entrypoint for the HappyBot Telegram bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/happybot/internal/bot"
	"github.com/edgard/happybot/internal/bot/handlers"
	"github.com/edgard/happybot/internal/bot/tasks"
	"github.com/edgard/happybot/internal/config"
	"github.com/edgard/happybot/internal/llm"
	"github.com/edgard/happybot/internal/logger"
	"github.com/edgard/happybot/internal/pipeline"
	"github.com/edgard/happybot/internal/prompt"
	"github.com/edgard/happybot/internal/server"
	"github.com/edgard/happybot/internal/session"
	"github.com/edgard/happybot/internal/speech"
	"github.com/edgard/happybot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	// Open never fails; an unreachable store degrades to memory.
	sessions := session.Open(ctx, cfg.Session.URL, log)

	completer, err := llm.New(ctx, cfg.AI, log)
	if err != nil {
		log.Error("Failed to initialize completion client", "provider", cfg.AI.Provider, "error", err)
		_ = sessions.Close()
		return 1
	}

	prompts, err := prompt.NewBuilder(cfg.Prompt.Templates)
	if err != nil {
		log.Error("Failed to load prompt templates", "error", err)
		_ = sessions.Close()
		return 1
	}

	respOpts := []pipeline.Option{pipeline.WithLogger(log)}
	if cfg.SpeechEnabled() {
		speechClient, err := speech.NewClient(cfg.Speech, log)
		if err != nil {
			log.Error("Failed to initialize speech client", "error", err)
			_ = sessions.Close()
			return 1
		}
		respOpts = append(respOpts, pipeline.WithTranscriber(speechClient), pipeline.WithSynthesizer(speechClient))
	} else {
		log.Info("Speech disabled, voice notes will not be transcribed")
	}
	responder := pipeline.NewResponder(completer, sessions, prompts, respOpts...)

	tDeps := tasks.TaskDeps{Logger: log, Sessions: sessions}
	if sqliteBackend, ok := sessions.Backend().(*session.SQLiteBackend); ok {
		tDeps.Store = sqliteBackend.Store()
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		_ = sessions.Close()
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		Responder: responder,
		Scheduler: sched,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), handlers.Recover(hDeps)),
		tgbot.WithDefaultHandler(handlers.NewMessageHandler(hDeps)),
	}
	if cfg.Telegram.WebhookSecret != "" {
		botOpts = append(botOpts, tgbot.WithWebhookSecretToken(cfg.Telegram.WebhookSecret))
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		_ = sessions.Close()
		return 1
	}

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		_ = sessions.Close()
		return 1
	}
	if err := telegram.PublishCommands(ctx, tg, log, cmdHandlers); err != nil {
		log.Warn("Failed to publish bot commands", "error", err)
	}

	routerOpts := server.Options{
		Logger:    log,
		Health:    sessions,
		StaticDir: cfg.HTTP.StaticDir,
	}
	if cfg.WebhookMode() {
		routerOpts.Webhook = tg.WebhookHandler()
	}
	httpServer := server.New(cfg.HTTP.Port, server.NewRouter(routerOpts))

	app := bot.NewBot(log, cfg, tg, httpServer, sched, sessions)

	log.Info("Starting bot...", "session_backend", sessions.BackendName(), "webhook", cfg.WebhookMode())
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
