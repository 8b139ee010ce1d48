// Package server exposes the HTTP surface of the bot: a health endpoint,
// the static mini app and, in webhook mode, the Telegram update endpoint.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/cors"
)

const (
	healthPath  = "/healthz"
	miniAppPath = "/miniapp"
	// WebhookPath receives Telegram updates in webhook mode.
	WebhookPath = "/telegram"

	pingTimeout = 3 * time.Second
)

// HealthChecker reports on the session backend.
type HealthChecker interface {
	Ping(ctx context.Context) error
	BackendName() string
}

// Options configures NewRouter.
type Options struct {
	Logger    *slog.Logger
	Health    HealthChecker
	StaticDir string
	// Webhook is mounted at WebhookPath when non-nil.
	Webhook http.Handler
}

type healthResponse struct {
	Status         string `json:"status"`
	SessionBackend string `json:"session_backend"`
	SessionOK      bool   `json:"session_ok"`
}

// NewRouter builds the chi router for the bot's HTTP endpoints.
func NewRouter(opts Options) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "http")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedHeaders: []string{"Content-Type", "Accept"},
	}).Handler)

	router.Get(healthPath, healthHandler(opts.Health, log))

	if opts.StaticDir != "" {
		files := http.StripPrefix(miniAppPath, http.FileServer(http.Dir(opts.StaticDir)))
		router.Get(miniAppPath, http.RedirectHandler(miniAppPath+"/", http.StatusMovedPermanently).ServeHTTP)
		router.Get(miniAppPath+"/*", files.ServeHTTP)
	}

	if opts.Webhook != nil {
		router.Post(WebhookPath, opts.Webhook.ServeHTTP)
	}

	return router
}

// New returns an http.Server listening on port.
func New(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func healthHandler(health HealthChecker, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", SessionBackend: "none"}
		if health != nil {
			resp.SessionBackend = health.BackendName()

			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			err := health.Ping(ctx)
			cancel()
			if err != nil {
				log.WarnContext(r.Context(), "Session backend ping failed", "backend", resp.SessionBackend, "error", err)
			}
			resp.SessionOK = err == nil
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.ErrorContext(r.Context(), "Failed to write health response", "error", err)
		}
	}
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.DebugContext(r.Context(), "HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
