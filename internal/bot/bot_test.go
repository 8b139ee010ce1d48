package bot

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/happybot/internal/config"
)

type fakeTelegram struct {
	mu          sync.Mutex
	calls       []string
	webhook     *tgbot.SetWebhookParams
	setErr      error
	returnEarly bool
}

func (f *fakeTelegram) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeTelegram) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTelegram) Start(ctx context.Context) {
	f.record("Start")
	if !f.returnEarly {
		<-ctx.Done()
	}
}

func (f *fakeTelegram) StartWebhook(ctx context.Context) {
	f.record("StartWebhook")
	<-ctx.Done()
}

func (f *fakeTelegram) SetWebhook(_ context.Context, params *tgbot.SetWebhookParams) (bool, error) {
	f.record("SetWebhook")
	f.mu.Lock()
	f.webhook = params
	f.mu.Unlock()
	return f.setErr == nil, f.setErr
}

func (f *fakeTelegram) DeleteWebhook(context.Context, *tgbot.DeleteWebhookParams) (bool, error) {
	f.record("DeleteWebhook")
	return true, nil
}

type closeCounter struct {
	mu sync.Mutex
	n  int
}

func (c *closeCounter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

func (c *closeCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func testConfig(webhookURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Telegram.WebhookURL = webhookURL
	cfg.Telegram.WebhookSecret = "s3cret"
	cfg.Telegram.DropPendingUpdates = true
	cfg.HTTP.ShutdownTimeout = time.Second
	return cfg
}

func runFor(t *testing.T, b *Bot, d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
		return nil
	}
}

func TestRunLongPolling(t *testing.T) {
	t.Parallel()

	tg := &fakeTelegram{}
	sessions := &closeCounter{}
	sched, err := NewScheduler(discardLogger(), nil, nil)
	require.NoError(t, err)

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}
	b := NewBot(discardLogger(), testConfig(""), tg, srv, sched, sessions)

	require.NoError(t, runFor(t, b, 100*time.Millisecond))
	assert.Equal(t, []string{"DeleteWebhook", "Start"}, tg.Calls())
	assert.Equal(t, 1, sessions.count())
}

func TestRunWebhook(t *testing.T) {
	t.Parallel()

	tg := &fakeTelegram{}
	sched, err := NewScheduler(discardLogger(), nil, nil)
	require.NoError(t, err)

	b := NewBot(discardLogger(), testConfig("https://bot.example.com/telegram"), tg, nil, sched, nil)

	require.NoError(t, runFor(t, b, 100*time.Millisecond))
	assert.Equal(t, []string{"SetWebhook", "StartWebhook"}, tg.Calls())
	require.NotNil(t, tg.webhook)
	assert.Equal(t, "https://bot.example.com/telegram", tg.webhook.URL)
	assert.Equal(t, "s3cret", tg.webhook.SecretToken)
	assert.True(t, tg.webhook.DropPendingUpdates)
}

func TestRunFailures(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })

	tests := []struct {
		name    string
		tg      *fakeTelegram
		webhook string
		server  *http.Server
		wantErr string
	}{
		{
			name:    "webhook registration fails",
			tg:      &fakeTelegram{setErr: errors.New("bad url")},
			webhook: "https://bot.example.com/telegram",
			wantErr: "failed to set telegram webhook",
		},
		{
			name:    "listener stops on its own",
			tg:      &fakeTelegram{returnEarly: true},
			wantErr: "stopped unexpectedly",
		},
		{
			name:    "port already in use",
			tg:      &fakeTelegram{},
			server:  &http.Server{Addr: busy.Addr().String(), ReadHeaderTimeout: time.Second},
			wantErr: "http server failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sched, err := NewScheduler(discardLogger(), nil, nil)
			require.NoError(t, err)
			sessions := &closeCounter{}

			b := NewBot(discardLogger(), testConfig(tt.webhook), tt.tg, tt.server, sched, sessions)
			err = runFor(t, b, 2*time.Second)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.Equal(t, 1, sessions.count())
		})
	}
}
