package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/happybot/internal/bot/tasks"
	"github.com/edgard/happybot/internal/config"
	"github.com/edgard/happybot/internal/llm"
	"github.com/edgard/happybot/internal/pipeline"
	"github.com/edgard/happybot/internal/prompt"
	"github.com/edgard/happybot/internal/session"
	"github.com/edgard/happybot/internal/telegram"
	"github.com/edgard/happybot/internal/telegram/telegramtest"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f fakeCompleter) Complete(context.Context, string) (string, error) { return f.reply, f.err }

type fakeTranscriber struct{ text string }

func (f fakeTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	return f.text, nil
}

type fakeSynthesizer struct{ err error }

func (f fakeSynthesizer) Synthesize(context.Context, string) ([]byte, error) {
	return []byte("opus"), f.err
}

type fakeScheduler struct {
	mu       sync.Mutex
	chatID   int64
	schedule string
	send     tasks.ScheduledTaskFunc
	err      error
}

func (f *fakeScheduler) ScheduleCheckin(chatID int64, schedule string, send tasks.ScheduledTaskFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.chatID, f.schedule, f.send = chatID, schedule, send
	return nil
}

type harness struct {
	deps  HandlerDeps
	srv   *telegramtest.Server
	bot   *bot.Bot
	sched *fakeScheduler
}

func newHarness(t *testing.T, completer pipeline.Completer, opts ...pipeline.Option) *harness {
	t.Helper()

	builder, err := prompt.NewBuilder(nil)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	responder := pipeline.NewResponder(completer, session.NewStore(session.NewMemoryBackend(), log), builder, opts...)

	cfg := &config.Config{
		AI:       config.AIConfig{Timeout: 5 * time.Second},
		Messages: config.DefaultMessages,
		Checkin: config.CheckinConfig{
			Schedule: config.DefaultCheckinSchedule,
			Question: config.DefaultCheckinQuestion,
			Options:  config.DefaultCheckinOptions,
		},
		Media: config.MediaConfig{
			Sticker:          "CAACAgIAAxkBsticker",
			ExerciseVideoURL: config.DefaultMediaExerciseVideoURL,
			ExerciseCaption:  config.DefaultMediaExerciseCaption,
		},
	}

	srv := telegramtest.NewServer(t)
	sched := &fakeScheduler{}
	return &harness{
		deps:  HandlerDeps{Logger: log, Config: cfg, Responder: responder, Scheduler: sched},
		srv:   srv,
		bot:   srv.Bot(t),
		sched: sched,
	}
}

func (h *harness) sentTexts() []string {
	var out []string
	for _, c := range h.srv.Calls("sendMessage") {
		out = append(out, c.Fields["text"])
	}
	return out
}

func textUpdate(text string) *models.Update {
	return &models.Update{ID: 1, Message: &models.Message{
		ID:   1,
		Chat: models.Chat{ID: 100},
		From: &models.User{ID: 200},
		Text: text,
	}}
}

func voiceUpdate() *models.Update {
	return &models.Update{ID: 2, Message: &models.Message{
		ID:    2,
		Chat:  models.Chat{ID: 100},
		From:  &models.User{ID: 200},
		Voice: &models.Voice{FileID: "voice-1", Duration: 3},
	}}
}

func TestStartAndHelp(t *testing.T) {
	t.Parallel()
	h := newHarness(t, fakeCompleter{})
	ctx := context.Background()

	NewStartHandler(h.deps)(ctx, h.bot, textUpdate("/start"))
	NewHelpHandler(h.deps)(ctx, h.bot, textUpdate("/help"))
	NewStartHandler(h.deps)(ctx, h.bot, &models.Update{ID: 3})

	assert.Equal(t, []string{config.DefaultMessages.Welcome, config.DefaultMessages.Help}, h.sentTexts())
	assert.Equal(t, "100", h.srv.Calls("sendMessage")[0].Fields["chat_id"])
}

func TestMessageHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		completer fakeCompleter
		text      string
		want      []string
	}{
		{name: "model reply", completer: fakeCompleter{reply: "Open the Clock app."}, text: "How do I set an alarm?", want: []string{"Open the Clock app."}},
		{name: "crisis", completer: fakeCompleter{reply: "unused"}, text: "I feel hopeless", want: []string{pipeline.CrisisMessage}},
		{name: "empathy", completer: fakeCompleter{reply: "unused"}, text: "I am lonely", want: []string{pipeline.EmpathyMessage}},
		{name: "upstream failure", completer: fakeCompleter{err: &llm.UpstreamError{Provider: "openai", StatusCode: 500, Err: errors.New("boom")}}, text: "hello", want: []string{config.DefaultMessages.GeneralError}},
		{name: "unknown command ignored", completer: fakeCompleter{reply: "unused"}, text: "/unknown", want: nil},
		{name: "blank ignored", completer: fakeCompleter{reply: "unused"}, text: "   ", want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, tc.completer)

			NewMessageHandler(h.deps)(context.Background(), h.bot, textUpdate(tc.text))

			assert.Equal(t, tc.want, h.sentTexts())
		})
	}
}

func TestMessageHandlerUpdatesSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t, fakeCompleter{reply: "ok"})
	ctx := context.Background()

	NewMessageHandler(h.deps)(ctx, h.bot, textUpdate("Any drama on tv tonight?"))

	assert.Equal(t, "local_culture", string(h.deps.Responder.LastTopic(ctx, 200)))
}

func TestVoiceHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       []pipeline.Option
		noFile     bool
		wantText   string
		wantVoices int
	}{
		{
			name:       "text and voice reply",
			opts:       []pipeline.Option{pipeline.WithTranscriber(fakeTranscriber{text: "how is the weather"}), pipeline.WithSynthesizer(fakeSynthesizer{})},
			wantText:   "Sunny today.",
			wantVoices: 1,
		},
		{
			name:     "synthesis disabled",
			opts:     []pipeline.Option{pipeline.WithTranscriber(fakeTranscriber{text: "how is the weather"})},
			wantText: "Sunny today.",
		},
		{
			name:     "synthesis failure keeps text reply",
			opts:     []pipeline.Option{pipeline.WithTranscriber(fakeTranscriber{text: "how is the weather"}), pipeline.WithSynthesizer(fakeSynthesizer{err: errors.New("tts down")})},
			wantText: "Sunny today.",
		},
		{
			name:     "nothing recognized",
			opts:     []pipeline.Option{pipeline.WithTranscriber(fakeTranscriber{text: ""}), pipeline.WithSynthesizer(fakeSynthesizer{})},
			wantText: pipeline.NotUnderstoodMessage,
		},
		{
			name:     "download failure",
			opts:     []pipeline.Option{pipeline.WithTranscriber(fakeTranscriber{text: "hello"}), pipeline.WithSynthesizer(fakeSynthesizer{})},
			noFile:   true,
			wantText: pipeline.NotUnderstoodMessage,
		},
		{
			name:     "crisis by voice is text only",
			opts:     []pipeline.Option{pipeline.WithTranscriber(fakeTranscriber{text: "I feel suicidal"}), pipeline.WithSynthesizer(fakeSynthesizer{})},
			wantText: pipeline.CrisisMessage,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, fakeCompleter{reply: "Sunny today."}, tc.opts...)
			if tc.noFile {
				h.srv.Fail("getFile", "file is too old")
			} else {
				h.srv.SetResult("getFile", `{"file_id":"voice-1","file_unique_id":"u","file_size":4,"file_path":"voice/1.oga"}`)
				h.srv.AddFile("voice/1.oga", []byte("OggS"))
			}

			NewVoiceHandler(h.deps)(context.Background(), h.bot, voiceUpdate())

			assert.Equal(t, []string{tc.wantText}, h.sentTexts())
			assert.Len(t, h.srv.Calls("sendVoice"), tc.wantVoices)
		})
	}
}

func TestCheckinHandler(t *testing.T) {
	t.Parallel()
	h := newHarness(t, fakeCompleter{})
	ctx := context.Background()

	NewCheckinHandler(h.deps)(ctx, h.bot, textUpdate("/checkin"))

	assert.Equal(t, []string{config.DefaultMessages.CheckinScheduled}, h.sentTexts())
	assert.Equal(t, int64(100), h.sched.chatID)
	assert.Equal(t, config.DefaultCheckinSchedule, h.sched.schedule)

	require.NotNil(t, h.sched.send)
	require.NoError(t, h.sched.send(ctx))
	polls := h.srv.Calls("sendPoll")
	require.Len(t, polls, 1)
	assert.Equal(t, config.DefaultCheckinQuestion, polls[0].Fields["question"])
	assert.Equal(t, "100", polls[0].Fields["chat_id"])
}

func TestCheckinHandlerSchedulerError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, fakeCompleter{})
	h.sched.err = errors.New("bad cron")

	NewCheckinHandler(h.deps)(context.Background(), h.bot, textUpdate("/checkin"))

	assert.Equal(t, []string{config.DefaultMessages.GeneralError}, h.sentTexts())
}

func TestMediaHandlers(t *testing.T) {
	t.Parallel()
	h := newHarness(t, fakeCompleter{})
	ctx := context.Background()

	NewExerciseHandler(h.deps)(ctx, h.bot, textUpdate("/exercise"))
	NewStickerHandler(h.deps)(ctx, h.bot, textUpdate("/sticker"))

	videos := h.srv.Calls("sendVideo")
	require.Len(t, videos, 1)
	assert.Equal(t, config.DefaultMediaExerciseVideoURL, videos[0].Fields["video"])
	assert.Equal(t, config.DefaultMediaExerciseCaption, videos[0].Fields["caption"])

	stickers := h.srv.Calls("sendSticker")
	require.Len(t, stickers, 1)
	assert.Equal(t, "CAACAgIAAxkBsticker", stickers[0].Fields["sticker"])
}

func TestPollAnswerHandler(t *testing.T) {
	t.Parallel()
	h := newHarness(t, fakeCompleter{})

	NewPollAnswerHandler(h.deps)(context.Background(), h.bot, &models.Update{ID: 9, PollAnswer: &models.PollAnswer{
		PollID:    "p1",
		User:      &models.User{ID: 555},
		OptionIDs: []int{1},
	}})
	NewPollAnswerHandler(h.deps)(context.Background(), h.bot, &models.Update{ID: 10, PollAnswer: &models.PollAnswer{PollID: "p2"}})

	calls := h.srv.Calls("sendMessage")
	require.Len(t, calls, 1)
	assert.Equal(t, "555", calls[0].Fields["chat_id"])
	assert.Equal(t, config.DefaultMessages.PollThanks, calls[0].Fields["text"])
}

func TestRecover(t *testing.T) {
	t.Parallel()
	h := newHarness(t, fakeCompleter{})

	panicking := Recover(h.deps)(func(context.Context, *bot.Bot, *models.Update) {
		panic("nil map")
	})

	assert.NotPanics(t, func() { panicking(context.Background(), h.bot, textUpdate("hi")) })
	assert.Equal(t, []string{config.DefaultMessages.GeneralError}, h.sentTexts())
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t, fakeCompleter{})

	registered := RegisterAllCommands(h.deps)
	for _, key := range []string{"/start", "/help", "/checkin", "/exercise", "/sticker", "voice", "poll_answer"} {
		require.Contains(t, registered, key)
		assert.NotNil(t, registered[key].Handler, key)
	}
	assert.Len(t, telegram.BotCommands(registered), 5)
	assert.NotNil(t, registered["voice"].Match)
}
