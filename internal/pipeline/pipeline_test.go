package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/happybot/internal/llm"
	"github.com/edgard/happybot/internal/prompt"
	"github.com/edgard/happybot/internal/session"
	"github.com/edgard/happybot/internal/topic"
)

type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, p string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	return f.reply, f.err
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

type fakeSynthesizer struct {
	audio []byte
	err   error
}

func (f fakeSynthesizer) Synthesize(context.Context, string) ([]byte, error) {
	return f.audio, f.err
}

type recordingSynthesizer struct {
	mu   sync.Mutex
	text string
}

func (r *recordingSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = text
	return []byte("opus"), nil
}

type failingSessions struct{}

func (failingSessions) Get(context.Context, int64) topic.Label { return topic.Default }

func (failingSessions) Set(context.Context, int64, topic.Label) error {
	return errors.New("store down")
}

func newResponder(t *testing.T, c Completer, opts ...Option) (*Responder, *session.MemoryBackend) {
	t.Helper()

	builder, err := prompt.NewBuilder(nil)
	require.NoError(t, err)

	mem := session.NewMemoryBackend()
	return NewResponder(c, session.NewStore(mem, nil), builder, opts...), mem
}

func TestRespondCrisisPath(t *testing.T) {
	t.Parallel()

	utterances := []string{
		"I feel suicidal",
		"I am so DEPRESSED and lonely",
		"everything is hopeless, I want to cook nothing",
		"sometimes I want to kill myself",
	}

	for _, u := range utterances {
		t.Run(u, func(t *testing.T) {
			t.Parallel()
			c := &fakeCompleter{reply: "unused"}
			r, mem := newResponder(t, c)

			reply, err := r.Respond(context.Background(), 1, u)
			require.NoError(t, err)
			assert.Equal(t, KindCrisis, reply.Kind)
			assert.Equal(t, CrisisMessage, reply.Text)
			assert.Zero(t, c.calls())
			assert.Zero(t, mem.Len())
		})
	}
}

func TestRespondEmpathyPath(t *testing.T) {
	t.Parallel()

	utterances := []string{
		"I am so lonely today",
		"Feeling a bit SAD",
		"I'm unhappy with the weather",
	}

	for _, u := range utterances {
		t.Run(u, func(t *testing.T) {
			t.Parallel()
			c := &fakeCompleter{reply: "unused"}
			r, mem := newResponder(t, c)

			reply, err := r.Respond(context.Background(), 1, u)
			require.NoError(t, err)
			assert.Equal(t, KindEmpathy, reply.Kind)
			assert.Equal(t, EmpathyMessage, reply.Text)
			assert.Zero(t, c.calls())
			assert.Zero(t, mem.Len())
		})
	}
}

func TestRespondAIPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := &fakeCompleter{reply: "  Try setting the alarm in the Clock app.  "}
	r, _ := newResponder(t, c)

	reply, err := r.Respond(ctx, 77, "How do I set an alarm on my phone?")
	require.NoError(t, err)

	assert.Equal(t, KindAI, reply.Kind)
	assert.Equal(t, topic.TechnologyHelp, reply.Topic)
	assert.Equal(t, "Try setting the alarm in the Clock app.", reply.Text)
	assert.Equal(t, topic.TechnologyHelp, r.LastTopic(ctx, 77))

	require.Equal(t, 1, c.calls())
	assert.Contains(t, c.prompts[0], "Query: How do I set an alarm on my phone?\nResponse:")
}

func TestRespondOverwritesSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r, _ := newResponder(t, &fakeCompleter{reply: "ok"})

	_, err := r.Respond(ctx, 5, "Any events this weekend?")
	require.NoError(t, err)
	assert.Equal(t, topic.LocalCulture, r.LastTopic(ctx, 5))

	_, err = r.Respond(ctx, 5, "Let's just chat")
	require.NoError(t, err)
	assert.Equal(t, topic.GeneralConversation, r.LastTopic(ctx, 5))
}

func TestRespondPropagatesUpstreamError(t *testing.T) {
	t.Parallel()

	upstream := &llm.UpstreamError{Provider: "openai", StatusCode: 503, Err: errors.New("unavailable")}
	r, _ := newResponder(t, &fakeCompleter{err: upstream})

	_, err := r.Respond(context.Background(), 1, "What's the weather?")
	require.Error(t, err)
	assert.True(t, llm.IsUpstream(err))
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, topic.DailyLife, r.LastTopic(context.Background(), 1), "session is written before the completion call")
}

func TestRespondSessionFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	builder, err := prompt.NewBuilder(nil)
	require.NoError(t, err)
	r := NewResponder(&fakeCompleter{reply: "hello"}, failingSessions{}, builder)

	reply, err := r.Respond(context.Background(), 1, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply.Text)
}

func TestRespondVoice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		transcriber Transcriber
		wantKind    Kind
		wantCalls   int
	}{
		{name: "empty transcript", transcriber: fakeTranscriber{text: "  "}, wantKind: KindNotUnderstood},
		{name: "transcription error", transcriber: fakeTranscriber{err: errors.New("bad audio")}, wantKind: KindNotUnderstood},
		{name: "no transcriber", transcriber: nil, wantKind: KindNotUnderstood},
		{name: "recognized", transcriber: fakeTranscriber{text: "I have a headache"}, wantKind: KindAI, wantCalls: 1},
		{name: "recognized crisis", transcriber: fakeTranscriber{text: "I feel hopeless"}, wantKind: KindCrisis},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := &fakeCompleter{reply: "Rest and drink water."}
			var opts []Option
			if tc.transcriber != nil {
				opts = append(opts, WithTranscriber(tc.transcriber))
			}
			r, mem := newResponder(t, c, opts...)

			reply, err := r.RespondVoice(context.Background(), 3, []byte("ogg"), "ogg")
			require.NoError(t, err)
			assert.Equal(t, tc.wantKind, reply.Kind)
			assert.Equal(t, tc.wantCalls, c.calls())

			if tc.wantKind == KindNotUnderstood {
				assert.Equal(t, NotUnderstoodMessage, reply.Text)
				assert.Zero(t, mem.Len())
			}
			if tc.wantKind == KindAI {
				assert.Equal(t, "I have a headache", reply.Transcript)
				assert.Equal(t, topic.HealthWellness, reply.Topic)
			}
		})
	}
}

func TestRespondVoiceUpstreamError(t *testing.T) {
	t.Parallel()

	c := &fakeCompleter{err: &llm.UpstreamError{Provider: "openai", Err: errors.New("timeout")}}
	r, _ := newResponder(t, c, WithTranscriber(fakeTranscriber{text: "tell me about history"}))

	reply, err := r.RespondVoice(context.Background(), 3, []byte("ogg"), "ogg")
	require.Error(t, err)
	assert.True(t, llm.IsUpstream(err))
	assert.Equal(t, "tell me about history", reply.Transcript)
}

func TestSpeak(t *testing.T) {
	t.Parallel()

	r, _ := newResponder(t, &fakeCompleter{})
	assert.False(t, r.SpeechEnabled())
	_, err := r.Speak(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrSpeechDisabled)

	r, _ = newResponder(t, &fakeCompleter{}, WithSynthesizer(fakeSynthesizer{audio: []byte("opus")}))
	assert.True(t, r.SpeechEnabled())
	audio, err := r.Speak(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("opus"), audio)

	r, _ = newResponder(t, &fakeCompleter{}, WithSynthesizer(fakeSynthesizer{err: errors.New("tts down")}))
	_, err = r.Speak(context.Background(), "hello")
	assert.ErrorContains(t, err, "tts down")
}

func TestSpeakStripsMarkdown(t *testing.T) {
	t.Parallel()

	synth := &recordingSynthesizer{}
	r, _ := newResponder(t, &fakeCompleter{}, WithSynthesizer(synth))

	_, err := r.Speak(context.Background(), "Try **slow breathing** for a minute.")
	require.NoError(t, err)
	assert.Equal(t, "Try slow breathing for a minute.", synth.text)
}
