// Package pipeline decides how to answer a single user utterance: the crisis
// and empathy short-circuits first, then topic classification, session
// update, prompt construction and the completion call.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/edgard/happybot/internal/prompt"
	"github.com/edgard/happybot/internal/sanitize"
	"github.com/edgard/happybot/internal/topic"
)

// Kind tells the dispatch layer which path produced a Reply.
type Kind string

const (
	KindCrisis        Kind = "crisis"
	KindEmpathy       Kind = "empathy"
	KindAI            Kind = "ai"
	KindNotUnderstood Kind = "not_understood"
)

// Fixed replies for the short-circuit paths.
const (
	CrisisMessage = "I’m really sorry you’re feeling this way. " +
		"If you need help right now, please call Samaritans of Singapore at 1800-221-4444 " +
		"or visit https://www.sos.org.sg/."
	EmpathyMessage = "I understand it can be tough. I’m here for you—" +
		"would you like to talk more or hear something uplifting?"
	NotUnderstoodMessage = "Sorry, I couldn't understand your voice. Could you please try again?"
)

// Keyword lists are fixed; crisis is always checked before empathy.
var (
	crisisKeywords  = []string{"depressed", "hopeless", "suicidal", "kill myself"}
	empathyKeywords = []string{"sad", "lonely", "down", "unhappy"}
)

// Completer generates reply text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Transcriber turns audio into text; empty text means nothing recognized.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// Synthesizer renders reply text as audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SessionStore keeps the last topic per user.
type SessionStore interface {
	Get(ctx context.Context, userID int64) topic.Label
	Set(ctx context.Context, userID int64, label topic.Label) error
}

// ErrSpeechDisabled is returned by Speak when no synthesizer is configured.
var ErrSpeechDisabled = errors.New("speech synthesis is disabled")

// Reply is the outcome of one utterance.
type Reply struct {
	Kind       Kind
	Text       string
	Topic      topic.Label // set for KindAI only
	Transcript string      // set for voice input only
}

// Responder runs the response pipeline.
type Responder struct {
	completer   Completer
	sessions    SessionStore
	prompts     *prompt.Builder
	transcriber Transcriber
	synthesizer Synthesizer
	plain       *sanitize.Policy
	log         *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Responder)

// WithTranscriber enables voice input.
func WithTranscriber(t Transcriber) Option {
	return func(r *Responder) { r.transcriber = t }
}

// WithSynthesizer enables spoken replies.
func WithSynthesizer(s Synthesizer) Option {
	return func(r *Responder) { r.synthesizer = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Responder) { r.log = l }
}

// NewResponder wires the required collaborators.
func NewResponder(completer Completer, sessions SessionStore, prompts *prompt.Builder, opts ...Option) *Responder {
	r := &Responder{
		completer: completer,
		sessions:  sessions,
		prompts:   prompts,
		plain:     sanitize.NewPlainTextPolicy(),
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("component", "responder")
	return r
}

// Respond answers a text utterance from userID. Errors from the completion
// collaborator are returned wrapped; the caller decides what the user sees.
func (r *Responder) Respond(ctx context.Context, userID int64, utterance string) (Reply, error) {
	lower := strings.ToLower(utterance)

	if topic.ContainsAny(lower, crisisKeywords) {
		r.log.WarnContext(ctx, "Crisis keywords detected, sending safety message", "user_id", userID)
		return Reply{Kind: KindCrisis, Text: CrisisMessage}, nil
	}

	if topic.ContainsAny(lower, empathyKeywords) {
		r.log.InfoContext(ctx, "Distress keywords detected, sending empathy message", "user_id", userID)
		return Reply{Kind: KindEmpathy, Text: EmpathyMessage}, nil
	}

	label := topic.Classify(utterance)
	if err := r.sessions.Set(ctx, userID, label); err != nil {
		r.log.WarnContext(ctx, "Failed to update session topic", "user_id", userID, "topic", label, "error", err)
	}

	p := r.prompts.Build(label, utterance)
	r.log.DebugContext(ctx, "Requesting completion", "user_id", userID, "topic", label)

	text, err := r.completer.Complete(ctx, p)
	if err != nil {
		return Reply{}, fmt.Errorf("generate reply for topic %s: %w", label, err)
	}

	return Reply{Kind: KindAI, Text: strings.TrimSpace(text), Topic: label}, nil
}

// RespondVoice transcribes audio and answers the transcript like Respond.
// When nothing is recognized the reply is NotUnderstoodMessage.
func (r *Responder) RespondVoice(ctx context.Context, userID int64, audio []byte, format string) (Reply, error) {
	transcript := ""
	if r.transcriber == nil {
		r.log.WarnContext(ctx, "Voice message received but transcription is disabled", "user_id", userID)
	} else {
		t, err := r.transcriber.Transcribe(ctx, audio, format)
		if err != nil {
			r.log.WarnContext(ctx, "Transcription failed", "user_id", userID, "error", err)
		}
		transcript = strings.TrimSpace(t)
	}

	if transcript == "" {
		return Reply{Kind: KindNotUnderstood, Text: NotUnderstoodMessage}, nil
	}

	reply, err := r.Respond(ctx, userID, transcript)
	reply.Transcript = transcript
	return reply, err
}

// SpeechEnabled reports whether Speak can produce audio.
func (r *Responder) SpeechEnabled() bool {
	return r.synthesizer != nil
}

// Speak renders text as audio with markdown removed. Callers invoke it after
// the text reply has been delivered and only log its failure.
func (r *Responder) Speak(ctx context.Context, text string) ([]byte, error) {
	if r.synthesizer == nil {
		return nil, ErrSpeechDisabled
	}
	spoken := r.plain.PlainText(text)
	if spoken == "" {
		spoken = text
	}
	audio, err := r.synthesizer.Synthesize(ctx, spoken)
	if err != nil {
		return nil, fmt.Errorf("speak reply: %w", err)
	}
	return audio, nil
}

// LastTopic returns the topic most recently recorded for userID.
func (r *Responder) LastTopic(ctx context.Context, userID int64) topic.Label {
	return r.sessions.Get(ctx, userID)
}
