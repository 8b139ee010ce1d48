// Package speech provides transcription of voice notes and synthesis of
// spoken replies through OpenAI-compatible audio endpoints.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/edgard/happybot/internal/config"
)

// maxSpeechInput is the longest text the speech endpoint accepts.
const maxSpeechInput = 4096

// Transcriber turns audio into text. An empty result with a nil error means
// nothing could be recognized.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// Synthesizer renders text as audio suitable for a Telegram voice note.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Client implements Transcriber and Synthesizer.
type Client struct {
	client   *gopenai.Client
	sttModel string
	ttsModel string
	voice    string
	language string
	log      *slog.Logger
}

// NewClient creates a speech client from cfg.
func NewClient(cfg config.SpeechConfig, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("speech API key is required")
	}
	if log == nil {
		log = slog.Default()
	}

	clientCfg := gopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := log.With("component", "speech_client")
	logger.Info("Speech client initialized", "stt_model", cfg.STTModel, "tts_model", cfg.TTSModel, "voice", cfg.Voice)

	return &Client{
		client:   gopenai.NewClientWithConfig(clientCfg),
		sttModel: cfg.STTModel,
		ttsModel: cfg.TTSModel,
		voice:    cfg.Voice,
		language: cfg.Language,
		log:      logger,
	}, nil
}

// Transcribe sends audio (e.g. format "ogg" for Telegram voice notes) to the
// transcription endpoint.
func (c *Client) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	if format == "" {
		format = "ogg"
	}

	resp, err := c.client.CreateTranscription(ctx, gopenai.AudioRequest{
		Model:    c.sttModel,
		FilePath: "voice." + strings.TrimPrefix(format, "."),
		Reader:   bytes.NewReader(audio),
		Language: c.language,
		Format:   gopenai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	c.log.DebugContext(ctx, "Transcription finished", "audio_bytes", len(audio), "text_length", len(text))
	return text, nil
}

// Synthesize returns opus-encoded speech for text.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("nothing to synthesize")
	}
	text = truncateRunes(text, maxSpeechInput)

	resp, err := c.client.CreateSpeech(ctx, gopenai.CreateSpeechRequest{
		Model:          gopenai.SpeechModel(c.ttsModel),
		Input:          text,
		Voice:          gopenai.SpeechVoice(c.voice),
		ResponseFormat: gopenai.SpeechResponseFormatOpus,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech endpoint returned no audio")
	}

	c.log.DebugContext(ctx, "Speech synthesized", "text_length", len(text), "audio_bytes", len(audio))
	return audio, nil
}

// truncateRunes shortens text to at most limit characters, marking the cut
// with an ellipsis.
func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit-3]) + "..."
}
