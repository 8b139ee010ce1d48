package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MaxDownloadSize is the largest file the Bot API lets bots download.
const MaxDownloadSize = 20 << 20

// Dispatcher sends replies to a chat and fetches user-uploaded files.
type Dispatcher struct {
	b          *bot.Bot
	httpClient *http.Client
	log        *slog.Logger
}

// NewDispatcher wraps b. A nil logger uses slog.Default.
func NewDispatcher(b *bot.Bot, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		b:          b,
		httpClient: http.DefaultClient,
		log:        logger.With("component", "dispatcher"),
	}
}

func (d *Dispatcher) SendText(ctx context.Context, chatID int64, text string) error {
	if _, err := d.b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return nil
}

// SendVoice uploads opus audio as a voice note.
func (d *Dispatcher) SendVoice(ctx context.Context, chatID int64, audio []byte) error {
	_, err := d.b.SendVoice(ctx, &bot.SendVoiceParams{
		ChatID: chatID,
		Voice:  &models.InputFileUpload{Filename: "reply.ogg", Data: bytes.NewReader(audio)},
	})
	if err != nil {
		return fmt.Errorf("send voice to chat %d: %w", chatID, err)
	}
	return nil
}

// SendSticker sends sticker, which is either a path to a local image that is
// uploaded or a Telegram file id / URL passed through as is.
func (d *Dispatcher) SendSticker(ctx context.Context, chatID int64, sticker string) error {
	input, closeFn, err := inputFile(sticker)
	if err != nil {
		return fmt.Errorf("open sticker: %w", err)
	}
	defer closeFn()

	if _, err := d.b.SendSticker(ctx, &bot.SendStickerParams{ChatID: chatID, Sticker: input}); err != nil {
		return fmt.Errorf("send sticker to chat %d: %w", chatID, err)
	}
	return nil
}

// SendVideo sends a video by URL or file id.
func (d *Dispatcher) SendVideo(ctx context.Context, chatID int64, video, caption string) error {
	_, err := d.b.SendVideo(ctx, &bot.SendVideoParams{
		ChatID:  chatID,
		Video:   &models.InputFileString{Data: video},
		Caption: caption,
	})
	if err != nil {
		return fmt.Errorf("send video to chat %d: %w", chatID, err)
	}
	return nil
}

// SendPoll sends a single-choice, non-anonymous poll so answers arrive as
// poll_answer updates.
func (d *Dispatcher) SendPoll(ctx context.Context, chatID int64, question string, options []string) error {
	opts := make([]models.InputPollOption, 0, len(options))
	for _, o := range options {
		opts = append(opts, models.InputPollOption{Text: o})
	}

	_, err := d.b.SendPoll(ctx, &bot.SendPollParams{
		ChatID:                chatID,
		Question:              question,
		Options:               opts,
		IsAnonymous:           bot.False(),
		AllowsMultipleAnswers: false,
	})
	if err != nil {
		return fmt.Errorf("send poll to chat %d: %w", chatID, err)
	}
	return nil
}

// SendTyping shows the typing indicator. Failures are only logged.
func (d *Dispatcher) SendTyping(ctx context.Context, chatID int64) {
	_, err := d.b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})
	if err != nil && ctx.Err() == nil {
		d.log.DebugContext(ctx, "Typing action failed", "chat_id", chatID, "error", err)
	}
}

// DownloadFile fetches the content of a file previously uploaded to Telegram.
func (d *Dispatcher) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	f, err := d.b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", fileID, err)
	}
	if f.FileSize > MaxDownloadSize {
		return nil, fmt.Errorf("file %s is too large: %d bytes", fileID, f.FileSize)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.b.FileDownloadLink(f), nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file %s: unexpected status %d", fileID, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", fileID, err)
	}
	if len(data) > MaxDownloadSize {
		return nil, fmt.Errorf("file %s exceeds %d bytes", fileID, MaxDownloadSize)
	}

	d.log.DebugContext(ctx, "Downloaded file", "file_id", fileID, "bytes", len(data))
	return data, nil
}

func inputFile(ref string) (models.InputFile, func(), error) {
	info, err := os.Stat(ref)
	if err != nil || info.IsDir() {
		return &models.InputFileString{Data: ref}, func() {}, nil
	}

	f, err := os.Open(ref)
	if err != nil {
		return nil, nil, err
	}
	return &models.InputFileUpload{Filename: filepath.Base(ref), Data: f}, func() { _ = f.Close() }, nil
}
