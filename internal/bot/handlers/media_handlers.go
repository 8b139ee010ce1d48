package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewExerciseHandler returns a handler for the /exercise command.
func NewExerciseHandler(deps HandlerDeps) bot.HandlerFunc {
	return exerciseHandler{deps}.Handle
}

type exerciseHandler struct {
	deps HandlerDeps
}

func (h exerciseHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "exercise")

	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	media := h.deps.Config.Media

	if err := h.deps.dispatcher(b).SendVideo(ctx, chatID, media.ExerciseVideoURL, media.ExerciseCaption); err != nil {
		log.ErrorContext(ctx, "Failed to send exercise video", "error", err, "chat_id", chatID)
	}
}

// NewStickerHandler returns a handler for the /sticker command.
func NewStickerHandler(deps HandlerDeps) bot.HandlerFunc {
	return stickerHandler{deps}.Handle
}

type stickerHandler struct {
	deps HandlerDeps
}

func (h stickerHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "sticker")

	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if err := h.deps.dispatcher(b).SendSticker(ctx, chatID, h.deps.Config.Media.Sticker); err != nil {
		log.ErrorContext(ctx, "Failed to send sticker", "error", err, "chat_id", chatID, "sticker", h.deps.Config.Media.Sticker)
	}
}
