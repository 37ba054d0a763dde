package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/logger"
)

// NewDrawHandler returns a handler for the /draw command.
func NewDrawHandler(deps HandlerDeps) bot.HandlerFunc {
	return drawHandler{deps}.Handle
}

type drawHandler struct {
	deps HandlerDeps
}

func (h drawHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := h.deps.Logger.With("handler", "draw", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	prompt := commandPayload(msg.Text)
	if prompt == "" {
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.ProvidePrompt)
		return
	}
	if h.deps.Images == nil {
		log.ErrorContext(ctx, "Image generation requested but no image backend is configured")
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.ImageFailed)
		return
	}

	log.InfoContext(ctx, "Handling /draw command", "prompt_preview", logger.Truncate(prompt, 50))

	genCtx := ctx
	if t := h.deps.Config.AI.Timeout; t > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	if _, err := b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: msg.Chat.ID, Action: models.ChatActionUploadPhoto}); err != nil {
		log.DebugContext(ctx, "Failed to send upload action", "error", err)
	}

	url, err := h.deps.Images.GenerateImage(genCtx, prompt)
	observeExternal(h.deps, "openai_images", err)
	if err != nil {
		log.ErrorContext(ctx, "Image generation failed", "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.ImageFailed)
		return
	}

	_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:          msg.Chat.ID,
		Photo:           &models.InputFileString{Data: url},
		Caption:         logger.Truncate(prompt, 1000),
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID, AllowSendingWithoutReply: true},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send generated image", "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.ImageFailed)
	}
}
