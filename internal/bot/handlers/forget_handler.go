package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewForgetHandler returns a handler for /forget, which drops the caller's
// AI conversation memory.
func NewForgetHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		deps.Assistant.Forget(update.Message.From.ID)
		deps.Logger.InfoContext(ctx, "Conversation memory cleared", "user_id", update.Message.From.ID)
		reply(ctx, b, deps, update, "Done, I forgot our conversation.")
	}
}
