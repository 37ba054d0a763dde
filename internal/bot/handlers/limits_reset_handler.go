package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewLimitsResetHandler returns a handler for the admin /limits_reset command.
// Replying to a user's message resets that user when no ID is given.
func NewLimitsResetHandler(deps HandlerDeps) bot.HandlerFunc {
	return limitsResetHandler{deps}.Handle
}

type limitsResetHandler struct {
	deps HandlerDeps
}

func (h limitsResetHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "limits_reset")
	msg := update.Message
	if msg == nil || msg.From == nil {
		log.ErrorContext(ctx, "Limits reset handler called with nil Message or From", "update_id", update.ID)
		return
	}

	target, ok := parseID(commandArgs(msg.Text))
	if !ok && msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		target, ok = msg.ReplyToMessage.From.ID, true
	}
	if !ok {
		reply(ctx, b, h.deps, update, "Usage: /limits_reset <user_id>, or reply to the user's message.")
		return
	}

	h.deps.Limiter.ResetUser(target)
	log.InfoContext(ctx, "Admin cleared rate limits", "admin_id", msg.From.ID, "target_user_id", target)

	reply(ctx, b, h.deps, update, fmt.Sprintf(h.deps.Config.Messages.LimitsResetDone, target))
}
