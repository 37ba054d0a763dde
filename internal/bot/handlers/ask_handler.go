package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/ai"
	"github.com/edgard/relaybot/internal/logger"
	"github.com/edgard/relaybot/internal/metrics"
	"github.com/edgard/relaybot/internal/sanitize"
)

// typingInterval is how often the typing indicator is refreshed; Telegram
// clears it after about five seconds.
const typingInterval = 4 * time.Second

// NewAskHandler returns a handler for the /ask command.
func NewAskHandler(deps HandlerDeps) bot.HandlerFunc {
	return askHandler{deps}.Handle
}

type askHandler struct {
	deps HandlerDeps
}

// promptRequired rejects commands sent without any text after them.
func promptRequired(deps HandlerDeps) Validator {
	return func(update *models.Update) string {
		if update.Message != nil && commandPayload(update.Message.Text) == "" {
			return deps.Config.Messages.ProvidePrompt
		}
		return ""
	}
}

func (h askHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	answerPrompt(ctx, b, h.deps, update, commandPayload(update.Message.Text))
}

// answerPrompt runs prompt through the assistant and replies with the answer
// or a user-facing error.
func answerPrompt(ctx context.Context, b *bot.Bot, deps HandlerDeps, update *models.Update, prompt string) {
	msg := update.Message
	log := deps.Logger.With("handler", "ask", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	if prompt == "" {
		reply(ctx, b, deps, update, deps.Config.Messages.ProvidePrompt)
		return
	}

	log.InfoContext(ctx, "Handling AI prompt", "prompt_preview", logger.Truncate(prompt, 50))

	stopTyping := keepTyping(ctx, b, deps, msg.Chat.ID)
	answer, err := deps.Assistant.Ask(ctx, msg.From.ID, displayName(msg.From), prompt)
	stopTyping()

	observeExternal(deps, deps.Assistant.Backend(), err)

	if err != nil {
		switch {
		case errors.Is(err, ai.ErrTimeout):
			log.WarnContext(ctx, "AI request timed out", "error", err)
			reply(ctx, b, deps, update, deps.Config.Messages.AITimeout)
		case errors.Is(err, ai.ErrEmptyPrompt):
			reply(ctx, b, deps, update, deps.Config.Messages.ProvidePrompt)
		default:
			log.ErrorContext(ctx, "AI request failed", "error", err)
			reply(ctx, b, deps, update, deps.Config.Messages.GeneralError)
		}
		return
	}

	text := sanitize.PlainText(answer)
	if text == "" {
		text = answer
	}
	reply(ctx, b, deps, update, text)
}

// keepTyping shows the typing indicator until the returned func is called.
func keepTyping(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			_, err := b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})
			if err != nil && ctx.Err() == nil {
				deps.Logger.DebugContext(ctx, "Failed to send typing action", "error", err, "chat_id", chatID)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func observeExternal(deps HandlerDeps, service string, err error) {
	if deps.Metrics == nil {
		return
	}
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	deps.Metrics.IncExternalRequest(service, result)
}

func displayName(u *models.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}
