package handlers

import (
	"context"
	"strings"
	"unicode"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/ratelimit"
)

// NewChatHandler creates the default handler. It answers plain text in
// private chats, and in groups only when the bot is mentioned or replied to.
// Everything else is ignored without charging any rate limit.
func NewChatHandler(deps HandlerDeps) bot.HandlerFunc {
	h := chatHandler{deps: deps}
	h.answer = RateLimited(deps, ratelimit.CategoryAIRequest, h.requirePrompt)(h.handleText)
	return h.Handle
}

type chatHandler struct {
	deps   HandlerDeps
	answer bot.HandlerFunc
}

func (h chatHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if strings.HasPrefix(msg.Text, "/") {
		h.deps.Logger.DebugContext(ctx, "Ignoring unknown command", "command", commandName(msg.Text), "chat_id", msg.Chat.ID)
		return
	}
	if !h.shouldHandle(msg) {
		return
	}
	h.answer(ctx, b, update)
}

func (h chatHandler) handleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	answerPrompt(ctx, b, h.deps, update, h.prompt(update.Message))
}

// requirePrompt turns away a bare mention before it costs quota.
func (h chatHandler) requirePrompt(update *models.Update) string {
	if update.Message != nil && h.prompt(update.Message) == "" {
		return h.deps.Config.Messages.ProvidePrompt
	}
	return ""
}

func (h chatHandler) prompt(msg *models.Message) string {
	prompt := strings.TrimSpace(msg.Text)
	if msg.Chat.Type != models.ChatTypePrivate {
		prompt = h.stripMention(prompt)
	}
	return prompt
}

func (h chatHandler) shouldHandle(msg *models.Message) bool {
	if msg.Chat.Type == models.ChatTypePrivate {
		return true
	}

	info := h.deps.Config.Telegram.BotInfo
	if info == nil {
		return false
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && msg.ReplyToMessage.From.ID == info.ID {
		return true
	}
	if info.Username == "" {
		return false
	}

	mention := "@" + strings.ToLower(info.Username)
	for _, w := range strings.Fields(strings.ToLower(msg.Text)) {
		if strings.TrimRightFunc(w, unicode.IsPunct) == mention {
			return true
		}
	}
	return false
}

// stripMention removes the bot's @username from a group message.
func (h chatHandler) stripMention(text string) string {
	name := h.deps.Config.BotUsername()
	if name == "" {
		return strings.TrimSpace(text)
	}
	var kept []string
	for _, w := range strings.Fields(text) {
		if strings.EqualFold(strings.TrimRightFunc(w, unicode.IsPunct), "@"+name) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
