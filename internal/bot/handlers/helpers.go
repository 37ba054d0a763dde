package handlers

import (
	"context"
	"strings"
	"unicode/utf8"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// maxMessageLen is Telegram's limit for one text message.
const maxMessageLen = 4096

// sender returns the user behind a message or callback update.
func sender(update *models.Update) *models.User {
	switch {
	case update.Message != nil:
		return update.Message.From
	case update.CallbackQuery != nil:
		return &update.CallbackQuery.From
	default:
		return nil
	}
}

// chatID returns the chat an update belongs to, 0 when unknown.
func chatID(update *models.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil:
		if m := update.CallbackQuery.Message.Message; m != nil {
			return m.Chat.ID
		}
		if m := update.CallbackQuery.Message.InaccessibleMessage; m != nil {
			return m.Chat.ID
		}
	}
	return 0
}

// reply sends plain text to the update's chat, quoting the triggering message
// when there is one. Long texts are split.
func reply(ctx context.Context, b *tgbot.Bot, deps HandlerDeps, update *models.Update, text string) {
	send(ctx, b, deps, update, text, "", nil)
}

func send(ctx context.Context, b *tgbot.Bot, deps HandlerDeps, update *models.Update, text string, mode models.ParseMode, markup models.ReplyMarkup) {
	id := chatID(update)
	if id == 0 {
		return
	}

	var replyTo *models.ReplyParameters
	if update.Message != nil {
		replyTo = &models.ReplyParameters{MessageID: update.Message.ID, AllowSendingWithoutReply: true}
	}

	chunks := splitMessage(text, maxMessageLen)
	for i, chunk := range chunks {
		params := &tgbot.SendMessageParams{
			ChatID:          id,
			Text:            chunk,
			ParseMode:       mode,
			ReplyParameters: replyTo,
		}
		if i == len(chunks)-1 {
			params.ReplyMarkup = markup
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			deps.Logger.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", id)
			return
		}
		replyTo = nil
	}
}

// answerCallback acknowledges a callback query so the client stops its
// spinner. It does nothing for other updates.
func answerCallback(ctx context.Context, b *tgbot.Bot, deps HandlerDeps, update *models.Update, text string) {
	if update.CallbackQuery == nil {
		return
	}
	_, err := b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: update.CallbackQuery.ID,
		Text:            text,
	})
	if err != nil {
		deps.Logger.WarnContext(ctx, "Failed to answer callback query", "error", err)
	}
}

// commandPayload returns the text after the command word.
func commandPayload(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	i := strings.IndexFunc(text, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' })
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}

// commandArgs splits the command payload on whitespace.
func commandArgs(text string) []string {
	return strings.Fields(commandPayload(text))
}

// splitMessage cuts text into chunks of at most limit bytes, preferring line
// breaks and never splitting a UTF-8 sequence.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
