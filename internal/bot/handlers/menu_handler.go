package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// menuPrefix starts the callback data of every menu button.
const menuPrefix = "menu:"

type menuTopic struct {
	key   string
	label string
	text  string
}

var menuTopics = []menuTopic{
	{"ai", "AI", "/ask <question> asks the assistant. In private chats any text works too, and it remembers the last few exchanges.\n/draw <prompt> generates an image."},
	{"crypto", "Crypto", "/price <symbol> shows the USD price, 24h change and market cap. Prices are cached for a short while.\n/convert <amount> <from> <to> converts between crypto and fiat, e.g. /convert 100 EUR BTC."},
	{"casino", "Casino", "/mines <mines> <diamonds> computes the Mines multiplier and win chance.\n/mines_target <multiplier> finds the closest boards.\n/b2b <base> <multiplier> <increase%> prints a back-to-back progression."},
	{"todo", "Todo", "/todo lists your items.\n/todo_add <text> adds one, /todo_done <id> checks it off and /todo_remove <id> deletes it.\n/todo_stats shows your progress."},
	{"reminders", "Reminders", "/remind_me <time> <message> schedules a reminder, e.g. /remind_me in 30 minutes tea or /remind_me tomorrow 9am standup.\n/list_reminders shows pending ones and /cancel_reminder <id> drops one.\n/set_timezone <zone> and /my_time control which zone times are read in."},
	{"polls", "Polls", "/poll Question | Option A | Option B starts a poll in this chat. Tap a button to vote; you can change your vote until /poll_close <id> or expiry."},
}

const menuIntro = "What would you like to know about?"

// NewMenuHandler returns a handler for the /menu command.
func NewMenuHandler(deps HandlerDeps) bot.HandlerFunc {
	return menuHandler{deps}.Handle
}

// NewMenuCallbackHandler returns a handler for menu button presses.
func NewMenuCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return menuHandler{deps}.HandleCallback
}

type menuHandler struct {
	deps HandlerDeps
}

func (h menuHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	send(ctx, b, h.deps, update, menuIntro, "", mainMenuKeyboard())
}

func (h menuHandler) HandleCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "menu_callback")
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	answerCallback(ctx, b, h.deps, update, "")

	msg := cq.Message.Message
	if msg == nil {
		log.DebugContext(ctx, "Menu message no longer accessible", "callback_query_id", cq.ID)
		return
	}

	key := strings.TrimPrefix(cq.Data, menuPrefix)
	text, markup := menuIntro, mainMenuKeyboard()
	if key != "main" {
		topic, ok := findTopic(key)
		if !ok {
			log.WarnContext(ctx, "Unknown menu topic", "topic", key)
			return
		}
		text = topic.text
		markup = &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Back", CallbackData: menuPrefix + "main"}},
		}}
	}

	_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to edit menu message", "error", err, "chat_id", msg.Chat.ID)
	}
}

func findTopic(key string) (menuTopic, bool) {
	for _, t := range menuTopics {
		if t.key == key {
			return t, true
		}
	}
	return menuTopic{}, false
}

func mainMenuKeyboard() *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for _, t := range menuTopics {
		row = append(row, models.InlineKeyboardButton{Text: t.label, CallbackData: menuPrefix + t.key})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
