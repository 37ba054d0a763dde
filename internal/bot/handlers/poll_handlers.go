package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/database"
)

const (
	// PollDuration is how long a poll accepts votes before the expiry task
	// closes it.
	PollDuration = 24 * time.Hour

	pollPrefix     = "poll:"
	minPollOptions = 2
	maxPollOptions = 10
	maxQuestionLen = 300
	maxOptionLen   = 100
	pollUsage      = "Usage: /poll Question | Option A | Option B [| more options]"
)

// NewPollHandler returns a handler for /poll.
func NewPollHandler(deps HandlerDeps) bot.HandlerFunc {
	return pollHandler{deps}.Create
}

// NewPollCloseHandler returns a handler for /poll_close.
func NewPollCloseHandler(deps HandlerDeps) bot.HandlerFunc {
	return pollHandler{deps}.Close
}

// NewPollVoteHandler returns a handler for poll button presses.
func NewPollVoteHandler(deps HandlerDeps) bot.HandlerFunc {
	return pollHandler{deps}.Vote
}

type pollHandler struct {
	deps HandlerDeps
}

// pollValidator rejects /poll payloads that parsePoll would refuse.
func pollValidator(update *models.Update) string {
	if update.Message == nil {
		return ""
	}
	if _, _, problem := parsePoll(commandPayload(update.Message.Text)); problem != "" {
		return problem + "\n\n" + pollUsage
	}
	return ""
}

func (h pollHandler) Create(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := h.deps.Logger.With("handler", "poll", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	question, options, problem := parsePoll(commandPayload(msg.Text))
	if problem != "" {
		reply(ctx, b, h.deps, update, problem+"\n\n"+pollUsage)
		return
	}

	now := h.deps.clock().Now()
	poll := &database.Poll{
		ChatID:    msg.Chat.ID,
		CreatorID: msg.From.ID,
		Question:  question,
		Options:   options,
		CreatedAt: now,
		ExpiresAt: now.Add(PollDuration),
	}
	if err := h.deps.Store.CreatePoll(ctx, poll); err != nil {
		log.ErrorContext(ctx, "Failed to create poll", "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}

	text, markup := RenderPoll(&database.PollResults{Poll: poll, Counts: make([]int, len(options))})
	sent, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      msg.Chat.ID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send poll message", "poll_id", poll.ID, "error", err)
		return
	}
	if err := h.deps.Store.SetPollMessage(ctx, poll.ID, sent.ID); err != nil {
		log.ErrorContext(ctx, "Failed to store poll message id", "poll_id", poll.ID, "error", err)
	}
	log.InfoContext(ctx, "Poll created", "poll_id", poll.ID, "options", len(options))
}

func (h pollHandler) Close(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := h.deps.Logger.With("handler", "poll_close", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	id, ok := parseID(commandArgs(msg.Text))
	if !ok {
		h.replyActivePolls(ctx, b, update)
		return
	}

	poll, err := h.deps.Store.GetPoll(ctx, id)
	if errors.Is(err, database.ErrNotFound) || (err == nil && poll.ChatID != msg.Chat.ID) {
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.NotFound)
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to load poll", "poll_id", id, "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}
	if poll.CreatorID != msg.From.ID && !h.deps.Config.IsAdmin(msg.From.ID) {
		reply(ctx, b, h.deps, update, "Only the poll creator can close it.")
		return
	}

	err = h.deps.Store.ClosePoll(ctx, id, h.deps.clock().Now())
	switch {
	case errors.Is(err, database.ErrPollClosed):
		reply(ctx, b, h.deps, update, "That poll is already closed.")
		return
	case err != nil:
		log.ErrorContext(ctx, "Failed to close poll", "poll_id", id, "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}

	res, err := h.deps.Store.GetPollResults(ctx, id)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load poll results", "poll_id", id, "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}
	if err := EditPollMessage(ctx, b, res); err != nil {
		log.WarnContext(ctx, "Failed to update poll message", "poll_id", id, "error", err)
	}
	text, _ := RenderPoll(res)
	reply(ctx, b, h.deps, update, text)
}

func (h pollHandler) replyActivePolls(ctx context.Context, b *bot.Bot, update *models.Update) {
	polls, err := h.deps.Store.ListActivePolls(ctx, update.Message.Chat.ID)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to list active polls", "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}
	if len(polls) == 0 {
		reply(ctx, b, h.deps, update, "There are no active polls in this chat.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Usage: /poll_close <id>\n\nActive polls:\n")
	for _, p := range polls {
		fmt.Fprintf(&sb, "#%d %s\n", p.ID, p.Question)
	}
	reply(ctx, b, h.deps, update, strings.TrimRight(sb.String(), "\n"))
}

func (h pollHandler) Vote(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	log := h.deps.Logger.With("handler", "poll_vote", "user_id", cq.From.ID, "data", cq.Data)

	pollID, option, ok := parseVoteData(cq.Data)
	if !ok {
		log.WarnContext(ctx, "Malformed poll callback data")
		answerCallback(ctx, b, h.deps, update, "Unknown action.")
		return
	}

	err := h.deps.Store.CastVote(ctx, pollID, cq.From.ID, option, h.deps.clock().Now())
	switch {
	case errors.Is(err, database.ErrPollClosed):
		answerCallback(ctx, b, h.deps, update, "This poll is closed.")
		return
	case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrInvalidOption):
		answerCallback(ctx, b, h.deps, update, "This poll no longer exists.")
		return
	case err != nil:
		log.ErrorContext(ctx, "Failed to record vote", "error", err)
		answerCallback(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}
	answerCallback(ctx, b, h.deps, update, "Vote recorded.")

	res, err := h.deps.Store.GetPollResults(ctx, pollID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load poll results", "error", err)
		return
	}
	if err := EditPollMessage(ctx, b, res); err != nil {
		log.WarnContext(ctx, "Failed to update poll message", "error", err)
	}
}

// RenderPoll formats poll results. Active polls get a voting keyboard,
// closed polls get none.
func RenderPoll(res *database.PollResults) (string, *models.InlineKeyboardMarkup) {
	p := res.Poll

	var sb strings.Builder
	status := "📊"
	if p.Status == database.PollClosed {
		status = "🔒"
	}
	fmt.Fprintf(&sb, "%s Poll #%d: %s\n\n", status, p.ID, p.Question)
	for i, opt := range p.Options {
		count := 0
		if i < len(res.Counts) {
			count = res.Counts[i]
		}
		pct := 0
		if res.Total > 0 {
			pct = count * 100 / res.Total
		}
		fmt.Fprintf(&sb, "%d. %s: %d (%d%%)\n", i+1, opt, count, pct)
	}
	fmt.Fprintf(&sb, "\nTotal votes: %d", res.Total)
	if p.Status == database.PollClosed {
		sb.WriteString("\nThis poll is closed.")
		return sb.String(), nil
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(p.Options))
	for i, opt := range p.Options {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         opt,
			CallbackData: fmt.Sprintf("%s%d:%d", pollPrefix, p.ID, i),
		}})
	}
	return sb.String(), &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// EditPollMessage refreshes the poll's chat message with res.
func EditPollMessage(ctx context.Context, b *bot.Bot, res *database.PollResults) error {
	p := res.Poll
	if p.MessageID == 0 {
		return nil
	}

	text, markup := RenderPoll(res)
	params := &bot.EditMessageTextParams{
		ChatID:    p.ChatID,
		MessageID: p.MessageID,
		Text:      text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := b.EditMessageText(ctx, params); err != nil {
		// Telegram rejects edits that change nothing.
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("failed to edit poll %d message: %w", p.ID, err)
	}
	return nil
}

// parsePoll splits "Question | A | B". problem is a user-facing reason when
// the input is unusable.
func parsePoll(payload string) (question string, options []string, problem string) {
	parts := strings.Split(payload, "|")
	question = strings.TrimSpace(parts[0])
	if question == "" {
		return "", nil, "The poll needs a question."
	}
	if utf8.RuneCountInString(question) > maxQuestionLen {
		return "", nil, fmt.Sprintf("The question is limited to %d characters.", maxQuestionLen)
	}

	for _, p := range parts[1:] {
		opt := strings.TrimSpace(p)
		if opt == "" {
			continue
		}
		if utf8.RuneCountInString(opt) > maxOptionLen {
			return "", nil, fmt.Sprintf("Options are limited to %d characters.", maxOptionLen)
		}
		options = append(options, opt)
	}
	if len(options) < minPollOptions || len(options) > maxPollOptions {
		return "", nil, fmt.Sprintf("A poll needs between %d and %d options.", minPollOptions, maxPollOptions)
	}
	return question, options, ""
}

// parseVoteData decodes "poll:<id>:<option>".
func parseVoteData(data string) (int64, int, bool) {
	rest, ok := strings.CutPrefix(data, pollPrefix)
	if !ok {
		return 0, 0, false
	}
	idStr, optStr, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, false
	}
	opt, err := strconv.Atoi(optStr)
	if err != nil || opt < 0 {
		return 0, 0, false
	}
	return id, opt, true
}
