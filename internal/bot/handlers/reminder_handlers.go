package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/database"
	"github.com/edgard/relaybot/internal/remind"
)

const (
	maxReminderLen      = 500
	maxPendingReminders = 50
	reminderListLimit   = 20
	reminderTimeLayout  = "Mon 2006-01-02 15:04"
	reminderUsage       = "Usage: /remind_me <time> <message>\n" +
		"Examples:\n" +
		"/remind_me in 30 minutes check the oven\n" +
		"/remind_me 2h stretch\n" +
		"/remind_me tomorrow 9am standup\n" +
		"/remind_me 2026-12-24 18:00 call home\n" +
		"Times use your /set_timezone zone, UTC by default."
)

// NewRemindMeHandler returns a handler for /remind_me.
func NewRemindMeHandler(deps HandlerDeps) bot.HandlerFunc {
	return reminderHandler{deps}.Create
}

// NewListRemindersHandler returns a handler for /list_reminders.
func NewListRemindersHandler(deps HandlerDeps) bot.HandlerFunc {
	return reminderHandler{deps}.List
}

// NewCancelReminderHandler returns a handler for /cancel_reminder.
func NewCancelReminderHandler(deps HandlerDeps) bot.HandlerFunc {
	return reminderHandler{deps}.Cancel
}

type reminderHandler struct {
	deps HandlerDeps
}

// reminderValidator rejects reminders whose shape is wrong in any zone.
// Past and too-far times depend on the user's zone and are checked later.
func reminderValidator(deps HandlerDeps) Validator {
	return func(update *models.Update) string {
		if update.Message == nil {
			return ""
		}
		_, err := remind.Parse(commandPayload(update.Message.Text), deps.clock().Now(), nil)
		if err == nil || errors.Is(err, remind.ErrPast) || errors.Is(err, remind.ErrTooFar) {
			return ""
		}
		return reminderProblem(err)
	}
}

func reminderProblem(err error) string {
	switch {
	case errors.Is(err, remind.ErrPast):
		return "❌ That time has already passed."
	case errors.Is(err, remind.ErrTooFar):
		return "❌ Reminders can be at most a year ahead."
	case errors.Is(err, remind.ErrNoMessage):
		return "❌ What should I remind you about?\n\n" + reminderUsage
	case errors.Is(err, remind.ErrInvalidTime):
		return "❌ That time does not exist.\n\n" + reminderUsage
	default:
		return reminderUsage
	}
}

func (h reminderHandler) Create(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := h.deps.Logger.With("handler", "remind_me", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	loc, _ := userLocation(ctx, h.deps, msg.From.ID)
	now := h.deps.clock().Now()
	req, err := remind.Parse(commandPayload(msg.Text), now, loc)
	if err != nil {
		reply(ctx, b, h.deps, update, reminderProblem(err))
		return
	}
	if utf8.RuneCountInString(req.Message) > maxReminderLen {
		reply(ctx, b, h.deps, update, fmt.Sprintf("Reminder text is limited to %d characters.", maxReminderLen))
		return
	}

	pending, err := h.deps.Store.CountPendingReminders(ctx, msg.From.ID)
	if err != nil {
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}
	if pending >= maxPendingReminders {
		reply(ctx, b, h.deps, update, fmt.Sprintf("You already have %d pending reminders. Cancel some first.", pending))
		return
	}

	reminder := &database.Reminder{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		Message:   req.Message,
		RemindAt:  req.At,
		CreatedAt: now,
	}
	if err := h.deps.Store.CreateReminder(ctx, reminder); err != nil {
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}
	log.InfoContext(ctx, "Reminder scheduled", "reminder_id", reminder.ID, "remind_at", reminder.RemindAt)

	reply(ctx, b, h.deps, update, fmt.Sprintf("⏰ Reminder #%d set for %s (%s).",
		reminder.ID, req.At.In(loc).Format(reminderTimeLayout), loc.String()))
}

func (h reminderHandler) List(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	reminders, err := h.deps.Store.ListPendingReminders(ctx, msg.From.ID, reminderListLimit)
	if err != nil {
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}
	if len(reminders) == 0 {
		reply(ctx, b, h.deps, update, "You have no pending reminders. Set one with /remind_me.")
		return
	}

	loc, _ := userLocation(ctx, h.deps, msg.From.ID)
	var sb strings.Builder
	fmt.Fprintf(&sb, "⏰ Pending reminders (%s):\n", loc.String())
	for _, r := range reminders {
		fmt.Fprintf(&sb, "#%d %s - %s\n", r.ID, r.RemindAt.In(loc).Format(reminderTimeLayout), r.Message)
	}
	sb.WriteString("\nCancel one with /cancel_reminder <id>.")
	reply(ctx, b, h.deps, update, sb.String())
}

func (h reminderHandler) Cancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	id, ok := parseID(commandArgs(msg.Text))
	if !ok {
		reply(ctx, b, h.deps, update, "Usage: /cancel_reminder <id>")
		return
	}

	err := h.deps.Store.CancelReminder(ctx, msg.From.ID, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.NotFound)
	case err != nil:
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
	default:
		reply(ctx, b, h.deps, update, fmt.Sprintf("Cancelled reminder #%d.", id))
	}
}
