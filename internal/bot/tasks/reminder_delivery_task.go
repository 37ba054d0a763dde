package tasks

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/relaybot/internal/config"
	"github.com/edgard/relaybot/internal/database"
	"github.com/edgard/relaybot/internal/metrics"
)

// reminderBatch caps how many reminders one run delivers; the rest wait for
// the next tick.
const reminderBatch = 100

// newReminderDeliveryTask sends every pending reminder that has come due and
// marks it sent, or failed when Telegram refuses the message.
func newReminderDeliveryTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", config.TaskReminderDelivery)

	return func(ctx context.Context) error {
		if deps.Bot == nil {
			log.DebugContext(ctx, "No bot client, leaving reminders pending")
			return nil
		}

		due, err := deps.Store.DueReminders(ctx, deps.clock().Now(), reminderBatch)
		if err != nil {
			log.ErrorContext(ctx, "Failed to load due reminders", "error", err)
			return fmt.Errorf("load due reminders: %w", err)
		}

		var sent, failed int
		for _, r := range due {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			status := database.ReminderSent
			_, err := deps.Bot.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID: r.ChatID,
				Text:   "⏰ Reminder\n\n" + r.Message,
			})
			if err != nil {
				log.WarnContext(ctx, "Failed to deliver reminder", "reminder_id", r.ID, "chat_id", r.ChatID, "error", err)
				status = database.ReminderFailed
				failed++
			} else {
				sent++
			}
			observeDelivery(deps, err)

			if err := deps.Store.FinishReminder(ctx, r.ID, status, deps.clock().Now()); err != nil {
				log.WarnContext(ctx, "Failed to update reminder status", "reminder_id", r.ID, "status", status, "error", err)
			}
		}

		if len(due) > 0 {
			log.InfoContext(ctx, "Delivered reminders", "sent", sent, "failed", failed)
		}
		return nil
	}
}

func observeDelivery(deps TaskDeps, err error) {
	if deps.Metrics == nil {
		return
	}
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	deps.Metrics.IncExternalRequest("telegram_reminders", result)
}
