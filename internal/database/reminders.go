package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const reminderColumns = `id, user_id, chat_id, message, remind_at, status, created_at, sent_at`

func (s *sqlxStore) SetUserTimezone(ctx context.Context, userID int64, zone string, now time.Time) error {
	if strings.TrimSpace(zone) == "" {
		return fmt.Errorf("timezone must not be empty")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO user_timezones (user_id, timezone, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (user_id) DO UPDATE SET
            timezone = excluded.timezone,
            updated_at = excluded.updated_at;`,
		userID, zone, dbTime(now))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error setting timezone", "user_id", userID, "timezone", zone, "error", err)
		return fmt.Errorf("failed to set timezone for user %d: %w", userID, err)
	}
	return nil
}

func (s *sqlxStore) GetUserTimezone(ctx context.Context, userID int64) (string, error) {
	var zone string
	err := s.db.GetContext(ctx, &zone, `SELECT timezone FROM user_timezones WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get timezone for user %d: %w", userID, err)
	}
	return zone, nil
}

func (s *sqlxStore) CreateReminder(ctx context.Context, reminder *Reminder) error {
	if reminder == nil || reminder.Message == "" || reminder.RemindAt.IsZero() {
		return fmt.Errorf("reminder needs a message and a time")
	}
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now()
	}
	reminder.CreatedAt = dbTime(reminder.CreatedAt)
	reminder.RemindAt = dbTime(reminder.RemindAt)
	reminder.Status = ReminderPending

	res, err := s.db.NamedExecContext(ctx, `
        INSERT INTO reminders (user_id, chat_id, message, remind_at, status, created_at)
        VALUES (:user_id, :chat_id, :message, :remind_at, :status, :created_at)`, reminder)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating reminder", "user_id", reminder.UserID, "error", err)
		return fmt.Errorf("failed to create reminder for user %d: %w", reminder.UserID, err)
	}
	if reminder.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read reminder id: %w", err)
	}
	return nil
}

func (s *sqlxStore) ListPendingReminders(ctx context.Context, userID int64, limit int) ([]Reminder, error) {
	var reminders []Reminder
	err := s.db.SelectContext(ctx, &reminders,
		`SELECT `+reminderColumns+` FROM reminders WHERE user_id = ? AND status = ? ORDER BY remind_at ASC, id ASC LIMIT ?`,
		userID, ReminderPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders for user %d: %w", userID, err)
	}
	return reminders, nil
}

func (s *sqlxStore) CountPendingReminders(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM reminders WHERE user_id = ? AND status = ?`, userID, ReminderPending); err != nil {
		return 0, fmt.Errorf("failed to count reminders for user %d: %w", userID, err)
	}
	return n, nil
}

func (s *sqlxStore) CancelReminder(ctx context.Context, userID, reminderID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET status = ? WHERE id = ? AND user_id = ? AND status = ?`,
		ReminderCancelled, reminderID, userID, ReminderPending)
	if err != nil {
		return fmt.Errorf("failed to cancel reminder %d: %w", reminderID, err)
	}
	return expectOneRow(res)
}

func (s *sqlxStore) DueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	var due []Reminder
	err := s.db.SelectContext(ctx, &due,
		`SELECT `+reminderColumns+` FROM reminders WHERE status = ? AND remind_at <= ? ORDER BY remind_at ASC, id ASC LIMIT ?`,
		ReminderPending, dbTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find due reminders: %w", err)
	}
	return due, nil
}

func (s *sqlxStore) FinishReminder(ctx context.Context, reminderID int64, status string, now time.Time) error {
	if status != ReminderSent && status != ReminderFailed {
		return fmt.Errorf("invalid final reminder status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET status = ?, sent_at = ? WHERE id = ? AND status = ?`,
		status, dbTime(now), reminderID, ReminderPending)
	if err != nil {
		return fmt.Errorf("failed to finish reminder %d: %w", reminderID, err)
	}
	return expectOneRow(res)
}

func (s *sqlxStore) PurgeReminders(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE status != ? AND created_at < ?`, ReminderPending, dbTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge reminders: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged reminders: %w", err)
	}
	return n, nil
}
