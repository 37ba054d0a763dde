package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUserTimezone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := s.GetUserTimezone(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUserTimezone(unset) error = %v, want ErrNotFound", err)
	}
	if err := s.SetUserTimezone(ctx, 1, "", now); err == nil {
		t.Fatal("SetUserTimezone(empty) succeeded")
	}

	for _, zone := range []string{"Europe/Lisbon", "Asia/Tokyo"} {
		if err := s.SetUserTimezone(ctx, 1, zone, now); err != nil {
			t.Fatalf("SetUserTimezone(%q) error = %v", zone, err)
		}
	}
	got, err := s.GetUserTimezone(ctx, 1)
	if err != nil || got != "Asia/Tokyo" {
		t.Fatalf("GetUserTimezone() = %q, %v", got, err)
	}
}

func TestReminderLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mk := func(user int64, msg string, at time.Time) *Reminder {
		r := &Reminder{UserID: user, ChatID: 500, Message: msg, RemindAt: at, CreatedAt: now}
		if err := s.CreateReminder(ctx, r); err != nil {
			t.Fatalf("CreateReminder(%q) error = %v", msg, err)
		}
		if r.ID == 0 || r.Status != ReminderPending {
			t.Fatalf("CreateReminder() left %+v", r)
		}
		return r
	}
	later := mk(1, "later", now.Add(2*time.Hour))
	soon := mk(1, "soon", now.Add(time.Minute))
	other := mk(2, "other user", now.Add(time.Minute))

	if err := s.CreateReminder(ctx, &Reminder{UserID: 1, ChatID: 500}); err == nil {
		t.Fatal("CreateReminder(empty) succeeded")
	}

	pending, err := s.ListPendingReminders(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListPendingReminders() error = %v", err)
	}
	if len(pending) != 2 || pending[0].ID != soon.ID || pending[1].ID != later.ID {
		t.Fatalf("pending = %+v", pending)
	}
	if n, err := s.CountPendingReminders(ctx, 1); err != nil || n != 2 {
		t.Fatalf("CountPendingReminders() = %d, %v", n, err)
	}

	if err := s.CancelReminder(ctx, 1, other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CancelReminder(other user) error = %v, want ErrNotFound", err)
	}
	if err := s.CancelReminder(ctx, 1, later.ID); err != nil {
		t.Fatalf("CancelReminder() error = %v", err)
	}
	if err := s.CancelReminder(ctx, 1, later.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CancelReminder(twice) error = %v, want ErrNotFound", err)
	}

	due, err := s.DueReminders(ctx, now, 10)
	if err != nil || len(due) != 0 {
		t.Fatalf("DueReminders(early) = %+v, %v", due, err)
	}
	due, err = s.DueReminders(ctx, now.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("DueReminders() error = %v", err)
	}
	if len(due) != 2 || due[0].ID != soon.ID || due[1].ID != other.ID {
		t.Fatalf("due = %+v", due)
	}

	if err := s.FinishReminder(ctx, soon.ID, ReminderPending, now); err == nil {
		t.Fatal("FinishReminder(pending) succeeded")
	}
	if err := s.FinishReminder(ctx, soon.ID, ReminderSent, now); err != nil {
		t.Fatalf("FinishReminder() error = %v", err)
	}
	if err := s.FinishReminder(ctx, soon.ID, ReminderSent, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FinishReminder(twice) error = %v, want ErrNotFound", err)
	}
	if err := s.FinishReminder(ctx, other.ID, ReminderFailed, now); err != nil {
		t.Fatalf("FinishReminder(failed) error = %v", err)
	}

	if due, _ := s.DueReminders(ctx, now.Add(24*time.Hour), 10); len(due) != 0 {
		t.Fatalf("finished or cancelled reminders still due: %+v", due)
	}
	summary, err := s.GetUsageSummary(ctx, now)
	if err != nil || summary.PendingReminders != 0 {
		t.Fatalf("summary = %+v, %v", summary, err)
	}

	pendingLate := mk(3, "still pending", now.Add(48*time.Hour))
	if n, err := s.PurgeReminders(ctx, now); err != nil || n != 0 {
		t.Fatalf("PurgeReminders(at creation) = %d, %v, want 0", n, err)
	}
	n, err := s.PurgeReminders(ctx, now.Add(time.Second))
	if err != nil || n != 3 {
		t.Fatalf("PurgeReminders() = %d, %v, want 3", n, err)
	}
	if left, _ := s.ListPendingReminders(ctx, 3, 10); len(left) != 1 || left[0].ID != pendingLate.ID {
		t.Fatalf("pending reminder was purged: %+v", left)
	}
}

func TestTodoStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	stats, err := s.GetTodoStats(ctx, 1, time.Now())
	if err != nil || stats.Total() != 0 {
		t.Fatalf("GetTodoStats(empty) = %+v, %v", stats, err)
	}

	for _, text := range []string{"a", "b", "c"} {
		todo, err := s.AddTodo(ctx, 1, text)
		if err != nil {
			t.Fatalf("AddTodo() error = %v", err)
		}
		if text == "a" {
			if err := s.CompleteTodo(ctx, 1, todo.ID); err != nil {
				t.Fatalf("CompleteTodo() error = %v", err)
			}
		}
	}
	if _, err := s.AddTodo(ctx, 2, "not mine"); err != nil {
		t.Fatal(err)
	}

	stats, err = s.GetTodoStats(ctx, 1, time.Now())
	if err != nil {
		t.Fatalf("GetTodoStats() error = %v", err)
	}
	if stats.Open != 2 || stats.Completed != 1 || stats.CompletedWeek != 1 || stats.Total() != 3 {
		t.Fatalf("stats = %+v", stats)
	}

	stats, _ = s.GetTodoStats(ctx, 1, time.Now().Add(30*24*time.Hour))
	if stats.CompletedWeek != 0 {
		t.Fatalf("completed_week a month later = %d, want 0", stats.CompletedWeek)
	}
}
