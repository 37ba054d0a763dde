package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })

	return NewStore(db, nil)
}

func TestMigrationsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		db, err := NewDB(path)
		if err != nil {
			t.Fatalf("NewDB() run %d error = %v", i, err)
		}
		CloseDB(db)
	}
}

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"storage.db":                     "storage.db",
		"file:storage.db":                "storage.db",
		"file:data/my%20bot.db?cache=on": "data/my bot.db",
	}
	for in, want := range tests {
		if got := ExtractDBNameFromPath(in); got != want {
			t.Errorf("ExtractDBNameFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUserStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.GetUserStats(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUserStats(unknown) error = %v, want ErrNotFound", err)
	}

	first := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	if err := s.UpsertUser(ctx, &User{UserID: 1, Username: "alice", LastSeenAt: first}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	later := first.Add(time.Hour)
	if err := s.UpsertUser(ctx, &User{UserID: 1, Username: "alice2", LastSeenAt: later}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	for _, cmd := range []string{"ask", "ask", "price"} {
		if err := s.RecordCommand(ctx, 1, 100, cmd); err != nil {
			t.Fatalf("RecordCommand() error = %v", err)
		}
	}

	stats, err := s.GetUserStats(ctx, 1)
	if err != nil {
		t.Fatalf("GetUserStats() error = %v", err)
	}
	if stats.User.Username != "alice2" {
		t.Errorf("Username = %q, want alice2", stats.User.Username)
	}
	if !stats.User.FirstSeenAt.Equal(first) || !stats.User.LastSeenAt.Equal(later) {
		t.Errorf("seen = %v / %v, want %v / %v", stats.User.FirstSeenAt, stats.User.LastSeenAt, first, later)
	}
	if stats.TotalCommands != 3 {
		t.Errorf("TotalCommands = %d, want 3", stats.TotalCommands)
	}
	if len(stats.TopCommands) != 2 || stats.TopCommands[0] != (CommandCount{Command: "ask", Count: 2}) {
		t.Errorf("TopCommands = %+v", stats.TopCommands)
	}
}

func TestUsageSummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now()
	if err := s.UpsertUser(ctx, &User{UserID: 1, LastSeenAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertUser(ctx, &User{UserID: 2, LastSeenAt: now.Add(-48 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordCommand(ctx, 1, 1, "todo_add"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTodo(ctx, 1, "milk"); err != nil {
		t.Fatal(err)
	}

	sum, err := s.GetUsageSummary(ctx, now)
	if err != nil {
		t.Fatalf("GetUsageSummary() error = %v", err)
	}
	if sum.TotalUsers != 2 || sum.ActiveUsers24h != 1 {
		t.Errorf("users = %d total, %d active; want 2, 1", sum.TotalUsers, sum.ActiveUsers24h)
	}
	if sum.TotalCommands != 1 || sum.Commands24h != 1 || sum.OpenTodos != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestTodos(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.AddTodo(ctx, 1, "buy milk")
	if err != nil {
		t.Fatalf("AddTodo() error = %v", err)
	}
	b, err := s.AddTodo(ctx, 1, "walk dog")
	if err != nil {
		t.Fatalf("AddTodo() error = %v", err)
	}
	if _, err := s.AddTodo(ctx, 2, "other user"); err != nil {
		t.Fatalf("AddTodo() error = %v", err)
	}
	if _, err := s.AddTodo(ctx, 1, ""); err == nil {
		t.Fatal("AddTodo(empty) succeeded")
	}

	if err := s.CompleteTodo(ctx, 1, a.ID); err != nil {
		t.Fatalf("CompleteTodo() error = %v", err)
	}
	if err := s.CompleteTodo(ctx, 1, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CompleteTodo(done) error = %v, want ErrNotFound", err)
	}
	if err := s.RemoveTodo(ctx, 2, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("RemoveTodo(other user) error = %v, want ErrNotFound", err)
	}

	todos, err := s.ListTodos(ctx, 1)
	if err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}
	if len(todos) != 2 {
		t.Fatalf("len(todos) = %d, want 2", len(todos))
	}
	// Open items sort first.
	if todos[0].ID != b.ID || todos[0].Done || !todos[1].Done || !todos[1].CompletedAt.Valid {
		t.Fatalf("todos = %+v", todos)
	}

	if err := s.RemoveTodo(ctx, 1, b.ID); err != nil {
		t.Fatalf("RemoveTodo() error = %v", err)
	}
	todos, _ = s.ListTodos(ctx, 1)
	if len(todos) != 1 {
		t.Fatalf("len(todos) after remove = %d, want 1", len(todos))
	}
}

func TestPollLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	poll := &Poll{
		ChatID:    -100,
		CreatorID: 1,
		Question:  "Lunch?",
		Options:   []string{"Pizza", "Sushi", "Tacos"},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := s.CreatePoll(ctx, poll); err != nil {
		t.Fatalf("CreatePoll() error = %v", err)
	}
	if poll.ID == 0 {
		t.Fatal("CreatePoll() did not set ID")
	}
	if err := s.SetPollMessage(ctx, poll.ID, 77); err != nil {
		t.Fatalf("SetPollMessage() error = %v", err)
	}

	got, err := s.GetPoll(ctx, poll.ID)
	if err != nil {
		t.Fatalf("GetPoll() error = %v", err)
	}
	if got.MessageID != 77 || len(got.Options) != 3 || got.Options[1] != "Sushi" {
		t.Fatalf("GetPoll() = %+v", got)
	}

	votes := []struct {
		user   int64
		option int
	}{
		{10, 0}, {11, 1}, {12, 1}, {10, 2}, // user 10 changes their vote
	}
	for _, v := range votes {
		if err := s.CastVote(ctx, poll.ID, v.user, v.option, now); err != nil {
			t.Fatalf("CastVote(%d, %d) error = %v", v.user, v.option, err)
		}
	}
	if err := s.CastVote(ctx, poll.ID, 13, 3, now); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("CastVote(bad option) error = %v, want ErrInvalidOption", err)
	}

	res, err := s.GetPollResults(ctx, poll.ID)
	if err != nil {
		t.Fatalf("GetPollResults() error = %v", err)
	}
	if res.Total != 3 || res.Counts[0] != 0 || res.Counts[1] != 2 || res.Counts[2] != 1 {
		t.Fatalf("results = %+v", res)
	}

	active, err := s.ListActivePolls(ctx, -100)
	if err != nil || len(active) != 1 {
		t.Fatalf("ListActivePolls() = %v, %v", active, err)
	}

	if err := s.CastVote(ctx, poll.ID, 14, 0, now.Add(2*time.Hour)); !errors.Is(err, ErrPollClosed) {
		t.Fatalf("CastVote(after expiry) error = %v, want ErrPollClosed", err)
	}

	if err := s.ClosePoll(ctx, poll.ID, now); err != nil {
		t.Fatalf("ClosePoll() error = %v", err)
	}
	if err := s.ClosePoll(ctx, poll.ID, now); !errors.Is(err, ErrPollClosed) {
		t.Fatalf("ClosePoll(closed) error = %v, want ErrPollClosed", err)
	}
	if err := s.ClosePoll(ctx, 9999, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ClosePoll(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.CastVote(ctx, poll.ID, 15, 0, now); !errors.Is(err, ErrPollClosed) {
		t.Fatalf("CastVote(closed) error = %v, want ErrPollClosed", err)
	}
}

func TestCloseExpiredPolls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(q string, expires time.Time) *Poll {
		p := &Poll{ChatID: 1, CreatorID: 1, Question: q, Options: []string{"a", "b"}, CreatedAt: now.Add(-time.Hour), ExpiresAt: expires}
		if err := s.CreatePoll(ctx, p); err != nil {
			t.Fatalf("CreatePoll() error = %v", err)
		}
		return p
	}
	expired := mk("old", now.Add(-time.Minute))
	boundary := mk("boundary", now)
	fresh := mk("fresh", now.Add(time.Minute))

	closed, err := s.CloseExpiredPolls(ctx, now)
	if err != nil {
		t.Fatalf("CloseExpiredPolls() error = %v", err)
	}
	if len(closed) != 2 || closed[0].ID != expired.ID || closed[1].ID != boundary.ID {
		t.Fatalf("closed = %+v", closed)
	}
	if len(closed[0].Options) != 2 || closed[0].Status != PollClosed {
		t.Fatalf("closed poll not populated: %+v", closed[0])
	}

	p, err := s.GetPoll(ctx, fresh.ID)
	if err != nil || p.Status != PollActive {
		t.Fatalf("fresh poll = %+v, %v", p, err)
	}

	again, err := s.CloseExpiredPolls(ctx, now)
	if err != nil || len(again) != 0 {
		t.Fatalf("second CloseExpiredPolls() = %v, %v", again, err)
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := s.RunSQLMaintenance(context.Background()); err != nil {
		t.Fatalf("RunSQLMaintenance() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.RunSQLMaintenance(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunSQLMaintenance(cancelled) error = %v, want context.Canceled", err)
	}
}
