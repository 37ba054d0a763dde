package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when the requested row does not exist or does
	// not belong to the caller.
	ErrNotFound = errors.New("not found")
	// ErrPollClosed is returned when voting on or closing a poll that is no
	// longer active.
	ErrPollClosed = errors.New("poll is closed")
	// ErrInvalidOption is returned for a vote on an option index the poll
	// does not have.
	ErrInvalidOption = errors.New("invalid poll option")
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// UpsertUser records that a user was seen, keeping first_seen_at.
	UpsertUser(ctx context.Context, user *User) error

	// RecordCommand appends one command invocation to the usage log.
	RecordCommand(ctx context.Context, userID, chatID int64, command string) error

	// GetUserStats returns ErrNotFound for a user the bot has never seen.
	GetUserStats(ctx context.Context, userID int64) (*UserStats, error)

	// GetUsageSummary aggregates bot-wide activity relative to now.
	GetUsageSummary(ctx context.Context, now time.Time) (*UsageSummary, error)

	AddTodo(ctx context.Context, userID int64, text string) (*Todo, error)
	ListTodos(ctx context.Context, userID int64) ([]Todo, error)
	CompleteTodo(ctx context.Context, userID, todoID int64) error
	RemoveTodo(ctx context.Context, userID, todoID int64) error
	// GetTodoStats counts the user's todos; CompletedWeek covers the seven
	// days before now.
	GetTodoStats(ctx context.Context, userID int64, now time.Time) (*TodoStats, error)

	// CreatePoll stores the poll and its options and sets poll.ID.
	CreatePoll(ctx context.Context, poll *Poll) error
	SetPollMessage(ctx context.Context, pollID int64, messageID int) error
	GetPoll(ctx context.Context, pollID int64) (*Poll, error)
	ListActivePolls(ctx context.Context, chatID int64) ([]Poll, error)

	// CastVote records or changes the user's single vote on an active poll.
	CastVote(ctx context.Context, pollID, userID int64, option int, now time.Time) error
	GetPollResults(ctx context.Context, pollID int64) (*PollResults, error)
	ClosePoll(ctx context.Context, pollID int64, now time.Time) error

	// CloseExpiredPolls closes every active poll whose expires_at is not
	// after now and returns them.
	CloseExpiredPolls(ctx context.Context, now time.Time) ([]Poll, error)

	// SetUserTimezone stores an IANA zone name for the user.
	SetUserTimezone(ctx context.Context, userID int64, zone string, now time.Time) error
	// GetUserTimezone returns ErrNotFound when the user never set one.
	GetUserTimezone(ctx context.Context, userID int64) (string, error)

	// CreateReminder stores a pending reminder and sets reminder.ID.
	CreateReminder(ctx context.Context, reminder *Reminder) error
	// ListPendingReminders returns the user's pending reminders, soonest first.
	ListPendingReminders(ctx context.Context, userID int64, limit int) ([]Reminder, error)
	CountPendingReminders(ctx context.Context, userID int64) (int, error)
	// CancelReminder returns ErrNotFound unless the reminder belongs to the
	// user and is still pending.
	CancelReminder(ctx context.Context, userID, reminderID int64) error
	// DueReminders returns pending reminders whose remind_at is not after
	// now, oldest first.
	DueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error)
	// FinishReminder moves a pending reminder to status. ErrNotFound means
	// it was cancelled or finished meanwhile.
	FinishReminder(ctx context.Context, reminderID int64, status string, now time.Time) error
	// PurgeReminders deletes reminders that are no longer pending and were
	// created before cutoff. It returns how many rows went.
	PurgeReminders(ctx context.Context, cutoff time.Time) (int64, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunSQLMaintenance executes VACUUM, which SQLite requires outside a
// transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

func (s *sqlxStore) UpsertUser(ctx context.Context, user *User) error {
	if user == nil || user.UserID == 0 {
		return fmt.Errorf("user must have a non-zero user_id")
	}

	if user.LastSeenAt.IsZero() {
		user.LastSeenAt = time.Now()
	}
	user.LastSeenAt = dbTime(user.LastSeenAt)
	if user.FirstSeenAt.IsZero() {
		user.FirstSeenAt = user.LastSeenAt
	}

	query := `
        INSERT INTO users (user_id, username, first_name, last_name, first_seen_at, last_seen_at)
        VALUES (:user_id, :username, :first_name, :last_name, :first_seen_at, :last_seen_at)
        ON CONFLICT (user_id) DO UPDATE SET
            username = excluded.username,
            first_name = excluded.first_name,
            last_name = excluded.last_name,
            last_seen_at = excluded.last_seen_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, user); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting user", "user_id", user.UserID, "error", err)
		return fmt.Errorf("failed to upsert user %d: %w", user.UserID, err)
	}
	return nil
}

func (s *sqlxStore) RecordCommand(ctx context.Context, userID, chatID int64, command string) error {
	if command == "" {
		return fmt.Errorf("command must not be empty")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO command_usage (user_id, chat_id, command, used_at) VALUES (?, ?, ?, ?)`,
		userID, chatID, command, dbTime(time.Now()))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording command", "user_id", userID, "command", command, "error", err)
		return fmt.Errorf("failed to record command %q for user %d: %w", command, userID, err)
	}
	return nil
}

func (s *sqlxStore) GetUserStats(ctx context.Context, userID int64) (*UserStats, error) {
	stats := &UserStats{}

	err := s.db.GetContext(ctx, &stats.User,
		`SELECT user_id, username, first_name, last_name, first_seen_at, last_seen_at FROM users WHERE user_id = ?`,
		userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	if err := s.db.GetContext(ctx, &stats.TotalCommands,
		`SELECT COUNT(*) FROM command_usage WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("failed to count commands for user %d: %w", userID, err)
	}

	if err := s.db.SelectContext(ctx, &stats.TopCommands, `
        SELECT command, COUNT(*) AS count
        FROM command_usage
        WHERE user_id = ?
        GROUP BY command
        ORDER BY count DESC, command ASC
        LIMIT 5;`, userID); err != nil {
		return nil, fmt.Errorf("failed to get top commands for user %d: %w", userID, err)
	}

	return stats, nil
}

func (s *sqlxStore) GetUsageSummary(ctx context.Context, now time.Time) (*UsageSummary, error) {
	since := dbTime(now.Add(-24 * time.Hour))
	summary := &UsageSummary{GeneratedAt: dbTime(now)}

	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&summary.TotalUsers, `SELECT COUNT(*) FROM users`, nil},
		{&summary.ActiveUsers24h, `SELECT COUNT(*) FROM users WHERE last_seen_at >= ?`, []any{since}},
		{&summary.TotalCommands, `SELECT COUNT(*) FROM command_usage`, nil},
		{&summary.Commands24h, `SELECT COUNT(*) FROM command_usage WHERE used_at >= ?`, []any{since}},
		{&summary.OpenTodos, `SELECT COUNT(*) FROM todos WHERE done = 0`, nil},
		{&summary.ActivePolls, `SELECT COUNT(*) FROM polls WHERE status = ?`, []any{PollActive}},
		{&summary.PendingReminders, `SELECT COUNT(*) FROM reminders WHERE status = ?`, []any{ReminderPending}},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dest, c.query, c.args...); err != nil {
			return nil, fmt.Errorf("failed to build usage summary: %w", err)
		}
	}

	if err := s.db.SelectContext(ctx, &summary.TopCommands, `
        SELECT command, COUNT(*) AS count
        FROM command_usage
        GROUP BY command
        ORDER BY count DESC, command ASC
        LIMIT 10;`); err != nil {
		return nil, fmt.Errorf("failed to get top commands: %w", err)
	}

	return summary, nil
}

func (s *sqlxStore) AddTodo(ctx context.Context, userID int64, text string) (*Todo, error) {
	if text == "" {
		return nil, fmt.Errorf("todo text must not be empty")
	}

	todo := &Todo{UserID: userID, Text: text, CreatedAt: dbTime(time.Now())}
	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO todos (user_id, text, done, created_at) VALUES (:user_id, :text, 0, :created_at)`, todo)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error adding todo", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to add todo for user %d: %w", userID, err)
	}
	if todo.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read todo id: %w", err)
	}
	return todo, nil
}

func (s *sqlxStore) ListTodos(ctx context.Context, userID int64) ([]Todo, error) {
	var todos []Todo
	err := s.db.SelectContext(ctx, &todos, `
        SELECT id, user_id, text, done, created_at, completed_at
        FROM todos
        WHERE user_id = ?
        ORDER BY done ASC, id ASC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos for user %d: %w", userID, err)
	}
	return todos, nil
}

func (s *sqlxStore) CompleteTodo(ctx context.Context, userID, todoID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET done = 1, completed_at = ? WHERE id = ? AND user_id = ? AND done = 0`,
		dbTime(time.Now()), todoID, userID)
	if err != nil {
		return fmt.Errorf("failed to complete todo %d: %w", todoID, err)
	}
	return expectOneRow(res)
}

func (s *sqlxStore) RemoveTodo(ctx context.Context, userID, todoID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ? AND user_id = ?`, todoID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove todo %d: %w", todoID, err)
	}
	return expectOneRow(res)
}

func (s *sqlxStore) GetTodoStats(ctx context.Context, userID int64, now time.Time) (*TodoStats, error) {
	stats := &TodoStats{}
	err := s.db.GetContext(ctx, stats, `
        SELECT
            COALESCE(SUM(CASE WHEN done = 0 THEN 1 ELSE 0 END), 0) AS open,
            COALESCE(SUM(CASE WHEN done = 1 THEN 1 ELSE 0 END), 0) AS completed,
            COALESCE(SUM(CASE WHEN done = 1 AND completed_at >= ? THEN 1 ELSE 0 END), 0) AS completed_week
        FROM todos
        WHERE user_id = ?;`, dbTime(now.Add(-7*24*time.Hour)), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count todos for user %d: %w", userID, err)
	}
	return stats, nil
}

func (s *sqlxStore) CreatePoll(ctx context.Context, poll *Poll) error {
	if poll == nil || poll.Question == "" || len(poll.Options) < 2 {
		return fmt.Errorf("poll needs a question and at least two options")
	}

	if poll.CreatedAt.IsZero() {
		poll.CreatedAt = time.Now()
	}
	poll.CreatedAt = dbTime(poll.CreatedAt)
	poll.ExpiresAt = dbTime(poll.ExpiresAt)
	poll.Status = PollActive

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	res, err := tx.NamedExecContext(ctx, `
        INSERT INTO polls (chat_id, creator_id, message_id, question, status, created_at, expires_at)
        VALUES (:chat_id, :creator_id, :message_id, :question, :status, :created_at, :expires_at);`, poll)
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}
	if poll.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read poll id: %w", err)
	}

	for i, opt := range poll.Options {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO poll_options (poll_id, option_index, text) VALUES (?, ?, ?)`,
			poll.ID, i, opt); err != nil {
			return fmt.Errorf("failed to insert poll option %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Poll created", "poll_id", poll.ID, "chat_id", poll.ChatID, "options", len(poll.Options))
	return nil
}

func (s *sqlxStore) SetPollMessage(ctx context.Context, pollID int64, messageID int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE polls SET message_id = ? WHERE id = ?`, messageID, pollID)
	if err != nil {
		return fmt.Errorf("failed to set message for poll %d: %w", pollID, err)
	}
	return expectOneRow(res)
}

const pollColumns = `id, chat_id, creator_id, message_id, question, status, created_at, expires_at, closed_at`

func (s *sqlxStore) GetPoll(ctx context.Context, pollID int64) (*Poll, error) {
	var poll Poll
	err := s.db.GetContext(ctx, &poll, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, pollID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll %d: %w", pollID, err)
	}

	if err := s.loadOptions(ctx, &poll); err != nil {
		return nil, err
	}
	return &poll, nil
}

func (s *sqlxStore) ListActivePolls(ctx context.Context, chatID int64) ([]Poll, error) {
	var polls []Poll
	err := s.db.SelectContext(ctx, &polls,
		`SELECT `+pollColumns+` FROM polls WHERE chat_id = ? AND status = ? ORDER BY id ASC`,
		chatID, PollActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls for chat %d: %w", chatID, err)
	}
	for i := range polls {
		if err := s.loadOptions(ctx, &polls[i]); err != nil {
			return nil, err
		}
	}
	return polls, nil
}

func (s *sqlxStore) loadOptions(ctx context.Context, poll *Poll) error {
	if err := s.db.SelectContext(ctx, &poll.Options,
		`SELECT text FROM poll_options WHERE poll_id = ? ORDER BY option_index ASC`, poll.ID); err != nil {
		return fmt.Errorf("failed to load options for poll %d: %w", poll.ID, err)
	}
	return nil
}

func (s *sqlxStore) CastVote(ctx context.Context, pollID, userID int64, option int, now time.Time) error {
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.Status != PollActive || !now.Before(poll.ExpiresAt) {
		return ErrPollClosed
	}
	if option < 0 || option >= len(poll.Options) {
		return fmt.Errorf("%w: %d", ErrInvalidOption, option)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO poll_votes (poll_id, user_id, option_index, voted_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (poll_id, user_id) DO UPDATE SET
            option_index = excluded.option_index,
            voted_at = excluded.voted_at;`,
		pollID, userID, option, dbTime(now))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error casting vote", "poll_id", pollID, "user_id", userID, "error", err)
		return fmt.Errorf("failed to cast vote on poll %d: %w", pollID, err)
	}
	return nil
}

func (s *sqlxStore) GetPollResults(ctx context.Context, pollID int64) (*PollResults, error) {
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Option int `db:"option_index"`
		Count  int `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows, `
        SELECT option_index, COUNT(*) AS count
        FROM poll_votes
        WHERE poll_id = ?
        GROUP BY option_index;`, pollID); err != nil {
		return nil, fmt.Errorf("failed to count votes for poll %d: %w", pollID, err)
	}

	results := &PollResults{Poll: poll, Counts: make([]int, len(poll.Options))}
	for _, r := range rows {
		if r.Option >= 0 && r.Option < len(results.Counts) {
			results.Counts[r.Option] = r.Count
			results.Total += r.Count
		}
	}
	return results, nil
}

func (s *sqlxStore) ClosePoll(ctx context.Context, pollID int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE polls SET status = ?, closed_at = ? WHERE id = ? AND status = ?`,
		PollClosed, dbTime(now), pollID, PollActive)
	if err != nil {
		return fmt.Errorf("failed to close poll %d: %w", pollID, err)
	}
	if err := expectOneRow(res); err != nil {
		if _, getErr := s.GetPoll(ctx, pollID); getErr != nil {
			return getErr
		}
		return ErrPollClosed
	}
	return nil
}

func (s *sqlxStore) CloseExpiredPolls(ctx context.Context, now time.Time) ([]Poll, error) {
	now = dbTime(now)

	var expired []Poll
	if err := s.db.SelectContext(ctx, &expired,
		`SELECT `+pollColumns+` FROM polls WHERE status = ? AND expires_at <= ? ORDER BY id ASC`,
		PollActive, now); err != nil {
		return nil, fmt.Errorf("failed to find expired polls: %w", err)
	}

	closed := expired[:0]
	for _, p := range expired {
		if err := s.ClosePoll(ctx, p.ID, now); err != nil {
			if errors.Is(err, ErrPollClosed) {
				continue
			}
			return closed, err
		}
		if err := s.loadOptions(ctx, &p); err != nil {
			return closed, err
		}
		p.Status = PollClosed
		p.ClosedAt = sql.NullTime{Time: now, Valid: true}
		closed = append(closed, p)
	}
	return closed, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
