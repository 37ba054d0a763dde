package database

import (
	"database/sql"
	"time"
)

// User is a Telegram account the bot has seen.
type User struct {
	UserID      int64     `db:"user_id"`
	Username    string    `db:"username"`
	FirstName   string    `db:"first_name"`
	LastName    string    `db:"last_name"`
	FirstSeenAt time.Time `db:"first_seen_at"`
	LastSeenAt  time.Time `db:"last_seen_at"`
}

// CommandCount pairs a command name with how often it was used.
type CommandCount struct {
	Command string `db:"command" json:"command"`
	Count   int    `db:"count"   json:"count"`
}

// UserStats summarizes one user's activity for /mystats.
type UserStats struct {
	User          User
	TotalCommands int
	TopCommands   []CommandCount
}

// UsageSummary is the bot-wide activity overview for /stats and the ops API.
type UsageSummary struct {
	TotalUsers       int            `json:"total_users"`
	ActiveUsers24h   int            `json:"active_users_24h"`
	TotalCommands    int            `json:"total_commands"`
	Commands24h      int            `json:"commands_24h"`
	TopCommands      []CommandCount `json:"top_commands"`
	OpenTodos        int            `json:"open_todos"`
	ActivePolls      int            `json:"active_polls"`
	PendingReminders int            `json:"pending_reminders"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// Todo is one item of a user's personal list.
type Todo struct {
	ID          int64        `db:"id"`
	UserID      int64        `db:"user_id"`
	Text        string       `db:"text"`
	Done        bool         `db:"done"`
	CreatedAt   time.Time    `db:"created_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

// TodoStats summarizes one user's todo list for /todo_stats.
type TodoStats struct {
	Open          int `db:"open"`
	Completed     int `db:"completed"`
	CompletedWeek int `db:"completed_week"`
}

// Total counts open and completed todos together.
func (t TodoStats) Total() int {
	return t.Open + t.Completed
}

// Poll statuses.
const (
	PollActive = "active"
	PollClosed = "closed"
)

// Poll is a chat poll created with /poll. Options are loaded separately and
// ordered by index.
type Poll struct {
	ID        int64        `db:"id"`
	ChatID    int64        `db:"chat_id"`
	CreatorID int64        `db:"creator_id"`
	MessageID int          `db:"message_id"`
	Question  string       `db:"question"`
	Status    string       `db:"status"`
	CreatedAt time.Time    `db:"created_at"`
	ExpiresAt time.Time    `db:"expires_at"`
	ClosedAt  sql.NullTime `db:"closed_at"`

	Options []string `db:"-"`
}

// PollResults holds the vote count for each option index.
type PollResults struct {
	Poll   *Poll
	Counts []int
	Total  int
}

// Reminder statuses. Only pending reminders are delivered or cancelled.
const (
	ReminderPending   = "pending"
	ReminderSent      = "sent"
	ReminderFailed    = "failed"
	ReminderCancelled = "cancelled"
)

// Reminder is a message the bot sends back to a chat at RemindAt (UTC).
type Reminder struct {
	ID        int64        `db:"id"`
	UserID    int64        `db:"user_id"`
	ChatID    int64        `db:"chat_id"`
	Message   string       `db:"message"`
	RemindAt  time.Time    `db:"remind_at"`
	Status    string       `db:"status"`
	CreatedAt time.Time    `db:"created_at"`
	SentAt    sql.NullTime `db:"sent_at"`
}
