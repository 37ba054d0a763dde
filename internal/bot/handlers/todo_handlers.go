package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/database"
)

const (
	maxTodoLen   = 500
	maxOpenTodos = 100
)

// NewTodoListHandler returns a handler for /todo.
func NewTodoListHandler(deps HandlerDeps) bot.HandlerFunc {
	return todoHandler{deps}.List
}

// NewTodoAddHandler returns a handler for /todo_add.
func NewTodoAddHandler(deps HandlerDeps) bot.HandlerFunc {
	return todoHandler{deps}.Add
}

// NewTodoDoneHandler returns a handler for /todo_done.
func NewTodoDoneHandler(deps HandlerDeps) bot.HandlerFunc {
	return todoHandler{deps}.Done
}

// NewTodoRemoveHandler returns a handler for /todo_remove.
func NewTodoRemoveHandler(deps HandlerDeps) bot.HandlerFunc {
	return todoHandler{deps}.Remove
}

// NewTodoStatsHandler returns a handler for /todo_stats.
func NewTodoStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return todoHandler{deps}.Stats
}

type todoHandler struct {
	deps HandlerDeps
}

// todoTextValidator rejects /todo_add without text or with too much of it.
func todoTextValidator(update *models.Update) string {
	if update.Message == nil {
		return ""
	}
	return todoTextProblem(commandPayload(update.Message.Text))
}

func todoTextProblem(text string) string {
	switch {
	case text == "":
		return "Usage: /todo_add <text>"
	case utf8.RuneCountInString(text) > maxTodoLen:
		return fmt.Sprintf("Todo text is limited to %d characters.", maxTodoLen)
	}
	return ""
}

// idValidator rejects commands whose single argument is not a positive id.
func idValidator(cmd string) Validator {
	return func(update *models.Update) string {
		if update.Message == nil {
			return ""
		}
		if _, ok := parseID(commandArgs(update.Message.Text)); !ok {
			return "Usage: " + cmd + " <id>"
		}
		return ""
	}
}

func (h todoHandler) List(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	todos, err := h.deps.Store.ListTodos(ctx, msg.From.ID)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to list todos", "user_id", msg.From.ID, "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}
	if len(todos) == 0 {
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.NoTodos)
		return
	}
	reply(ctx, b, h.deps, update, formatTodos(todos))
}

func (h todoHandler) Add(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	text := commandPayload(msg.Text)
	if problem := todoTextProblem(text); problem != "" {
		reply(ctx, b, h.deps, update, problem)
		return
	}

	existing, err := h.deps.Store.ListTodos(ctx, msg.From.ID)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to list todos", "user_id", msg.From.ID, "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}
	open := 0
	for _, t := range existing {
		if !t.Done {
			open++
		}
	}
	if open >= maxOpenTodos {
		reply(ctx, b, h.deps, update, fmt.Sprintf("You already have %d open todos. Finish or remove some first.", open))
		return
	}

	todo, err := h.deps.Store.AddTodo(ctx, msg.From.ID, text)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to add todo", "user_id", msg.From.ID, "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}
	reply(ctx, b, h.deps, update, fmt.Sprintf("Added todo #%d.", todo.ID))
}

func (h todoHandler) Done(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.mutate(ctx, b, update, "/todo_done", "Marked todo #%d as done.", h.deps.Store.CompleteTodo)
}

func (h todoHandler) Remove(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.mutate(ctx, b, update, "/todo_remove", "Removed todo #%d.", h.deps.Store.RemoveTodo)
}

func (h todoHandler) mutate(ctx context.Context, b *bot.Bot, update *models.Update, cmd, okFormat string,
	op func(ctx context.Context, userID, todoID int64) error,
) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	id, ok := parseID(commandArgs(msg.Text))
	if !ok {
		reply(ctx, b, h.deps, update, "Usage: "+cmd+" <id>")
		return
	}

	err := op(ctx, msg.From.ID, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.NotFound)
	case err != nil:
		h.deps.Logger.ErrorContext(ctx, "Todo update failed", "command", cmd, "todo_id", id, "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
	default:
		reply(ctx, b, h.deps, update, fmt.Sprintf(okFormat, id))
	}
}

func (h todoHandler) Stats(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	stats, err := h.deps.Store.GetTodoStats(ctx, msg.From.ID, h.deps.clock().Now())
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to load todo stats", "user_id", msg.From.ID, "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}
	if stats.Total() == 0 {
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.NoTodos)
		return
	}
	reply(ctx, b, h.deps, update, formatTodoStats(stats))
}

func formatTodoStats(s *database.TodoStats) string {
	pct := s.Completed * 100 / s.Total()
	return fmt.Sprintf("📊 Todo progress\n%s %d%%\nOpen: %d\nCompleted: %d\nCompleted this week: %d",
		progressBar(pct, 10), pct, s.Open, s.Completed, s.CompletedWeek)
}

// progressBar draws pct (0-100) as width cells.
func progressBar(pct, width int) string {
	filled := min(max(pct*width/100, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatTodos(todos []database.Todo) string {
	var sb strings.Builder
	sb.WriteString("📝 Your todos:\n")
	for _, t := range todos {
		mark := "⬜"
		if t.Done {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s #%d %s\n", mark, t.ID, t.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// parseID expects exactly one positive integer argument, "#12" allowed.
func parseID(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
