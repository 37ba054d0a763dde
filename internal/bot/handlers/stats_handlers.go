package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/database"
	"github.com/edgard/relaybot/internal/ratelimit"
)

// NewMyStatsHandler returns a handler for /mystats.
func NewMyStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.MyStats
}

// NewLimitsHandler returns a handler for /limits.
func NewLimitsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Limits
}

// NewStatsHandler returns a handler for the admin /stats command.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Stats
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) MyStats(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	stats, err := h.deps.Store.GetUserStats(ctx, msg.From.ID)
	if errors.Is(err, database.ErrNotFound) {
		reply(ctx, b, h.deps, update, "No activity recorded for you yet.")
		return
	}
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to load user stats", "user_id", msg.From.ID, "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 Your stats\n")
	fmt.Fprintf(&sb, "First seen: %s\n", stats.User.FirstSeenAt.UTC().Format(time.DateTime))
	fmt.Fprintf(&sb, "Last seen: %s\n", stats.User.LastSeenAt.UTC().Format(time.DateTime))
	fmt.Fprintf(&sb, "Commands used: %d\n", stats.TotalCommands)
	for _, c := range stats.TopCommands {
		fmt.Fprintf(&sb, "  /%s: %d\n", c.Command, c.Count)
	}
	reply(ctx, b, h.deps, update, strings.TrimRight(sb.String(), "\n"))
}

func (h statsHandler) Limits(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString("⏱ Your remaining quota\n")
	for _, cat := range ratelimit.Categories() {
		if cat == ratelimit.CategoryAdmin && !h.deps.Config.IsAdmin(msg.From.ID) {
			continue
		}
		policy, err := h.deps.Limiter.Policy(cat)
		if err != nil {
			continue
		}
		remaining, err := h.deps.Limiter.Remaining(msg.From.ID, cat)
		if err != nil {
			h.deps.Logger.ErrorContext(ctx, "Failed to read remaining quota", "category", cat, "error", err)
			continue
		}
		fmt.Fprintf(&sb, "%s: %d/%d per %s", cat, remaining, policy.MaxEvents, policy.Window)
		if remaining == 0 {
			if wait, err := h.deps.Limiter.RetryAfter(msg.From.ID, cat); err == nil {
				fmt.Fprintf(&sb, " (next in %s)", formatWait(wait))
			}
		}
		sb.WriteString("\n")
	}
	reply(ctx, b, h.deps, update, strings.TrimRight(sb.String(), "\n"))
}

func (h statsHandler) Stats(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	summary, err := h.deps.Store.GetUsageSummary(ctx, h.deps.clock().Now())
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to build usage summary", "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}

	var sb strings.Builder
	sb.WriteString("📈 Bot usage\n")
	fmt.Fprintf(&sb, "Users: %d (%d active in 24h)\n", summary.TotalUsers, summary.ActiveUsers24h)
	fmt.Fprintf(&sb, "Commands: %d (%d in 24h)\n", summary.TotalCommands, summary.Commands24h)
	fmt.Fprintf(&sb, "Open todos: %d\n", summary.OpenTodos)
	fmt.Fprintf(&sb, "Active polls: %d\n", summary.ActivePolls)
	fmt.Fprintf(&sb, "Tracked rate limit records: %d\n", h.deps.Limiter.Len())
	if len(summary.TopCommands) > 0 {
		sb.WriteString("Top commands:\n")
		for _, c := range summary.TopCommands {
			fmt.Fprintf(&sb, "  /%s: %d\n", c.Command, c.Count)
		}
	}
	reply(ctx, b, h.deps, update, strings.TrimRight(sb.String(), "\n"))
}
