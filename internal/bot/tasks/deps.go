// Package tasks implements the bot's scheduled maintenance jobs.
package tasks

import (
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/relaybot/internal/database"
	"github.com/edgard/relaybot/internal/metrics"
	"github.com/edgard/relaybot/internal/ratelimit"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger  *slog.Logger
	Store   database.Store
	Limiter *ratelimit.Limiter
	Metrics *metrics.BotMetrics
	// Bot is used to refresh poll messages. Nil skips the refresh.
	Bot   *tgbot.Bot
	Clock clockwork.Clock
}

func (d TaskDeps) clock() clockwork.Clock {
	if d.Clock == nil {
		return clockwork.NewRealClock()
	}
	return d.Clock
}
