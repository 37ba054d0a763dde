package handlers

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/relaybot/internal/ai"
	"github.com/edgard/relaybot/internal/config"
	"github.com/edgard/relaybot/internal/crypto"
	"github.com/edgard/relaybot/internal/database"
	"github.com/edgard/relaybot/internal/metrics"
	"github.com/edgard/relaybot/internal/ratelimit"
)

// PriceSource looks up crypto quotes.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (*crypto.Quote, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Store     database.Store
	Limiter   *ratelimit.Limiter
	Assistant *ai.Assistant
	Images    ai.ImageGenerator
	Prices    PriceSource
	Metrics   *metrics.BotMetrics
	Clock     clockwork.Clock
}

func (d HandlerDeps) clock() clockwork.Clock {
	if d.Clock == nil {
		return clockwork.NewRealClock()
	}
	return d.Clock
}
