// Package metrics owns the bot's Prometheus registry and collectors.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rate limit decision labels.
const (
	ResultAllowed = "allowed"
	ResultDenied  = "denied"
	ResultError   = "error"
	ResultOK      = "ok"
)

// BotMetrics is safe for concurrent use. Labels are bounded: categories,
// update types and external service names, never user IDs.
type BotMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	ratelimitDecisions *prometheus.CounterVec
	sweepRemoved       prometheus.Counter
	updatesTotal       *prometheus.CounterVec
	updateDuration     prometheus.Histogram
	externalRequests   *prometheus.CounterVec
	commandsTotal      *prometheus.CounterVec
}

// New returns a fresh registry with the Go and process collectors plus the
// bot's own metrics.
func New() *BotMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &BotMetrics{
		ratelimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_ratelimit_decisions_total",
			Help: "Rate limit checks by category and result",
		}, []string{"category", "result"}),
		sweepRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_ratelimit_sweeps_removed_total",
			Help: "Expired rate limit records removed by the sweep task",
		}),
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Telegram updates processed by type",
		}, []string{"type"}),
		updateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_update_duration_seconds",
			Help:    "Time spent handling one Telegram update",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		externalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_external_requests_total",
			Help: "Calls to external APIs by service and result",
		}, []string{"service", "result"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Bot commands received by name",
		}, []string{"command"}),
	}
	reg.MustRegister(
		m.ratelimitDecisions,
		m.sweepRemoved,
		m.updatesTotal,
		m.updateDuration,
		m.externalRequests,
		m.commandsTotal,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *BotMetrics) Handler() http.Handler {
	return m.handler
}

func (m *BotMetrics) Registry() *prometheus.Registry {
	return m.reg
}

func (m *BotMetrics) IncRateLimitDecision(category, result string) {
	m.ratelimitDecisions.WithLabelValues(category, result).Inc()
}

func (m *BotMetrics) AddSweepRemoved(n int) {
	m.sweepRemoved.Add(float64(n))
}

// IncExternalRequest records one call to an outside API, result is ResultOK
// or ResultError.
func (m *BotMetrics) IncExternalRequest(service, result string) {
	m.externalRequests.WithLabelValues(service, result).Inc()
}

func (m *BotMetrics) IncCommand(command string) {
	m.commandsTotal.WithLabelValues(command).Inc()
}

// Middleware counts updates by type and observes handling time.
func (m *BotMetrics) Middleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		start := time.Now()
		next(ctx, b, update)
		m.updatesTotal.WithLabelValues(UpdateType(update)).Inc()
		m.updateDuration.Observe(time.Since(start).Seconds())
	}
}

// UpdateType names the payload kind of an update.
func UpdateType(update *models.Update) string {
	switch {
	case update.Message != nil:
		return "message"
	case update.EditedMessage != nil:
		return "edited_message"
	case update.CallbackQuery != nil:
		return "callback_query"
	case update.InlineQuery != nil:
		return "inline_query"
	default:
		return "other"
	}
}
