// Package resilience wraps calls to flaky upstream APIs in a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = gobreaker.ErrOpenState
	// ErrTooManyRequests is returned when a half-open breaker is already
	// probing the upstream.
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func mapState(state gobreaker.State) State {
	switch state {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// Config holds the breaker settings. Zero values get defaults.
type Config struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures int
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// Ignore reports errors that say nothing about upstream health, such as
	// a caller's own cancellation. They do not count as failures.
	Ignore        func(err error) bool
	OnStateChange func(name string, from, to State)
	Logger        *slog.Logger
}

// CircuitBreaker implements the circuit breaker pattern using gobreaker.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a breaker from cfg.
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.MaxFailures)
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return cfg.Ignore != nil && cfg.Ignore(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "name", name, "from", mapState(from), "to", mapState(to))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, mapState(from), mapState(to))
			}
		},
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs op through the breaker. While the breaker is open op is not
// called and ErrCircuitOpen is returned.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, op(ctx)
	})
	return err
}

// State returns the current breaker position.
func (b *CircuitBreaker) State() State {
	return mapState(b.cb.State())
}
