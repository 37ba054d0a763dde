package ratelimit

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrUnknownCategory is returned when a category has no configured policy.
	ErrUnknownCategory = errors.New("unknown rate limit category")
	// ErrInvalidPolicy is returned when a policy has non-positive values.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
)

// Category names a class of guarded action with its own ceiling and window.
type Category string

// Known categories. Handlers only ever guard with one of these.
const (
	CategoryAIRequest       Category = "ai_request"
	CategoryImageGeneration Category = "image_generation"
	CategoryCryptoLookup    Category = "crypto_lookup"
	CategoryCommand         Category = "command"
	CategoryAdmin           Category = "admin"
)

// Categories returns every known category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryAIRequest,
		CategoryImageGeneration,
		CategoryCryptoLookup,
		CategoryCommand,
		CategoryAdmin,
	}
}

// ParseCategory validates a category name read from configuration.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories() {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// Policy governs one category: at most MaxEvents permitted actions in any
// trailing Window.
type Policy struct {
	MaxEvents int
	Window    time.Duration
}

// Validate reports ErrInvalidPolicy when either value is not positive.
func (p Policy) Validate() error {
	if p.MaxEvents <= 0 {
		return fmt.Errorf("%w: max_events must be positive, got %d", ErrInvalidPolicy, p.MaxEvents)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidPolicy, p.Window)
	}
	return nil
}

// DefaultPolicies mirrors the limits the bot has always shipped with.
func DefaultPolicies() map[Category]Policy {
	return map[Category]Policy{
		CategoryAIRequest:       {MaxEvents: 20, Window: time.Minute},
		CategoryImageGeneration: {MaxEvents: 5, Window: 5 * time.Minute},
		CategoryCryptoLookup:    {MaxEvents: 10, Window: time.Minute},
		CategoryCommand:         {MaxEvents: 30, Window: time.Minute},
		CategoryAdmin:           {MaxEvents: 100, Window: time.Minute},
	}
}

// ValidatePolicies checks that every known category has a valid policy and
// that no policy is configured for a category the bot does not know.
func ValidatePolicies(policies map[Category]Policy) error {
	var errs []error

	names := make([]string, 0, len(policies))
	for c := range policies {
		names = append(names, string(c))
	}
	sort.Strings(names)

	for _, name := range names {
		c, err := ParseCategory(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := policies[c].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("category %s: %w", c, err))
		}
	}

	for _, c := range Categories() {
		if _, ok := policies[c]; !ok {
			errs = append(errs, fmt.Errorf("%w: no policy configured for category %s", ErrInvalidPolicy, c))
		}
	}

	return errors.Join(errs...)
}
