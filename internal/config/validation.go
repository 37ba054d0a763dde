package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/edgard/relaybot/internal/ratelimit"
)

// Validate checks struct tags first, then the rules that span sections. Every
// known rate limit category must carry a valid policy; an unknown category is
// rejected so a typo cannot silently leave a command unguarded.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	var errs []error

	if err := ratelimit.ValidatePolicies(c.Policies()); err != nil {
		errs = append(errs, fmt.Errorf("rate_limits: %w", err))
	}

	if c.AI.Provider == "gemini" && c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("gemini.api_key is required when ai.provider is gemini"))
	}

	// Both replies are Sprintf templates filled with one value.
	for _, tmpl := range []struct{ key, text, verb string }{
		{"messages.rate_limited", c.Messages.RateLimited, "%s"},
		{"messages.limits_reset_done", c.Messages.LimitsResetDone, "%d"},
	} {
		if !strings.Contains(tmpl.text, tmpl.verb) {
			errs = append(errs, fmt.Errorf("%s must contain %s", tmpl.key, tmpl.verb))
		}
	}

	for name := range c.Scheduler.Tasks {
		switch name {
		case TaskSQLMaintenance, TaskRateLimitSweep, TaskPollExpiry, TaskReminderDelivery:
		default:
			errs = append(errs, fmt.Errorf("scheduler.tasks: unknown task %q", name))
		}
	}

	return errors.Join(errs...)
}
