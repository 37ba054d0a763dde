package tasks

import (
	"context"
	"fmt"

	"github.com/edgard/relaybot/internal/bot/handlers"
	"github.com/edgard/relaybot/internal/config"
)

// newPollExpiryTask closes polls past their deadline and rewrites their chat
// messages with the final tally.
func newPollExpiryTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", config.TaskPollExpiry)

	return func(ctx context.Context) error {
		closed, err := deps.Store.CloseExpiredPolls(ctx, deps.clock().Now())
		if err != nil {
			log.ErrorContext(ctx, "Failed to close expired polls", "error", err)
			return fmt.Errorf("close expired polls: %w", err)
		}
		if len(closed) == 0 {
			return nil
		}
		log.InfoContext(ctx, "Closed expired polls", "count", len(closed))

		if deps.Bot == nil {
			return nil
		}
		for _, p := range closed {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res, err := deps.Store.GetPollResults(ctx, p.ID)
			if err != nil {
				log.WarnContext(ctx, "Failed to load final poll results", "poll_id", p.ID, "error", err)
				continue
			}
			if err := handlers.EditPollMessage(ctx, deps.Bot, res); err != nil {
				log.WarnContext(ctx, "Failed to update expired poll message", "poll_id", p.ID, "error", err)
			}
		}
		return nil
	}
}
