// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/database"
	"github.com/edgard/relaybot/internal/ratelimit"
)

// AdminOnly creates a middleware that checks if the sender is the configured admin user.
// If not, it sends a "Not Authorized" message and stops processing by returning early.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			user := sender(update)
			if user == nil {
				return
			}

			if !deps.Config.IsAdmin(user.ID) {
				log := deps.Logger.With("middleware", "AdminOnly")
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", user.ID, "chat_id", chatID(update))
				reply(ctx, bot, deps, update, deps.Config.Messages.Unauthorized)
				return
			}

			next(ctx, bot, update)
		}
	}
}

// Validator inspects an update before any quota is charged. A non-empty
// result is sent to the user as the reply and the update goes no further.
type Validator func(update *models.Update) string

// RateLimited charges one event to the sender in category before calling
// next. Updates rejected by one of the validators are answered without
// touching the limiter. Denied updates get the "slow down" reply with the
// wait time; a category without a policy denies and logs an error.
func RateLimited(deps HandlerDeps, category ratelimit.Category, validators ...Validator) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			user := sender(update)
			if user == nil {
				return
			}
			log := deps.Logger.With("middleware", "RateLimited", "category", category, "user_id", user.ID)

			for _, validate := range validators {
				if problem := validate(update); problem != "" {
					log.DebugContext(ctx, "Rejected before charging quota")
					answerCallback(ctx, bot, deps, update, "")
					reply(ctx, bot, deps, update, problem)
					return
				}
			}

			allowed, err := deps.Limiter.Check(user.ID, category)
			if err != nil {
				log.ErrorContext(ctx, "Rate limit check failed, denying request", "error", err)
				reply(ctx, bot, deps, update, deps.Config.Messages.GeneralError)
				return
			}
			if !allowed {
				wait, err := deps.Limiter.RetryAfter(user.ID, category)
				if err != nil {
					log.ErrorContext(ctx, "Failed to compute retry delay", "error", err)
				}
				log.InfoContext(ctx, "Request rate limited", "retry_after", wait)
				answerCallback(ctx, bot, deps, update, "")
				reply(ctx, bot, deps, update, fmt.Sprintf(deps.Config.Messages.RateLimited, formatWait(wait)))
				return
			}

			next(ctx, bot, update)
		}
	}
}

// TrackUsage records the sender and, for commands, the command name before
// handing the update on. Store failures are logged and never block handling.
func TrackUsage(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if user := sender(update); user != nil && !user.IsBot {
				log := deps.Logger.With("middleware", "TrackUsage", "user_id", user.ID)
				err := deps.Store.UpsertUser(ctx, &database.User{
					UserID:     user.ID,
					Username:   user.Username,
					FirstName:  user.FirstName,
					LastName:   user.LastName,
					LastSeenAt: deps.clock().Now(),
				})
				if err != nil {
					log.WarnContext(ctx, "Failed to record user", "error", err)
				}

				if update.Message != nil {
					if cmd := commandName(update.Message.Text); cmd != "" {
						if err := deps.Store.RecordCommand(ctx, user.ID, update.Message.Chat.ID, cmd); err != nil {
							log.WarnContext(ctx, "Failed to record command usage", "command", cmd, "error", err)
						}
						if deps.Metrics != nil {
							deps.Metrics.IncCommand(cmd)
						}
					}
				}
			}

			next(ctx, bot, update)
		}
	}
}

// formatWait rounds a retry delay up to whole seconds.
func formatWait(d time.Duration) string {
	if d <= 0 {
		return "a moment"
	}
	return (time.Duration(math.Ceil(d.Seconds())) * time.Second).String()
}

// commandName extracts "ask" from "/ask@relay_bot hello". Non-commands give "".
func commandName(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	first := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(first, '@'); i >= 0 {
		first = first[:i]
	}
	return strings.ToLower(first)
}
