package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/database"
	"github.com/edgard/relaybot/internal/remind"
)

const timezoneUsage = "Usage: /set_timezone <zone>\nExamples: Europe/London, America/New_York, Asia/Tokyo"

// NewSetTimezoneHandler returns a handler for /set_timezone.
func NewSetTimezoneHandler(deps HandlerDeps) bot.HandlerFunc {
	return timezoneHandler{deps}.Set
}

// NewMyTimeHandler returns a handler for /my_time.
func NewMyTimeHandler(deps HandlerDeps) bot.HandlerFunc {
	return timezoneHandler{deps}.Show
}

type timezoneHandler struct {
	deps HandlerDeps
}

func timezoneValidator(update *models.Update) string {
	if update.Message == nil {
		return ""
	}
	name := commandPayload(update.Message.Text)
	if name == "" {
		return timezoneUsage
	}
	if _, err := remind.LoadZone(name); err != nil {
		return fmt.Sprintf("❌ Unknown timezone %q.\n\n%s", name, timezoneUsage)
	}
	return ""
}

func (h timezoneHandler) Set(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	loc, err := remind.LoadZone(commandPayload(msg.Text))
	if err != nil {
		reply(ctx, b, h.deps, update, timezoneUsage)
		return
	}

	now := h.deps.clock().Now()
	if err := h.deps.Store.SetUserTimezone(ctx, msg.From.ID, loc.String(), now); err != nil {
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}

	local := now.In(loc)
	reply(ctx, b, h.deps, update, fmt.Sprintf("✅ Timezone set to %s (%s).\nYour time: %s\nReminders now use this zone.",
		loc.String(), remind.Offset(local), local.Format("2006-01-02 15:04")))
}

func (h timezoneHandler) Show(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	loc, set := userLocation(ctx, h.deps, msg.From.ID)
	local := h.deps.clock().Now().In(loc)
	text := fmt.Sprintf("🕐 %s\n🌍 %s (%s)", local.Format("Monday, 2006-01-02 15:04"), loc.String(), remind.Offset(local))
	if !set {
		text += "\n\nUse /set_timezone to pick your zone."
	}
	reply(ctx, b, h.deps, update, text)
}

// userLocation returns the user's saved zone and whether one was saved.
// Users without one, or with a zone that no longer loads, get UTC.
func userLocation(ctx context.Context, deps HandlerDeps, userID int64) (*time.Location, bool) {
	name, err := deps.Store.GetUserTimezone(ctx, userID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return time.UTC, false
	case err != nil:
		deps.Logger.WarnContext(ctx, "Failed to load timezone, using UTC", "user_id", userID, "error", err)
		return time.UTC, false
	}

	loc, err := remind.LoadZone(name)
	if err != nil {
		deps.Logger.WarnContext(ctx, "Stored timezone no longer loads, using UTC", "user_id", userID, "timezone", name)
		return time.UTC, false
	}
	return loc, true
}
