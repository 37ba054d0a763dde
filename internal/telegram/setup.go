// Package telegram handles the setup and registration of Telegram bot handlers.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/bot/handlers"
)

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	prefix := token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	log.Info("Telegram bot instance created successfully", "token_prefix", prefix+"...")
	return b, nil
}

// applyMiddleware wraps a handler function with a slice of middleware.
// Middleware are applied in reverse order so the first one in the slice is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers command and callback handlers with the Telegram
// bot instance, wrapping each with its own middleware.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, registeredHandlers map[string]handlers.RegisteredHandler) error {
	if b == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	if len(registeredHandlers) == 0 {
		log.Warn("No handlers provided for registration.")
		return nil
	}

	for _, regHandler := range registeredHandlers {
		if regHandler.Handler == nil {
			log.Warn("Skipping registration for nil handler", "pattern", regHandler.Pattern)
			continue
		}

		finalHandler := applyMiddleware(regHandler.Handler, regHandler.Middleware)
		b.RegisterHandler(regHandler.HandlerType, regHandler.Pattern, regHandler.MatchType, finalHandler)
		log.Debug("Registered handler", "pattern", regHandler.Pattern, "match_type", regHandler.MatchType, "middleware_count", len(regHandler.Middleware))
	}

	log.Info("Registered Telegram handlers successfully", "count", len(registeredHandlers))
	return nil
}

// BotCommands lists the commands that carry a description, sorted by name,
// for the client's command menu.
func BotCommands(registeredHandlers map[string]handlers.RegisteredHandler) []models.BotCommand {
	var cmds []models.BotCommand
	for key, rh := range registeredHandlers {
		if rh.Description == "" || !strings.HasPrefix(key, "/") {
			continue
		}
		cmds = append(cmds, models.BotCommand{Command: rh.Pattern, Description: rh.Description})
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Command < cmds[j].Command })
	return cmds
}

// PublishCommands sends the command menu to Telegram.
func PublishCommands(ctx context.Context, b *bot.Bot, registeredHandlers map[string]handlers.RegisteredHandler) error {
	cmds := BotCommands(registeredHandlers)
	if len(cmds) == 0 {
		return nil
	}
	if _, err := b.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: cmds}); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	return nil
}
