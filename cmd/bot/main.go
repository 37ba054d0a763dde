// Package main contains the entrypoint for the Telegram bot application.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/relaybot/internal/ai"
	"github.com/edgard/relaybot/internal/bot"
	"github.com/edgard/relaybot/internal/bot/handlers"
	"github.com/edgard/relaybot/internal/bot/tasks"
	"github.com/edgard/relaybot/internal/config"
	"github.com/edgard/relaybot/internal/crypto"
	"github.com/edgard/relaybot/internal/database"
	"github.com/edgard/relaybot/internal/gemini"
	"github.com/edgard/relaybot/internal/logger"
	"github.com/edgard/relaybot/internal/metrics"
	"github.com/edgard/relaybot/internal/openai"
	"github.com/edgard/relaybot/internal/opshttp"
	"github.com/edgard/relaybot/internal/ratelimit"
	"github.com/edgard/relaybot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components, handles graceful
// shutdown, and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	m := metrics.New()

	limiter, err := ratelimit.New(cfg.Policies(),
		ratelimit.WithOnAllowed(func(_ int64, c ratelimit.Category) {
			m.IncRateLimitDecision(string(c), metrics.ResultAllowed)
		}),
		ratelimit.WithOnDenied(func(userID int64, c ratelimit.Category) {
			m.IncRateLimitDecision(string(c), metrics.ResultDenied)
			log.Debug("Rate limit denied", "user_id", userID, "category", c)
		}),
	)
	if err != nil {
		log.Error("Invalid rate limit configuration", "error", err)
		return 1
	}

	images, err := openai.New(cfg.OpenAI, cfg.AI.SystemPrompt, cfg.AI.Timeout, log)
	if err != nil {
		log.Error("Failed to initialize OpenAI client", "error", err)
		return 1
	}
	textGen, err := newTextGenerator(ctx, cfg, images, log)
	if err != nil {
		log.Error("Failed to initialize AI backend", "provider", cfg.AI.Provider, "error", err)
		return 1
	}
	assistant := ai.NewAssistant(textGen, ai.NewConversations(cfg.AI.HistoryLength), cfg.AI.Timeout, log)

	prices := crypto.New(cfg.Crypto, log, crypto.WithCallHook(func(err error) {
		result := metrics.ResultOK
		if err != nil {
			result = metrics.ResultError
		}
		m.IncExternalRequest("coingecko", result)
	}))

	hDeps := handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		Store:     store,
		Limiter:   limiter,
		Assistant: assistant,
		Images:    images,
		Prices:    prices,
		Metrics:   m,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), m.Middleware, handlers.TrackUsage(hDeps)),
		tgbot.WithDefaultHandler(handlers.NewChatHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	// Handlers read BotInfo through the shared config pointer.
	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.PublishCommands(ctx, tg, cmdHandlers); err != nil {
		log.Warn("Failed to publish command menu", "error", err)
	}

	tDeps := tasks.TaskDeps{
		Logger:  log,
		Store:   store,
		Limiter: limiter,
		Metrics: m,
		Bot:     tg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var ops *opshttp.Options
	if cfg.Ops.Enabled {
		ops = &opshttp.Options{
			Addr:    cfg.Ops.Addr,
			Logger:  log,
			Metrics: m.Handler(),
			Store:   store,
			Limiter: limiter,
		}
	}

	app := bot.NewBot(log, tg, sched, ops)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

// newTextGenerator picks the chat backend named by ai.provider.
func newTextGenerator(ctx context.Context, cfg *config.Config, oa *openai.Client, log *slog.Logger) (ai.TextGenerator, error) {
	switch cfg.AI.Provider {
	case "", "openai":
		return oa, nil
	case "gemini":
		return gemini.NewClient(ctx, cfg.Gemini, cfg.AI.SystemPrompt, log)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}
}
