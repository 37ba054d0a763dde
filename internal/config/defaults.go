package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/edgard/relaybot/internal/ratelimit"
)

// Default configuration values.
const (
	DefaultLogLevel = "info"
	DefaultDBPath   = "storage.db"

	DefaultAIProvider      = "openai"
	DefaultAITimeout       = 2 * time.Minute
	DefaultAIHistoryLength = 10
	DefaultAISystemPrompt  = "You are a helpful assistant in a Telegram chat. Keep answers concise."

	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenAIModel       = "gpt-4o-mini"
	DefaultOpenAIImageModel  = "dall-e-3"
	DefaultOpenAIImageSize   = "1024x1024"
	DefaultOpenAITemperature = 0.7
	DefaultOpenAIMaxTokens   = 1024

	DefaultGeminiModel             = "gemini-2.0-flash"
	DefaultGeminiTemperature       = 0.7
	DefaultGeminiMaxRetries        = 2
	DefaultGeminiRetryDelaySeconds = 2

	DefaultCryptoBaseURL           = "https://api.coingecko.com/api/v3"
	DefaultCryptoRequestsPerMinute = 30
	DefaultCryptoCacheTTL          = time.Minute
	DefaultCryptoTimeout           = 10 * time.Second

	DefaultOpsAddr = ":9090"
)

// Scheduled task names.
const (
	TaskSQLMaintenance   = "sql_maintenance"
	TaskRateLimitSweep   = "ratelimit_sweep"
	TaskPollExpiry       = "poll_expiry"
	TaskReminderDelivery = "reminder_delivery"
)

// DefaultMessages are the reply texts used when the config file sets none.
var DefaultMessages = MessagesConfig{
	Welcome: "Hi! I can answer questions, draw pictures, look up crypto prices and run a few games. " +
		"Send /help to see everything.",
	Help: "/ask <question> - ask the AI\n" +
		"/forget - clear your AI conversation\n" +
		"/draw <prompt> - generate an image\n" +
		"/price <symbol> - crypto price\n" +
		"/convert <amount> <from> <to> - crypto and fiat conversion\n" +
		"/mines <mines> <diamonds> - mines multiplier\n" +
		"/mines_target <multiplier> - closest mines setups\n" +
		"/b2b <base> <multiplier> <increase%> - back-to-back progression\n" +
		"/todo, /todo_add, /todo_done, /todo_remove, /todo_stats - personal todo list\n" +
		"/remind_me <time> <message> - reminder, /list_reminders, /cancel_reminder <id>\n" +
		"/set_timezone <zone>, /my_time - your timezone\n" +
		"/poll Question | A | B - start a poll, /poll_close <id> to close it\n" +
		"/mystats - your usage, /limits - your remaining quota\n" +
		"/menu - interactive menu",
	GeneralError:    "Something went wrong. Please try again later.",
	Unauthorized:    "You are not authorized to use this command.",
	RateLimited:     "Slow down! You can try again in %s.",
	ProvidePrompt:   "Please provide some text after the command.",
	AITimeout:       "The AI took too long to answer. Please try again.",
	ImageFailed:     "I could not generate that image.",
	UnknownSymbol:   "Unknown symbol. Try BTC, ETH, SOL and similar tickers.",
	NoTodos:         "Your todo list is empty.",
	NotFound:        "Not found.",
	LimitsResetDone: "Rate limits cleared for user %d.",
}

// DefaultTasks enables every scheduled task.
func DefaultTasks() map[string]TaskConfig {
	return map[string]TaskConfig{
		TaskSQLMaintenance:   {Enabled: true, Schedule: "0 0 3 * * *"},
		TaskRateLimitSweep:   {Enabled: true, Schedule: "0 */5 * * * *"},
		TaskPollExpiry:       {Enabled: true, Schedule: "0 * * * * *"},
		TaskReminderDelivery: {Enabled: true, Schedule: "0 * * * * *"},
	}
}

// setDefaults registers every leaf key so BOT_* environment variables can
// override keys that the config file does not mention.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("ai.provider", DefaultAIProvider)
	v.SetDefault("ai.timeout", DefaultAITimeout)
	v.SetDefault("ai.history_length", DefaultAIHistoryLength)
	v.SetDefault("ai.system_prompt", DefaultAISystemPrompt)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", DefaultOpenAIBaseURL)
	v.SetDefault("openai.model", DefaultOpenAIModel)
	v.SetDefault("openai.image_model", DefaultOpenAIImageModel)
	v.SetDefault("openai.image_size", DefaultOpenAIImageSize)
	v.SetDefault("openai.temperature", DefaultOpenAITemperature)
	v.SetDefault("openai.max_tokens", DefaultOpenAIMaxTokens)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", DefaultGeminiModel)
	v.SetDefault("gemini.temperature", DefaultGeminiTemperature)
	v.SetDefault("gemini.max_retries", DefaultGeminiMaxRetries)
	v.SetDefault("gemini.retry_delay_seconds", DefaultGeminiRetryDelaySeconds)

	v.SetDefault("crypto.base_url", DefaultCryptoBaseURL)
	v.SetDefault("crypto.api_key", "")
	v.SetDefault("crypto.requests_per_minute", DefaultCryptoRequestsPerMinute)
	v.SetDefault("crypto.cache_ttl", DefaultCryptoCacheTTL)
	v.SetDefault("crypto.timeout", DefaultCryptoTimeout)

	for c, p := range ratelimit.DefaultPolicies() {
		v.SetDefault("rate_limits."+string(c)+".max_events", p.MaxEvents)
		v.SetDefault("rate_limits."+string(c)+".window", p.Window)
	}

	for name, task := range DefaultTasks() {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}

	v.SetDefault("ops.enabled", true)
	v.SetDefault("ops.addr", DefaultOpsAddr)

	v.SetDefault("messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("messages.help", DefaultMessages.Help)
	v.SetDefault("messages.general_error", DefaultMessages.GeneralError)
	v.SetDefault("messages.unauthorized", DefaultMessages.Unauthorized)
	v.SetDefault("messages.rate_limited", DefaultMessages.RateLimited)
	v.SetDefault("messages.provide_prompt", DefaultMessages.ProvidePrompt)
	v.SetDefault("messages.ai_timeout", DefaultMessages.AITimeout)
	v.SetDefault("messages.image_failed", DefaultMessages.ImageFailed)
	v.SetDefault("messages.unknown_symbol", DefaultMessages.UnknownSymbol)
	v.SetDefault("messages.no_todos", DefaultMessages.NoTodos)
	v.SetDefault("messages.not_found", DefaultMessages.NotFound)
	v.SetDefault("messages.limits_reset_done", DefaultMessages.LimitsResetDone)
}
