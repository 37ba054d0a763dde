// Package config provides configuration loading, validation, and management
// for the bot. Values come from defaults, a YAML file and BOT_* environment
// variables, in increasing order of precedence.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/ratelimit"
)

// Config defines the application configuration for every component.
type Config struct {
	Logger     LoggerConfig               `mapstructure:"logger"`
	Telegram   TelegramConfig             `mapstructure:"telegram"`
	Database   DatabaseConfig             `mapstructure:"database"`
	AI         AIConfig                   `mapstructure:"ai"`
	OpenAI     OpenAIConfig               `mapstructure:"openai"`
	Gemini     GeminiConfig               `mapstructure:"gemini"`
	Crypto     CryptoConfig               `mapstructure:"crypto"`
	RateLimits map[string]RateLimitConfig `mapstructure:"rate_limits"`
	Scheduler  SchedulerConfig            `mapstructure:"scheduler"`
	Ops        OpsConfig                  `mapstructure:"ops"`
	Messages   MessagesConfig             `mapstructure:"messages"`
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot credentials and the admin identity.
type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required,gt=0"`

	// BotInfo is filled at runtime from getMe.
	BotInfo *models.User `mapstructure:"-" validate:"-"`
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// AIConfig selects the text generation backend.
type AIConfig struct {
	Provider      string        `mapstructure:"provider"       validate:"oneof=openai gemini"`
	Timeout       time.Duration `mapstructure:"timeout"        validate:"min=1s,max=10m"`
	HistoryLength int           `mapstructure:"history_length" validate:"min=0,max=50"`
	SystemPrompt  string        `mapstructure:"system_prompt"  validate:"required"`
}

// OpenAIConfig configures chat and image generation through OpenAI.
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"     validate:"required"`
	BaseURL     string  `mapstructure:"base_url"    validate:"required,url"`
	Model       string  `mapstructure:"model"       validate:"required"`
	ImageModel  string  `mapstructure:"image_model" validate:"required"`
	ImageSize   string  `mapstructure:"image_size"  validate:"oneof=256x256 512x512 1024x1024 1792x1024 1024x1792"`
	Temperature float32 `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `mapstructure:"max_tokens"  validate:"min=1,max=16384"`
}

// GeminiConfig configures the Gemini text backend.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	ModelName         string  `mapstructure:"model_name"          validate:"required"`
	Temperature       float32 `mapstructure:"temperature"         validate:"min=0,max=2"`
	MaxRetries        int     `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
}

// CryptoConfig configures the price API client.
type CryptoConfig struct {
	BaseURL           string        `mapstructure:"base_url"            validate:"required,url"`
	APIKey            string        `mapstructure:"api_key"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" validate:"gt=0"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"           validate:"min=0"`
	Timeout           time.Duration `mapstructure:"timeout"             validate:"min=1s,max=2m"`
}

// RateLimitConfig is the policy of one rate limit category.
type RateLimitConfig struct {
	MaxEvents int           `mapstructure:"max_events"`
	Window    time.Duration `mapstructure:"window"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables one scheduled task with a cron expression (seconds field
// allowed).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// OpsConfig controls the operational HTTP listener.
type OpsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// MessagesConfig holds every user-facing reply text.
type MessagesConfig struct {
	Welcome         string `mapstructure:"welcome"          validate:"required"`
	Help            string `mapstructure:"help"             validate:"required"`
	GeneralError    string `mapstructure:"general_error"    validate:"required"`
	Unauthorized    string `mapstructure:"unauthorized"     validate:"required"`
	RateLimited     string `mapstructure:"rate_limited"     validate:"required"`
	ProvidePrompt   string `mapstructure:"provide_prompt"   validate:"required"`
	AITimeout       string `mapstructure:"ai_timeout"       validate:"required"`
	ImageFailed     string `mapstructure:"image_failed"     validate:"required"`
	UnknownSymbol   string `mapstructure:"unknown_symbol"   validate:"required"`
	NoTodos         string `mapstructure:"no_todos"         validate:"required"`
	NotFound        string `mapstructure:"not_found"        validate:"required"`
	LimitsResetDone string `mapstructure:"limits_reset_done" validate:"required"`
}

// Policies converts the rate_limits section into limiter policies. Category
// names are not checked here; ratelimit.ValidatePolicies reports unknown ones.
func (c *Config) Policies() map[ratelimit.Category]ratelimit.Policy {
	out := make(map[ratelimit.Category]ratelimit.Policy, len(c.RateLimits))
	for name, rl := range c.RateLimits {
		out[ratelimit.Category(name)] = ratelimit.Policy{MaxEvents: rl.MaxEvents, Window: rl.Window}
	}
	return out
}

// IsAdmin reports whether userID is the configured administrator.
func (c *Config) IsAdmin(userID int64) bool {
	return userID != 0 && userID == c.Telegram.AdminUserID
}

// BotUsername returns the bot's username once getMe has populated BotInfo.
func (c *Config) BotUsername() string {
	if c.Telegram.BotInfo == nil {
		return ""
	}
	return c.Telegram.BotInfo.Username
}
