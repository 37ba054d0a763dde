package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/edgard/relaybot/internal/ai"
	"github.com/edgard/relaybot/internal/config"
)

// Client implements ai.TextGenerator and ai.ImageGenerator.
type Client struct {
	api          *gopenai.Client
	model        string
	imageModel   string
	imageSize    string
	temperature  float32
	maxTokens    int
	instruction  string
	log          *slog.Logger
	firstBackoff time.Duration
}

// New creates a client from the openai config section. instruction is the
// system prompt placed before every conversation.
func New(cfg config.OpenAIConfig, instruction string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	apiCfg := gopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:          gopenai.NewClientWithConfig(apiCfg),
		model:        cfg.Model,
		imageModel:   cfg.ImageModel,
		imageSize:    cfg.ImageSize,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		instruction:  instruction,
		log:          log.With("component", "openai_client"),
		firstBackoff: initialBackoffDuration,
	}, nil
}

func (c *Client) Name() string {
	return "openai"
}

// Generate implements ai.TextGenerator.
func (c *Client) Generate(ctx context.Context, req *ai.Request) (string, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return "", ai.ErrEmptyPrompt
	}

	messages := make([]gopenai.ChatCompletionMessage, 0, len(req.History)+2)
	if c.instruction != "" {
		messages = append(messages, gopenai.ChatCompletionMessage{
			Role:    gopenai.ChatMessageRoleSystem,
			Content: c.instruction,
		})
	}
	for _, t := range req.History {
		role := gopenai.ChatMessageRoleUser
		if t.Role == ai.RoleAssistant {
			role = gopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, gopenai.ChatCompletionMessage{Role: role, Content: t.Text})
	}
	messages = append(messages, gopenai.ChatCompletionMessage{
		Role:    gopenai.ChatMessageRoleUser,
		Content: req.Prompt,
		Name:    sanitizeName(req.UserName),
	})

	c.log.DebugContext(ctx, "Requesting chat completion", "user_id", req.UserID, "messages", len(messages))

	return c.retryWithBackoff(ctx, func() (string, error) {
		resp, err := c.api.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrNoChoices
		}

		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return "", ai.ErrEmptyResponse
		}
		return text, nil
	})
}

// GenerateImage implements ai.ImageGenerator and returns the hosted URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ai.ErrEmptyPrompt
	}

	c.log.DebugContext(ctx, "Requesting image", "model", c.imageModel, "size", c.imageSize)

	return c.retryWithBackoff(ctx, func() (string, error) {
		resp, err := c.api.CreateImage(ctx, gopenai.ImageRequest{
			Prompt:         prompt,
			Model:          c.imageModel,
			N:              imageCount,
			Size:           c.imageSize,
			ResponseFormat: gopenai.CreateImageResponseFormatURL,
		})
		if err != nil {
			return "", fmt.Errorf("image generation failed: %w", err)
		}
		if len(resp.Data) == 0 || resp.Data[0].URL == "" {
			return "", ErrNoImage
		}
		return resp.Data[0].URL, nil
	})
}

// isPermanentAPIError reports client errors that retrying cannot fix, such as
// a bad key, a rejected prompt or an exhausted quota.
func isPermanentAPIError(err error) bool {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500
	}
	var reqErr *gopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 400 && reqErr.HTTPStatusCode < 500
	}
	return errors.Is(err, ai.ErrEmptyPrompt)
}

// retryWithBackoff retries transient failures with exponentially growing
// delays, stopping early on context cancellation or permanent errors.
func (c *Client) retryWithBackoff(ctx context.Context, op func() (string, error)) (string, error) {
	var lastErr error
	backoff := c.firstBackoff

	for attempt := 1; attempt <= retryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("context error: %w", err)
		}

		result, err := op()
		if err == nil {
			return result, nil
		}
		if isPermanentAPIError(err) {
			return "", fmt.Errorf("permanent API error: %w", err)
		}

		lastErr = err
		c.log.WarnContext(ctx, "OpenAI call failed", "attempt", attempt, "max_attempts", retryMaxAttempts, "error", err)

		if attempt < retryMaxAttempts {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", fmt.Errorf("context error: %w", ctx.Err())
			case <-timer.C:
				backoff *= 2
			}
		}
	}

	return "", fmt.Errorf("all %d API attempts failed: %w", retryMaxAttempts, lastErr)
}

// sanitizeName keeps the characters the chat API accepts in a participant
// name.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
		if b.Len() == 64 {
			break
		}
	}
	return b.String()
}
