// Package gemini implements text generation through Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/relaybot/internal/ai"
	"github.com/edgard/relaybot/internal/config"
)

// Client implements ai.TextGenerator on top of the genai SDK.
type Client struct {
	genaiClient      *genai.Client
	log              *slog.Logger
	contentConfig    *genai.GenerateContentConfig
	defaultModelName string
	maxRetries       int
	retryDelay       time.Duration
}

// Option adjusts the SDK client configuration.
type Option func(*genai.ClientConfig)

// WithBaseURL points the SDK at another endpoint, used by tests.
func WithBaseURL(url string) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = url
	}
}

// NewClient creates a Gemini client. instruction becomes the system
// instruction of every request.
func NewClient(ctx context.Context, cfg config.GeminiConfig, instruction string, log *slog.Logger, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, o := range opts {
		o(clientCfg)
	}

	gi, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if instruction != "" {
		baseCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: instruction}}}
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return &Client{
		genaiClient:      gi,
		log:              logger,
		contentConfig:    baseCfg,
		defaultModelName: cfg.ModelName,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}, nil
}

func (c *Client) Name() string {
	return "gemini"
}

// Generate implements ai.TextGenerator.
func (c *Client) Generate(ctx context.Context, req *ai.Request) (string, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return "", ai.ErrEmptyPrompt
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, t := range req.History {
		var role genai.Role = genai.RoleUser
		if t.Role == ai.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	c.log.DebugContext(ctx, "Generating reply", "user_id", req.UserID, "contents", len(contents))

	resp, err := c.generateContentWithRetries(ctx, c.defaultModelName, contents, c.contentConfig)
	if err != nil {
		return "", err
	}
	return c.extractTextFromResponse(ctx, resp)
}

func (c *Client) generateContentWithRetries(ctx context.Context, modelName string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		var resp *genai.GenerateContentResponse
		resp, err = c.genaiClient.Models.GenerateContent(ctx, modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		code, ok := apiErrorCode(err)
		if !ok || !isRetriable(code) {
			return nil, fmt.Errorf("gemini API call failed: %w", err)
		}

		if i < c.maxRetries {
			c.log.InfoContext(ctx, "Retrying Gemini API call", "delay", c.retryDelay, "code", code)
			timer := time.NewTimer(c.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("gemini API call cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}
	}

	return nil, fmt.Errorf("gemini API call failed after %d retries: %w", c.maxRetries, err)
}

// apiErrorCode extracts the HTTP status of a genai API error, which the SDK
// may return by value or by pointer.
func apiErrorCode(err error) (int, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code, true
	}
	return 0, false
}

func isRetriable(code int) bool {
	return code == http.StatusInternalServerError || code == http.StatusServiceUnavailable
}

func (c *Client) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("%w: finish reason %s", ai.ErrEmptyResponse, finishReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}
