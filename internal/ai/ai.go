// Package ai defines the text and image generation contracts shared by the
// OpenAI and Gemini backends, plus the per-user conversation memory that
// /ask and private chat replies build on.
package ai

import (
	"context"
	"errors"
)

var (
	// ErrEmptyPrompt is returned before any API call when the prompt is blank.
	ErrEmptyPrompt = errors.New("empty prompt")
	// ErrEmptyResponse is returned when a backend answers without text.
	ErrEmptyResponse = errors.New("empty response from AI backend")
	// ErrTimeout is returned when generation exceeds the configured timeout.
	ErrTimeout = errors.New("AI request timed out")
)

// Role marks who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role Role
	Text string
}

// Request carries everything a backend needs to answer one prompt.
type Request struct {
	UserID   int64
	UserName string
	Prompt   string
	History  []Turn
}

// TextGenerator produces a chat reply.
type TextGenerator interface {
	Generate(ctx context.Context, req *Request) (string, error)
	// Name identifies the backend in logs and metrics.
	Name() string
}

// ImageGenerator produces an image for a prompt and returns its URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}
