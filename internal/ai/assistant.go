package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Assistant answers prompts with a TextGenerator while keeping per-user
// conversation memory and a hard timeout.
type Assistant struct {
	gen     TextGenerator
	history *Conversations
	timeout time.Duration
	logger  *slog.Logger
}

// NewAssistant wraps gen. A nil history disables memory; a non-positive
// timeout disables the deadline.
func NewAssistant(gen TextGenerator, history *Conversations, timeout time.Duration, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if history == nil {
		history = NewConversations(0)
	}
	return &Assistant{
		gen:     gen,
		history: history,
		timeout: timeout,
		logger:  logger.With("component", "assistant", "backend", gen.Name()),
	}
}

// Ask generates a reply for userID and remembers the exchange on success.
func (a *Assistant) Ask(ctx context.Context, userID int64, userName, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := a.gen.Generate(ctx, &Request{
		UserID:   userID,
		UserName: userName,
		Prompt:   prompt,
		History:  a.history.Get(userID),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %w", ErrTimeout, a.timeout, err)
		}
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyResponse
	}

	a.history.Append(userID, prompt, reply)
	a.logger.DebugContext(ctx, "Generated reply", "user_id", userID, "duration", time.Since(start), "reply_len", len(reply))
	return reply, nil
}

// Forget clears the user's remembered conversation.
func (a *Assistant) Forget(userID int64) {
	a.history.Clear(userID)
}

// Backend names the underlying generator.
func (a *Assistant) Backend() string {
	return a.gen.Name()
}
