// Package openai generates chat replies and images through the OpenAI API.
// It handles retry logic and error classification and builds the message list
// from the caller's conversation history.
package openai

import (
	"errors"
	"time"
)

// Retry and capacity constants.
const (
	initialBackoffDuration = 1 * time.Second // Starting retry delay
	retryMaxAttempts       = 3               // Maximum attempts for one API call
	imageCount             = 1               // Images requested per /draw
)

// Error definitions for common error conditions.
var (
	ErrMissingAPIKey = errors.New("openai api key is required")
	ErrNoChoices     = errors.New("no response choices available")
	ErrNoImage       = errors.New("no image returned")
)
