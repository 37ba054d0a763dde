package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/edgard/relaybot/internal/ai"
	"github.com/edgard/relaybot/internal/config"
)

const okBody = `{"candidates":[{"content":{"role":"model","parts":[{"text":"  bonjour  "}]},"finishReason":"STOP"}]}`

func newTestClient(t *testing.T, maxRetries int, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), config.GeminiConfig{
		APIKey:     "test-key",
		ModelName:  "gemini-test",
		MaxRetries: maxRetries,
	}, "be brief", nil, WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(context.Background(), config.GeminiConfig{}, "", nil); err == nil {
		t.Fatal("NewClient() without key succeeded")
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	var path string
	c := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	})

	reply, err := c.Generate(context.Background(), &ai.Request{
		UserID:  1,
		Prompt:  "hello",
		History: []ai.Turn{{Role: ai.RoleUser, Text: "hi"}, {Role: ai.RoleAssistant, Text: "hey"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "bonjour" {
		t.Fatalf("reply = %q", reply)
	}
	if !strings.Contains(path, "gemini-test:generateContent") {
		t.Fatalf("path = %q", path)
	}
}

func TestGenerateRetriesUnavailable(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
			return
		}
		_, _ = w.Write([]byte(okBody))
	})

	if _, err := c.Generate(context.Background(), &ai.Request{Prompt: "q"}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestGenerateEmptyCandidates(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	if _, err := c.Generate(context.Background(), &ai.Request{Prompt: "q"}); !errors.Is(err, ai.ErrEmptyResponse) {
		t.Fatalf("Generate() error = %v, want ErrEmptyResponse", err)
	}
	if _, err := c.Generate(context.Background(), &ai.Request{Prompt: " "}); !errors.Is(err, ai.ErrEmptyPrompt) {
		t.Fatalf("Generate(blank) error = %v, want ErrEmptyPrompt", err)
	}
}

func TestIsRetriable(t *testing.T) {
	t.Parallel()

	for code, want := range map[int]bool{500: true, 503: true, 400: false, 429: false} {
		if got := isRetriable(code); got != want {
			t.Errorf("isRetriable(%d) = %v, want %v", code, got, want)
		}
	}
}
