package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/relaybot/internal/ai"
	"github.com/edgard/relaybot/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(config.OpenAIConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL + "/v1/",
		Model:      "gpt-test",
		ImageModel: "dall-e-3",
		ImageSize:  "1024x1024",
		MaxTokens:  100,
	}, "be nice", 5*time.Second, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.firstBackoff = time.Millisecond
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := New(config.OpenAIConfig{}, "", time.Second, nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("New() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Name    string `json:"name"`
		} `json:"messages"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			writeJSON(w, http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" hi there "},"finish_reason":"stop"}]}`)
	})

	reply, err := c.Generate(context.Background(), &ai.Request{
		UserID:   1,
		UserName: "Bob Smith!",
		Prompt:   "hello",
		History: []ai.Turn{
			{Role: ai.RoleUser, Text: "earlier"},
			{Role: ai.RoleAssistant, Text: "answer"},
		},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "hi there" {
		t.Fatalf("reply = %q", reply)
	}

	if got.Model != "gpt-test" || len(got.Messages) != 4 {
		t.Fatalf("request = %+v", got)
	}
	roles := []string{"system", "user", "assistant", "user"}
	for i, m := range got.Messages {
		if m.Role != roles[i] {
			t.Errorf("message %d role = %q, want %q", i, m.Role, roles[i])
		}
	}
	if got.Messages[3].Name != "BobSmith" {
		t.Errorf("name = %q, want BobSmith", got.Messages[3].Name)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusInternalServerError, `{"error":{"message":"overloaded","type":"server_error"}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	})

	reply, err := c.Generate(context.Background(), &ai.Request{Prompt: "q"})
	if err != nil || reply != "ok" {
		t.Fatalf("Generate() = %q, %v", reply, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestGeneratePermanentError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, `{"error":{"message":"context too long","type":"invalid_request_error","code":"context_length_exceeded"}}`)
	})

	if _, err := c.Generate(context.Background(), &ai.Request{Prompt: "q"}); err == nil {
		t.Fatal("Generate() succeeded")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestGenerateImage(t *testing.T) {
	t.Parallel()

	var req struct {
		Prompt string `json:"prompt"`
		Model  string `json:"model"`
		Size   string `json:"size"`
		N      int    `json:"n"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, `{"created":1,"data":[{"url":"https://img.example/cat.png"}]}`)
	})

	url, err := c.GenerateImage(context.Background(), "a cat")
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if url != "https://img.example/cat.png" {
		t.Fatalf("url = %q", url)
	}
	if req.Prompt != "a cat" || req.Model != "dall-e-3" || req.Size != "1024x1024" || req.N != 1 {
		t.Fatalf("request = %+v", req)
	}

	if _, err := c.GenerateImage(context.Background(), " "); !errors.Is(err, ai.ErrEmptyPrompt) {
		t.Fatalf("GenerateImage(blank) error = %v, want ErrEmptyPrompt", err)
	}
}

func TestGenerateImageEmptyData(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"created":1,"data":[]}`)
	})

	if _, err := c.GenerateImage(context.Background(), "x"); !errors.Is(err, ErrNoImage) {
		t.Fatalf("GenerateImage() error = %v, want ErrNoImage", err)
	}
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"alice":      "alice",
		"Bob Smith!": "BobSmith",
		"émile_1-2":  "mile_1-2",
		"":           "",
	}
	for in, want := range tests {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
