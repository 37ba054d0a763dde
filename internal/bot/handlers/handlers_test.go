package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/relaybot/internal/ai"
	"github.com/edgard/relaybot/internal/config"
	"github.com/edgard/relaybot/internal/crypto"
	"github.com/edgard/relaybot/internal/database"
	"github.com/edgard/relaybot/internal/metrics"
	"github.com/edgard/relaybot/internal/ratelimit"
)

const (
	adminID int64 = 99
	userID  int64 = 7
	chat    int64 = 500
)

type apiCall struct {
	Method string
	Fields map[string]string
}

// fakeAPI stands in for the Telegram Bot API and records every call.
type fakeAPI struct {
	mu     sync.Mutex
	calls  []apiCall
	nextID int
}

func newFakeAPI(t *testing.T) (*tgbot.Bot, *fakeAPI) {
	t.Helper()

	f := &fakeAPI{nextID: 1000}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	b, err := tgbot.New("123456:TEST", tgbot.WithServerURL(srv.URL), tgbot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("tgbot.New() error = %v", err)
	}
	return b, f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	fields := make(map[string]string)
	if err := r.ParseMultipartForm(1 << 20); err == nil {
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
	} else if err := r.ParseForm(); err == nil {
		for k, v := range r.Form {
			fields[k] = v[0]
		}
	}
	method := path.Base(r.URL.Path)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Fields: fields})
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "answerCallbackQuery", "sendChatAction", "setMyCommands":
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	default:
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":%d,"type":"private"}}}`, id, chat)
	}
}

func (f *fakeAPI) sent(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// lastText returns the text of the most recent sendMessage call.
func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	msgs := f.sent("sendMessage")
	if len(msgs) == 0 {
		t.Fatal("no message was sent")
	}
	return msgs[len(msgs)-1].Fields["text"]
}

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(_ context.Context, req *ai.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req.Prompt)
	return g.reply, g.err
}

type fakePrices map[string]crypto.Quote

func (p fakePrices) Price(_ context.Context, symbol string) (*crypto.Quote, error) {
	q, ok := p[strings.ToUpper(symbol)]
	if !ok {
		return nil, crypto.ErrUnsupportedSymbol
	}
	return &q, nil
}

type fakeImages struct{ url string }

func (f fakeImages) GenerateImage(context.Context, string) (string, error) { return f.url, nil }

type testEnv struct {
	deps  HandlerDeps
	clock *clockwork.FakeClock
	gen   *fakeGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	limiter, err := ratelimit.New(map[ratelimit.Category]ratelimit.Policy{
		ratelimit.CategoryAIRequest:       {MaxEvents: 3, Window: time.Minute},
		ratelimit.CategoryImageGeneration: {MaxEvents: 1, Window: time.Hour},
		ratelimit.CategoryCryptoLookup:    {MaxEvents: 5, Window: time.Minute},
		ratelimit.CategoryCommand:         {MaxEvents: 2, Window: time.Minute},
		ratelimit.CategoryAdmin:           {MaxEvents: 10, Window: time.Minute},
	}, ratelimit.WithClock(clock))
	if err != nil {
		t.Fatalf("ratelimit.New() error = %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := &fakeGenerator{reply: "pong"}
	cfg := &config.Config{
		Telegram: config.TelegramConfig{
			AdminUserID: adminID,
			BotInfo:     &models.User{ID: 1, IsBot: true, Username: "relay_bot"},
		},
		AI:       config.AIConfig{Timeout: time.Second},
		Messages: config.DefaultMessages,
	}

	return &testEnv{
		deps: HandlerDeps{
			Logger:    log,
			Config:    cfg,
			Store:     database.NewStore(db, log),
			Limiter:   limiter,
			Assistant: ai.NewAssistant(gen, ai.NewConversations(4), time.Second, log),
			Images:    fakeImages{url: "https://img.example/cat.png"},
			Prices: fakePrices{"BTC": {
				Symbol: "BTC", Name: "Bitcoin", PriceUSD: 65000.5, Change24h: -1.25, MarketCap: 1.2e12,
			}},
			Metrics: metrics.New(),
			Clock:   clock,
		},
		clock: clock,
		gen:   gen,
	}
}

func textUpdate(from int64, chatType models.ChatType, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			From: &models.User{ID: from, FirstName: "Ann", Username: "ann"},
			Chat: models.Chat{ID: chat, Type: chatType},
			Text: text,
		},
	}
}

func callbackUpdate(from int64, messageID int, data string) *models.Update {
	return &models.Update{
		ID: 2,
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-1",
			From: models.User{ID: from, FirstName: "Bob"},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: messageID, Chat: models.Chat{ID: chat, Type: models.ChatTypeGroup}},
			},
		},
	}
}
