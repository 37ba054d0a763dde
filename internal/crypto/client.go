// Package crypto looks up spot prices from the CoinGecko simple price API.
// Outbound calls are throttled with a token bucket, guarded by a circuit
// breaker, and answers are cached per symbol for a short TTL.
package crypto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/edgard/relaybot/internal/config"
	"github.com/edgard/relaybot/internal/resilience"
)

var (
	// ErrUnsupportedSymbol is returned for tickers the bot does not track.
	ErrUnsupportedSymbol = errors.New("unsupported symbol")
	// ErrNoPrice is returned when the API answers without the requested coin.
	ErrNoPrice = errors.New("price not available")
)

// coinIDs maps ticker symbols to CoinGecko coin IDs.
var coinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"BNB":  "binancecoin",
	"SOL":  "solana",
	"ADA":  "cardano",
	"DOT":  "polkadot",
	"LINK": "chainlink",
	"LTC":  "litecoin",
	"BCH":  "bitcoin-cash",
	"XRP":  "ripple",
	"DOGE": "dogecoin",
	"TON":  "the-open-network",
}

var coinNames = map[string]string{
	"BTC":  "Bitcoin",
	"ETH":  "Ethereum",
	"BNB":  "BNB",
	"SOL":  "Solana",
	"ADA":  "Cardano",
	"DOT":  "Polkadot",
	"LINK": "Chainlink",
	"LTC":  "Litecoin",
	"BCH":  "Bitcoin Cash",
	"XRP":  "XRP",
	"DOGE": "Dogecoin",
	"TON":  "Toncoin",
}

// Symbols returns the supported tickers in alphabetical order.
func Symbols() []string {
	out := make([]string, 0, len(coinIDs))
	for s := range coinIDs {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Quote is a USD price snapshot.
type Quote struct {
	Symbol    string
	Name      string
	PriceUSD  float64
	Change24h float64 // percent
	Volume24h float64
	MarketCap float64
	FetchedAt time.Time
}

// Client is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	cache   *ttlCache
	clock   clockwork.Clock
	log     *slog.Logger
	onCall  func(err error)
}

// Option configures a Client.
type Option func(*Client)

// WithClock replaces the clock used for cache expiry.
func WithClock(c clockwork.Clock) Option {
	return func(cl *Client) {
		cl.clock = c
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) {
		cl.http = h
	}
}

// WithBreaker replaces the circuit breaker guarding the API.
func WithBreaker(b *resilience.CircuitBreaker) Option {
	return func(cl *Client) {
		cl.breaker = b
	}
}

// WithCallHook sets a callback invoked after every outbound API call with
// its error, nil on success.
func WithCallHook(fn func(err error)) Option {
	return func(cl *Client) {
		cl.onCall = fn
	}
}

// New creates a price client from the crypto config section.
func New(cfg config.CryptoConfig, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	rpm := max(cfg.RequestsPerMinute, 1)

	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		clock:   clockwork.NewRealClock(),
		log:     log.With("component", "crypto_client"),
	}
	for _, o := range opts {
		o(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.Config{
			Name:        "coingecko",
			MaxFailures: 5,
			OpenTimeout: time.Minute,
			Ignore:      func(err error) bool { return errors.Is(err, ErrNoPrice) },
			Logger:      c.log,
		})
	}
	c.cache = newTTLCache(cfg.CacheTTL, c.clock)
	return c
}

// Price returns the latest quote for symbol, case-insensitive.
func (c *Client) Price(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	id, ok := coinIDs[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSymbol, symbol)
	}

	if q, ok := c.cache.get(symbol); ok {
		return q, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for price API quota: %w", err)
	}

	var q *Quote
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		q, err = c.fetch(ctx, symbol, id)
		if c.onCall != nil {
			c.onCall(err)
		}
		return err
	})
	if err != nil {
		c.log.WarnContext(ctx, "Price lookup failed", "symbol", symbol, "error", err)
		return nil, err
	}

	c.cache.set(symbol, q)
	return q, nil
}

type simplePrice struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
	USD24hVol    float64 `json:"usd_24h_vol"`
	USDMarketCap float64 `json:"usd_market_cap"`
}

func (c *Client) fetch(ctx context.Context, symbol, id string) (*Quote, error) {
	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	q.Set("include_24hr_vol", "true")
	q.Set("include_market_cap", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("price API returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload map[string]simplePrice
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}

	p, ok := payload[id]
	if !ok || p.USD == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}

	return &Quote{
		Symbol:    symbol,
		Name:      coinNames[symbol],
		PriceUSD:  p.USD,
		Change24h: p.USD24hChange,
		Volume24h: p.USD24hVol,
		MarketCap: p.USDMarketCap,
		FetchedAt: c.clock.Now(),
	}, nil
}
