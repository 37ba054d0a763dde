package crypto

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrInvalidAmount is returned for amounts that are not positive and finite.
var ErrInvalidAmount = errors.New("amount must be a positive number")

// fiatPerUSD holds fixed reference rates: units of each currency per US
// dollar. They are not refreshed.
var fiatPerUSD = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"JPY": 149.50,
	"AUD": 1.53,
	"CAD": 1.36,
	"CHF": 0.88,
	"CNY": 7.24,
	"INR": 83.12,
}

// Quoter returns USD quotes for crypto tickers. *Client implements it.
type Quoter interface {
	Price(ctx context.Context, symbol string) (*Quote, error)
}

// IsSupported reports whether symbol is a tracked crypto ticker.
func IsSupported(symbol string) bool {
	_, ok := coinIDs[normalize(symbol)]
	return ok
}

// IsFiat reports whether symbol is one of the fixed-rate fiat currencies.
func IsFiat(symbol string) bool {
	_, ok := fiatPerUSD[normalize(symbol)]
	return ok
}

// Fiats returns the fiat currency codes in alphabetical order.
func Fiats() []string {
	out := make([]string, 0, len(fiatPerUSD))
	for s := range fiatPerUSD {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Conversion is the result of converting Amount of From into To.
type Conversion struct {
	From    string
	To      string
	Amount  float64
	Result  float64
	FromUSD float64 // USD value of one unit of From
	ToUSD   float64 // USD value of one unit of To
}

// Rate is how many units of To one unit of From buys.
func (c *Conversion) Rate() float64 {
	return c.FromUSD / c.ToUSD
}

// Convert prices amount of from in to, going through USD. Either side may be
// a crypto ticker or a fiat code.
func Convert(ctx context.Context, q Quoter, amount float64, from, to string) (*Conversion, error) {
	if amount <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		return nil, ErrInvalidAmount
	}
	from, to = normalize(from), normalize(to)

	fromUSD, err := usdValue(ctx, q, from)
	if err != nil {
		return nil, err
	}
	toUSD, err := usdValue(ctx, q, to)
	if err != nil {
		return nil, err
	}

	return &Conversion{
		From:    from,
		To:      to,
		Amount:  amount,
		Result:  amount * fromUSD / toUSD,
		FromUSD: fromUSD,
		ToUSD:   toUSD,
	}, nil
}

func usdValue(ctx context.Context, q Quoter, symbol string) (float64, error) {
	if rate, ok := fiatPerUSD[symbol]; ok {
		return 1 / rate, nil
	}
	if !IsSupported(symbol) {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedSymbol, symbol)
	}
	quote, err := q.Price(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if quote.PriceUSD <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	return quote.PriceUSD, nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
