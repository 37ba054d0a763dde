package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/casino"
	"github.com/edgard/relaybot/internal/crypto"
)

// NewPriceHandler returns a handler for the /price command.
func NewPriceHandler(deps HandlerDeps) bot.HandlerFunc {
	return priceHandler{deps}.Handle
}

type priceHandler struct {
	deps HandlerDeps
}

const priceUsagePrefix = "Usage: /price <symbol>\nSupported: "

// priceValidator rejects malformed or unknown symbols without a lookup.
func priceValidator(deps HandlerDeps) Validator {
	return func(update *models.Update) string {
		if update.Message == nil {
			return ""
		}
		args := commandArgs(update.Message.Text)
		switch {
		case len(args) != 1:
			return priceUsagePrefix + strings.Join(crypto.Symbols(), ", ")
		case !crypto.IsSupported(args[0]):
			return deps.Config.Messages.UnknownSymbol
		}
		return ""
	}
}

func (h priceHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := h.deps.Logger.With("handler", "price", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	args := commandArgs(msg.Text)
	if len(args) != 1 {
		reply(ctx, b, h.deps, update, priceUsagePrefix+strings.Join(crypto.Symbols(), ", "))
		return
	}

	q, err := h.deps.Prices.Price(ctx, args[0])
	switch {
	case errors.Is(err, crypto.ErrUnsupportedSymbol):
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.UnknownSymbol)
		return
	case err != nil:
		log.ErrorContext(ctx, "Price lookup failed", "symbol", args[0], "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, h.deps, update, formatQuote(q))
}

func formatQuote(q *crypto.Quote) string {
	trend := "📈"
	if q.Change24h < 0 {
		trend = "📉"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", q.Name, q.Symbol)
	fmt.Fprintf(&sb, "Price: $%s\n", formatPrice(q.PriceUSD))
	fmt.Fprintf(&sb, "24h: %s %+.2f%%\n", trend, q.Change24h)
	if q.MarketCap > 0 {
		fmt.Fprintf(&sb, "Market cap: $%s\n", casino.FormatNumber(q.MarketCap))
	}
	if q.Volume24h > 0 {
		fmt.Fprintf(&sb, "Volume 24h: $%s\n", casino.FormatNumber(q.Volume24h))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatPrice(v float64) string {
	switch {
	case v >= 1:
		return fmt.Sprintf("%.2f", v)
	case v >= 0.01:
		return fmt.Sprintf("%.4f", v)
	default:
		return fmt.Sprintf("%.8f", v)
	}
}
