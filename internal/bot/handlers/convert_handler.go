package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/crypto"
)

// NewConvertHandler returns a handler for /convert.
func NewConvertHandler(deps HandlerDeps) bot.HandlerFunc {
	return convertHandler{deps}.Handle
}

type convertHandler struct {
	deps HandlerDeps
}

func convertUsage() string {
	return "Usage: /convert <amount> <from> <to>\n" +
		"Example: /convert 0.5 BTC EUR\n" +
		"Crypto: " + strings.Join(crypto.Symbols(), ", ") + "\n" +
		"Fiat: " + strings.Join(crypto.Fiats(), ", ")
}

// parseConversion reads "<amount> <from> <to>". An optional "to" between the
// symbols is accepted.
func parseConversion(payload string) (amount float64, from, to string, problem string) {
	args := strings.Fields(payload)
	if len(args) == 4 && strings.EqualFold(args[2], "to") {
		args = append(args[:2], args[3])
	}
	if len(args) != 3 {
		return 0, "", "", convertUsage()
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(args[0], ",", ""), 64)
	if err != nil || !(amount > 0) || math.IsInf(amount, 1) {
		return 0, "", "", "❌ Amount must be a number greater than zero."
	}
	from, to = strings.ToUpper(args[1]), strings.ToUpper(args[2])
	for _, s := range []string{from, to} {
		if !crypto.IsSupported(s) && !crypto.IsFiat(s) {
			return 0, "", "", fmt.Sprintf("❌ Unsupported symbol %s.\n\n%s", s, convertUsage())
		}
	}
	if from == to {
		return 0, "", "", "❌ Pick two different symbols."
	}
	return amount, from, to, ""
}

func convertValidator(update *models.Update) string {
	if update.Message == nil {
		return ""
	}
	_, _, _, problem := parseConversion(commandPayload(update.Message.Text))
	return problem
}

func (h convertHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := h.deps.Logger.With("handler", "convert", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	amount, from, to, problem := parseConversion(commandPayload(msg.Text))
	if problem != "" {
		reply(ctx, b, h.deps, update, problem)
		return
	}

	c, err := crypto.Convert(ctx, h.deps.Prices, amount, from, to)
	switch {
	case errors.Is(err, crypto.ErrUnsupportedSymbol), errors.Is(err, crypto.ErrNoPrice):
		log.WarnContext(ctx, "No quote for conversion", "from", from, "to", to, "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.UnknownSymbol)
		return
	case err != nil:
		log.ErrorContext(ctx, "Conversion failed", "from", from, "to", to, "error", err)
		reply(ctx, b, h.deps, update, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, h.deps, update, formatConversion(c))
}

func formatConversion(c *crypto.Conversion) string {
	return fmt.Sprintf("💱 %s %s = %s %s\nRate: 1 %s = %s %s",
		formatAmount(c.Amount, c.From), c.From,
		formatAmount(c.Result, c.To), c.To,
		c.From, formatAmount(c.Rate(), c.To), c.To)
}

// formatAmount prints fiat with cents (whole units for weak currencies) and
// crypto with up to eight decimals.
func formatAmount(v float64, symbol string) string {
	if crypto.IsFiat(symbol) {
		switch symbol {
		case "JPY", "CNY", "INR":
			if v >= 100 {
				return strconv.FormatFloat(v, 'f', 0, 64)
			}
		}
		return formatPrice(v)
	}
	s := strconv.FormatFloat(v, 'f', 8, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
