package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/relaybot/internal/casino"
)

const (
	minesUsage       = "Usage: /mines <mines> <diamonds>\nExample: /mines 3 2\nThe board has 25 tiles; mines plus diamonds must not exceed 25."
	minesTargetUsage = "Usage: /mines_target <multiplier>\nExample: /mines_target 2.5"
	b2bUsage         = "Usage: /b2b <base> <multiplier> <increase%> [rounds]\nExample: /b2b 100 2 10"
	maxB2BRounds     = 50
)

// calculation turns a command text into the reply, or into the problem to
// report when the arguments are unusable. Calculations are pure, so the
// rate limit validator and the handler can both run them.
type calculation func(text string) (answer string, mode models.ParseMode, problem string)

// NewMinesHandler returns a handler for /mines. A single argument is treated
// as a target multiplier.
func NewMinesHandler(deps HandlerDeps) bot.HandlerFunc {
	return casinoHandler{deps: deps, calc: minesAnswer}.Handle
}

// NewMinesTargetHandler returns a handler for /mines_target.
func NewMinesTargetHandler(deps HandlerDeps) bot.HandlerFunc {
	return casinoHandler{deps: deps, calc: minesTargetAnswer}.Handle
}

// NewB2BHandler returns a handler for /b2b.
func NewB2BHandler(deps HandlerDeps) bot.HandlerFunc {
	return casinoHandler{deps: deps, calc: b2bAnswer}.Handle
}

type casinoHandler struct {
	deps HandlerDeps
	calc calculation
}

func (h casinoHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	answer, mode, problem := h.calc(update.Message.Text)
	if problem != "" {
		reply(ctx, b, h.deps, update, problem)
		return
	}
	send(ctx, b, h.deps, update, answer, mode, nil)
}

// calculationValidator rejects updates whose calculation would fail.
func calculationValidator(calc calculation) Validator {
	return func(update *models.Update) string {
		if update.Message == nil {
			return ""
		}
		_, _, problem := calc(update.Message.Text)
		return problem
	}
}

func minesAnswer(text string) (string, models.ParseMode, string) {
	args := commandArgs(text)
	switch len(args) {
	case 1:
		return targetAnswer(args[0])
	case 2:
	default:
		return "", "", minesUsage
	}

	mines, err1 := strconv.Atoi(args[0])
	diamonds, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return "", "", "Please provide whole numbers.\n\n" + minesUsage
	}

	res, err := casino.Mines(mines, diamonds)
	if err != nil {
		return "", "", calcProblem(err, minesUsage)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💎 %d mines and %d diamonds: %sx\n", res.Mines, res.Diamonds, formatMultiplier(res.Multiplier))
	fmt.Fprintf(&sb, "🎲 Winning chance: %s%%\n", strconv.FormatFloat(res.WinChance, 'f', -1, 64))
	if len(res.Close) > 0 {
		sb.WriteString("\nClose multipliers:\n")
		for _, c := range res.Close {
			fmt.Fprintf(&sb, "🔹 %d mines and %d diamonds: %sx\n", c.Mines, c.Diamonds, formatMultiplier(c.Multiplier))
		}
	}
	return strings.TrimRight(sb.String(), "\n"), "", ""
}

func minesTargetAnswer(text string) (string, models.ParseMode, string) {
	args := commandArgs(text)
	if len(args) != 1 {
		return "", "", minesTargetUsage
	}
	return targetAnswer(args[0])
}

func targetAnswer(arg string) (string, models.ParseMode, string) {
	target, err := parseNumber(arg)
	if err != nil {
		return "", "", "Please provide a valid number.\n\n" + minesTargetUsage
	}

	combos, err := casino.MinesTarget(target)
	if err != nil {
		return "", "", calcProblem(err, minesTargetUsage)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💎 Boards closest to %sx:\n", strconv.FormatFloat(target, 'f', -1, 64))
	for i, c := range combos {
		fmt.Fprintf(&sb, "%d. %d mines and %d diamonds: %sx\n", i+1, c.Mines, c.Diamonds, formatMultiplier(c.Multiplier))
	}
	return strings.TrimRight(sb.String(), "\n"), "", ""
}

func b2bAnswer(text string) (string, models.ParseMode, string) {
	args := commandArgs(text)
	if len(args) < 3 || len(args) > 4 {
		return "", "", b2bUsage
	}

	var vals [3]float64
	for i := range vals {
		v, err := parseNumber(args[i])
		if err != nil {
			return "", "", "Please provide valid numbers.\n\n" + b2bUsage
		}
		vals[i] = v
	}
	rounds := casino.DefaultRounds
	if len(args) == 4 {
		n, err := strconv.Atoi(args[3])
		if err != nil || n < 1 || n > maxB2BRounds {
			return "", "", fmt.Sprintf("Rounds must be between 1 and %d.", maxB2BRounds)
		}
		rounds = n
	}

	p, err := casino.B2B(vals[0], vals[1], vals[2], rounds)
	if err != nil {
		return "", "", calcProblem(err, b2bUsage)
	}
	return renderProgression(p), models.ParseModeHTML, ""
}

// calcProblem strips the sentinel prefix so users see only the reason.
func calcProblem(err error, usage string) string {
	return "❌ " + strings.TrimPrefix(err.Error(), casino.ErrInvalidInput.Error()+": ") + "\n\n" + usage
}

func renderProgression(p *casino.Progression) string {
	var sb strings.Builder
	sb.WriteString("🎲 <b>Back-to-back progression</b>\n<pre>")
	fmt.Fprintf(&sb, "%-6s %-10s %-10s %-10s\n", "Round", "Bet", "Result", "Total")
	for _, r := range p.Rounds {
		fmt.Fprintf(&sb, "%-6d %-10s %-10s %-10s\n", r.Number,
			casino.FormatNumber(r.Bet), casino.FormatNumber(r.Result), casino.FormatNumber(r.Total))
	}
	sb.WriteString("</pre>\n")
	fmt.Fprintf(&sb, "Base bet: <code>%s</code>\n", casino.FormatNumber(p.Base))
	fmt.Fprintf(&sb, "Multiplier: <code>%.2fx</code>\n", p.Multiplier)
	fmt.Fprintf(&sb, "Increase: <code>%.1f%%</code>\n", p.Increase)
	fmt.Fprintf(&sb, "Total after %d rounds: <code>%s</code>", len(p.Rounds), casino.FormatNumber(p.Total()))
	return sb.String()
}

// parseNumber accepts both "2.5" and "2,5".
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

func formatMultiplier(m float64) string {
	return strconv.FormatFloat(m, 'f', 2, 64)
}
