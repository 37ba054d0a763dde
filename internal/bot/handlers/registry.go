package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/relaybot/internal/ratelimit"
)

// RegisteredHandler represents a command handler with its description and middleware.
// It encapsulates all information needed to register and document a command.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
	// Description is shown in the client's command menu. Empty keeps the
	// handler out of it.
	Description string
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
// It configures each command with appropriate handlers and middleware.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	command := func(name, description string, h tgbot.HandlerFunc, mw ...tgbot.Middleware) {
		handlers["/"+name] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     name,
			Handler:     h,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  mw,
			Description: description,
		}
	}
	limited := func(c ratelimit.Category, validators ...Validator) tgbot.Middleware {
		return RateLimited(deps, c, validators...)
	}

	command("start", "Welcome message", NewStartHandler(deps))
	command("help", "List commands", NewHelpHandler(deps))
	command("menu", "Interactive menu", NewMenuHandler(deps))

	command("ask", "Ask the AI a question", NewAskHandler(deps), limited(ratelimit.CategoryAIRequest, promptRequired(deps)))
	command("forget", "Clear your AI conversation", NewForgetHandler(deps), limited(ratelimit.CategoryCommand))
	command("draw", "Generate an image", NewDrawHandler(deps), limited(ratelimit.CategoryImageGeneration, promptRequired(deps)))
	command("price", "Crypto price", NewPriceHandler(deps), limited(ratelimit.CategoryCryptoLookup, priceValidator(deps)))
	command("convert", "Convert between crypto and fiat", NewConvertHandler(deps), limited(ratelimit.CategoryCryptoLookup, convertValidator))

	command("mines", "Mines multiplier", NewMinesHandler(deps), limited(ratelimit.CategoryCommand, calculationValidator(minesAnswer)))
	command("mines_target", "Boards for a target multiplier", NewMinesTargetHandler(deps), limited(ratelimit.CategoryCommand, calculationValidator(minesTargetAnswer)))
	command("b2b", "Back-to-back progression", NewB2BHandler(deps), limited(ratelimit.CategoryCommand, calculationValidator(b2bAnswer)))

	command("todo", "Your todo list", NewTodoListHandler(deps), limited(ratelimit.CategoryCommand))
	command("todo_add", "Add a todo", NewTodoAddHandler(deps), limited(ratelimit.CategoryCommand, todoTextValidator))
	command("todo_done", "Complete a todo", NewTodoDoneHandler(deps), limited(ratelimit.CategoryCommand, idValidator("/todo_done")))
	command("todo_remove", "Remove a todo", NewTodoRemoveHandler(deps), limited(ratelimit.CategoryCommand, idValidator("/todo_remove")))
	command("todo_stats", "Todo progress", NewTodoStatsHandler(deps), limited(ratelimit.CategoryCommand))

	command("set_timezone", "Set your timezone", NewSetTimezoneHandler(deps), limited(ratelimit.CategoryCommand, timezoneValidator))
	command("my_time", "Your local time", NewMyTimeHandler(deps), limited(ratelimit.CategoryCommand))
	command("remind_me", "Schedule a reminder", NewRemindMeHandler(deps), limited(ratelimit.CategoryCommand, reminderValidator(deps)))
	command("list_reminders", "Your pending reminders", NewListRemindersHandler(deps), limited(ratelimit.CategoryCommand))
	command("cancel_reminder", "Cancel a reminder", NewCancelReminderHandler(deps), limited(ratelimit.CategoryCommand, idValidator("/cancel_reminder")))

	command("poll", "Start a poll", NewPollHandler(deps), limited(ratelimit.CategoryCommand, pollValidator))
	command("poll_close", "Close a poll", NewPollCloseHandler(deps), limited(ratelimit.CategoryCommand))

	command("mystats", "Your usage", NewMyStatsHandler(deps))
	command("limits", "Your remaining quota", NewLimitsHandler(deps))

	adminMiddleware := []tgbot.Middleware{AdminOnly(deps), limited(ratelimit.CategoryAdmin)}
	command("stats", "", NewStatsHandler(deps), adminMiddleware...)
	command("limits_reset", "", NewLimitsResetHandler(deps), adminMiddleware...)

	handlers[menuPrefix] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     menuPrefix,
		Handler:     NewMenuCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}
	handlers[pollPrefix] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     pollPrefix,
		Handler:     NewPollVoteHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}

	return handlers
}
