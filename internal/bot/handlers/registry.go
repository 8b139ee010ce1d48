package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/happybot/internal/telegram"
)

// RegisterAllCommands returns every handler except the default text handler,
// which is installed with tgbot.WithDefaultHandler.
func RegisterAllCommands(deps HandlerDeps) map[string]telegram.RegisteredHandler {
	handlers := make(map[string]telegram.RegisteredHandler)

	command := func(name, description string, h tgbot.HandlerFunc) {
		handlers["/"+name] = telegram.RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     name,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Handler:     h,
			Description: description,
		}
	}

	command("start", "Begin chatting with HappyBot", NewStartHandler(deps))
	command("help", "Show the help menu", NewHelpHandler(deps))
	command("checkin", "Schedule a weekly wellbeing poll", NewCheckinHandler(deps))
	command("exercise", "Watch a short Tai Chi video", NewExerciseHandler(deps))
	command("sticker", "Get an exercise sticker", NewStickerHandler(deps))

	handlers["voice"] = telegram.RegisteredHandler{
		Match:   telegram.IsVoiceMessage,
		Handler: NewVoiceHandler(deps),
	}
	handlers["poll_answer"] = telegram.RegisteredHandler{
		Match:   telegram.IsPollAnswer,
		Handler: NewPollAnswerHandler(deps),
	}

	return handlers
}
