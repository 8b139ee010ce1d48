package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for optional configuration.
const (
	DefaultLogLevel = "info"

	DefaultAIProvider    = "openai"
	// DefaultAIBaseURL and DefaultAIModel apply to the openai provider only.
	DefaultAIBaseURL     = "https://api.sea-lion.ai/v1"
	DefaultAIModel       = "aisingapore/Gemma-SEA-LION-v3-9B-IT"
	DefaultGeminiModel   = "gemini-2.0-flash"
	DefaultAITemperature = 0.7
	DefaultAITimeout     = time.Minute
	DefaultAIMaxRetries  = 2
	DefaultAIRetryDelay  = 2 * time.Second

	DefaultAIBreakerFailures = 5
	DefaultAIBreakerCooldown = 30 * time.Second

	DefaultSpeechBaseURL  = "https://api.openai.com/v1"
	DefaultSpeechSTTModel = "whisper-1"
	DefaultSpeechTTSModel = "tts-1"
	DefaultSpeechVoice    = "nova"

	DefaultSessionURL = "redis://localhost:6379"

	DefaultHTTPPort            = 10000
	DefaultHTTPStaticDir       = "static"
	DefaultHTTPShutdownTimeout = 10 * time.Second

	// Mondays at 09:00.
	DefaultCheckinSchedule = "0 9 * * 1"
	DefaultCheckinQuestion = "How are you feeling this week?"

	DefaultMediaSticker          = "static/exercise_sticker_id.png"
	DefaultMediaExerciseVideoURL = "https://www.youtube.com/watch?v=y2RAEnWreoE&t=6s"
	DefaultMediaExerciseCaption  = "🧘‍♂️ Try this Tai Chi routine!"
)

var DefaultCheckinOptions = []string{"Great", "Okay", "Not so good"}

var DefaultMessages = MessagesConfig{
	Welcome: "👋 Hello! I’m HappyBot, your friendly companion. Type /help to see what I can do.",
	Help: "/start     – Begin chatting with HappyBot\n" +
		"/help      – Show this help menu\n" +
		"/checkin   – Schedule a weekly wellbeing poll\n" +
		"/exercise  – Watch a short Tai Chi video\n" +
		"/sticker   – Get an exercise sticker\n\n" +
		"You can also send me a voice note and I’ll reply by text and voice!",
	GeneralError:     "Sorry, I'm having trouble answering right now. Please try again in a little while.",
	CheckinScheduled: "✅ Weekly check-in scheduled!",
	PollThanks:       "Thanks for sharing! Talk again next week.",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.drop_pending_updates", true)

	v.SetDefault("ai.provider", DefaultAIProvider)
	v.SetDefault("ai.api_key", "")
	// Filled per provider by AIConfig.applyProviderDefaults.
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.temperature", DefaultAITemperature)
	v.SetDefault("ai.timeout", DefaultAITimeout)
	v.SetDefault("ai.max_retries", DefaultAIMaxRetries)
	v.SetDefault("ai.retry_delay", DefaultAIRetryDelay)
	v.SetDefault("ai.breaker_failures", DefaultAIBreakerFailures)
	v.SetDefault("ai.breaker_cooldown", DefaultAIBreakerCooldown)

	v.SetDefault("speech.enabled", false)
	v.SetDefault("speech.api_key", "")
	v.SetDefault("speech.base_url", DefaultSpeechBaseURL)
	v.SetDefault("speech.stt_model", DefaultSpeechSTTModel)
	v.SetDefault("speech.tts_model", DefaultSpeechTTSModel)
	v.SetDefault("speech.voice", DefaultSpeechVoice)
	v.SetDefault("speech.language", "")

	v.SetDefault("session.url", DefaultSessionURL)

	v.SetDefault("http.port", DefaultHTTPPort)
	v.SetDefault("http.static_dir", DefaultHTTPStaticDir)
	v.SetDefault("http.shutdown_timeout", DefaultHTTPShutdownTimeout)

	v.SetDefault("checkin.schedule", DefaultCheckinSchedule)
	v.SetDefault("checkin.question", DefaultCheckinQuestion)
	v.SetDefault("checkin.options", DefaultCheckinOptions)

	v.SetDefault("media.sticker", DefaultMediaSticker)
	v.SetDefault("media.exercise_video_url", DefaultMediaExerciseVideoURL)
	v.SetDefault("media.exercise_caption", DefaultMediaExerciseCaption)

	v.SetDefault("scheduler.tasks", map[string]any{
		"sql_maintenance": map[string]any{
			"enabled":  true,
			"schedule": "0 3 * * *",
		},
		"session_health": map[string]any{
			"enabled":  true,
			"schedule": "*/15 * * * *",
		},
	})

	v.SetDefault("messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("messages.help", DefaultMessages.Help)
	v.SetDefault("messages.general_error", DefaultMessages.GeneralError)
	v.SetDefault("messages.checkin_scheduled", DefaultMessages.CheckinScheduled)
	v.SetDefault("messages.poll_thanks", DefaultMessages.PollThanks)
}
