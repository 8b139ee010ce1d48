// Package config loads HappyBot configuration from defaults, an optional YAML
// file, an optional .env file and the environment, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key looked up in the
// environment, e.g. HAPPYBOT_AI_MODEL for ai.model.
const EnvPrefix = "HAPPYBOT"

// ErrConfiguration wraps every error returned by Load.
var ErrConfiguration = errors.New("configuration error")

// Config is the complete application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	AI        AIConfig        `mapstructure:"ai"`
	Speech    SpeechConfig    `mapstructure:"speech"`
	Session   SessionConfig   `mapstructure:"session"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Prompt    PromptConfig    `mapstructure:"prompt"`
	Checkin   CheckinConfig   `mapstructure:"checkin"`
	Media     MediaConfig     `mapstructure:"media"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig selects webhook mode when WebhookURL is set and long
// polling otherwise.
type TelegramConfig struct {
	Token              string `mapstructure:"token"                validate:"required"`
	WebhookURL         string `mapstructure:"webhook_url"          validate:"omitempty,url"`
	WebhookSecret      string `mapstructure:"webhook_secret"`
	DropPendingUpdates bool   `mapstructure:"drop_pending_updates"`
}

// AIConfig configures the completion provider.
type AIConfig struct {
	Provider    string        `mapstructure:"provider"    validate:"required,oneof=openai gemini"`
	APIKey      string        `mapstructure:"api_key"     validate:"required"`
	BaseURL     string        `mapstructure:"base_url"    validate:"omitempty,url"`
	Model       string        `mapstructure:"model"       validate:"required"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"min=0"`

	// BreakerFailures consecutive upstream failures open the circuit for
	// BreakerCooldown. Zero disables the breaker.
	BreakerFailures int           `mapstructure:"breaker_failures" validate:"min=0"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" validate:"min=0"`
}

// applyProviderDefaults fills an unset base URL and model for the selected
// provider. Gemini keeps an empty base URL so genai uses its own endpoint.
func (c *AIConfig) applyProviderDefaults() {
	switch c.Provider {
	case "gemini":
		if c.Model == "" {
			c.Model = DefaultGeminiModel
		}
	case "", DefaultAIProvider:
		if c.BaseURL == "" {
			c.BaseURL = DefaultAIBaseURL
		}
		if c.Model == "" {
			c.Model = DefaultAIModel
		}
	}
}

// SpeechConfig configures voice transcription and spoken replies. When
// disabled, voice notes get the "could not understand" reply.
type SpeechConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"api_key"   validate:"required_if=Enabled true"`
	BaseURL  string `mapstructure:"base_url"  validate:"omitempty,url"`
	STTModel string `mapstructure:"stt_model" validate:"required_if=Enabled true"`
	TTSModel string `mapstructure:"tts_model" validate:"required_if=Enabled true"`
	Voice    string `mapstructure:"voice"     validate:"required_if=Enabled true"`
	Language string `mapstructure:"language"`
}

// SessionConfig holds the session store URL: redis://, rediss://, sqlite://
// or empty for in-memory sessions.
type SessionConfig struct {
	URL string `mapstructure:"url"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port"             validate:"min=1,max=65535"`
	StaticDir       string        `mapstructure:"static_dir"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// PromptConfig overrides prompt templates by topic label.
type PromptConfig struct {
	Templates map[string]string `mapstructure:"templates"`
}

// CheckinConfig describes the weekly wellbeing poll.
type CheckinConfig struct {
	Schedule string   `mapstructure:"schedule" validate:"required"`
	Question string   `mapstructure:"question" validate:"required,max=300"`
	Options  []string `mapstructure:"options"  validate:"min=2,max=10,dive,required,max=100"`
}

type MediaConfig struct {
	Sticker          string `mapstructure:"sticker"            validate:"required"`
	ExerciseVideoURL string `mapstructure:"exercise_video_url" validate:"required,url"`
	ExerciseCaption  string `mapstructure:"exercise_caption"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds user-facing texts.
type MessagesConfig struct {
	Welcome          string `mapstructure:"welcome"           validate:"required"`
	Help             string `mapstructure:"help"              validate:"required"`
	GeneralError     string `mapstructure:"general_error"     validate:"required"`
	CheckinScheduled string `mapstructure:"checkin_scheduled" validate:"required"`
	PollThanks       string `mapstructure:"poll_thanks"       validate:"required"`
}

// envAliases binds keys to the unprefixed variable names used by existing
// deployments, in addition to the HAPPYBOT_ prefixed form.
var envAliases = map[string][]string{
	"telegram.token":       {"TELEGRAM_TOKEN"},
	"telegram.webhook_url": {"WEBHOOK_URL"},
	"ai.api_key":           {"SEA_LION_API_KEY"},
	"speech.api_key":       {"OPENAI_API_KEY"},
	"session.url":          {"REDIS_URL"},
	"http.port":            {"PORT"},
}

// Load reads configuration in increasing order of precedence: defaults, the
// YAML file at path (optional), then the environment. A .env file in the
// working directory is loaded first without overriding variables that are
// already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env: %v", ErrConfiguration, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		names := append([]string{envName(key)}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("%w: failed to bind %s: %v", ErrConfiguration, key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read %s: %v", ErrConfiguration, path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}
	cfg.AI.applyProviderDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// SpeechEnabled reports whether voice notes can be transcribed.
func (c *Config) SpeechEnabled() bool {
	return c.Speech.Enabled && c.Speech.APIKey != ""
}

// WebhookMode reports whether updates arrive through the HTTP webhook.
func (c *Config) WebhookMode() bool {
	return c.Telegram.WebhookURL != ""
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
