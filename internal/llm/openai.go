package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	gopenai "github.com/sashabaranov/go-openai"

	"github.com/edgard/happybot/internal/config"
)

// ProviderOpenAI selects any OpenAI-compatible chat completions endpoint
// (SEA-LION by default).
const ProviderOpenAI = "openai"

type openAIClient struct {
	client      *gopenai.Client
	baseURL     string
	model       string
	temperature float32
	maxRetries  int
	retryDelay  time.Duration
	log         *slog.Logger
}

// NewOpenAIClient creates a Completer for an OpenAI-compatible API.
func NewOpenAIClient(cfg config.AIConfig, log *slog.Logger) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai API key is required")
	}
	if log == nil {
		log = slog.Default()
	}

	aiConfig := gopenai.DefaultConfig(cfg.APIKey)
	aiConfig.BaseURL = cfg.BaseURL
	if aiConfig.BaseURL == "" {
		aiConfig.BaseURL = config.DefaultAIBaseURL
	}

	logger := log.With("component", "openai_client")
	logger.Info("OpenAI-compatible client initialized", "model", cfg.Model, "base_url", aiConfig.BaseURL)

	return &openAIClient{
		client:      gopenai.NewClientWithConfig(aiConfig),
		baseURL:     aiConfig.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		log:         logger,
	}, nil
}

func (c *openAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.log.DebugContext(ctx, "Requesting completion", "prompt_length", len(prompt))

	req := gopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	}

	var resp gopenai.ChatCompletionResponse
	err := retry.Do(
		func() error {
			var err error
			resp, err = c.client.CreateChatCompletion(ctx, req)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryableOpenAIError),
		retry.OnRetry(func(n uint, err error) {
			c.log.InfoContext(ctx, "Retrying completion request", "attempt", n+1, "max_retries", c.maxRetries, "error", err)
		}),
	)
	if err != nil {
		ue := &UpstreamError{Provider: ProviderOpenAI, StatusCode: statusFromOpenAIError(err), Err: err}
		c.log.ErrorContext(ctx, "Completion request failed", "status", ue.StatusCode, "error", err)
		return "", ue
	}

	if len(resp.Choices) == 0 {
		c.log.WarnContext(ctx, "Completion response had no choices")
		return "", &UpstreamError{Provider: ProviderOpenAI, Err: errEmptyCompletion}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		c.log.WarnContext(ctx, "Completion response had empty content", "finish_reason", resp.Choices[0].FinishReason)
		return "", &UpstreamError{Provider: ProviderOpenAI, Err: errEmptyCompletion}
	}

	c.log.DebugContext(ctx, "Completion received", "reply_length", len(text), "total_tokens", resp.Usage.TotalTokens)
	return text, nil
}

// retryableOpenAIError reports whether a failed request may succeed when
// repeated: transport errors, rate limiting and 5xx answers.
func retryableOpenAIError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	status := statusFromOpenAIError(err)
	return status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func statusFromOpenAIError(err error) int {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *gopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
