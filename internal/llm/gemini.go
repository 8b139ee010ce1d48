package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/happybot/internal/config"
)

// ProviderGemini selects Google's Gemini API.
const ProviderGemini = "gemini"

type geminiClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	maxRetries    int
	retryDelay    time.Duration
}

// NewGeminiClient creates a Completer backed by the Gemini API.
func NewGeminiClient(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if log == nil {
		log = slog.Default()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	gi, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.Model)

	return &geminiClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: &genai.GenerateContentConfig{Temperature: &temperature},
		modelName:     cfg.Model,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
	}, nil
}

func (c *geminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents)
	if err != nil {
		return "", err
	}

	text, err := textFromResponse(resp)
	if err != nil {
		c.log.WarnContext(ctx, "Gemini response unusable", "error", err)
		return "", &UpstreamError{Provider: ProviderGemini, Err: err}
	}
	return text, nil
}

// generateContentWithRetries retries only on 500 and 503.
func (c *geminiClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	for i := 0; ; i++ {
		resp, err := c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, c.contentConfig)
		if err == nil {
			return resp, nil
		}

		var apiErr genai.APIError
		var apiErrPtr *genai.APIError
		status := 0
		switch {
		case errors.As(err, &apiErr):
			status = apiErr.Code
		case errors.As(err, &apiErrPtr):
			status = apiErrPtr.Code
		}

		retriable := status == http.StatusInternalServerError || status == http.StatusServiceUnavailable
		if !retriable || i >= c.maxRetries {
			c.log.ErrorContext(ctx, "Gemini API call failed", "attempt", i+1, "code", status, "error", err)
			return nil, &UpstreamError{Provider: ProviderGemini, StatusCode: status, Err: err}
		}

		c.log.InfoContext(ctx, "Retrying Gemini API call", "attempt", i+1, "max_retries", c.maxRetries, "delay", c.retryDelay, "code", status)
		select {
		case <-ctx.Done():
			return nil, &UpstreamError{Provider: ProviderGemini, StatusCode: status, Err: ctx.Err()}
		case <-time.After(c.retryDelay):
		}
	}
}

func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errEmptyCompletion
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified && resp.PromptFeedback.BlockReason != "" {
		reason := string(resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return "", fmt.Errorf("blocked by safety filter: %s", reason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" && resp.Candidates[0].FinishReason != genai.FinishReasonStop {
			return "", fmt.Errorf("no content, finish reason: %s", resp.Candidates[0].FinishReason)
		}
		return "", errEmptyCompletion
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}
