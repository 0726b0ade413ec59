package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/englishprint/papergen/internal/config"
	"github.com/englishprint/papergen/internal/domain"
	"github.com/englishprint/papergen/internal/generation"
	"google.golang.org/genai"
)

const (
	defaultMaxRetries        = 3
	defaultRetryDelaySeconds = 2
)

// Generator implements generation.Generator using the Gemini API.
type Generator struct {
	logger  *slog.Logger
	config  config.LLMConfig
	prompts *generation.PromptBuilder
	models  modelClient
	sleep   sleepFunc
}

var (
	_ generation.Generator     = (*Generator)(nil)
	_ generation.ConfigChecker = (*Generator)(nil)
)

// NewGenerator creates a Generator. A missing API key or model name is not
// an error here: CheckConfig reports it so that queued tasks fail with a
// descriptive message instead of the process refusing to start.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	logger = logger.With("component", "gemini_generator")

	prompts, err := generation.NewPromptBuilder(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}

	g := newGenerator(logger, cfg, prompts, nil)
	if err := validateConfig(cfg); err != nil {
		logger.WarnContext(ctx, "gemini generator is not usable until configured", "error", err)
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}
	g.models = client.Models

	logger.InfoContext(ctx, "gemini generator initialized", "model", cfg.ModelName)
	return g, nil
}

func newGenerator(logger *slog.Logger, cfg config.LLMConfig, prompts *generation.PromptBuilder, models modelClient) *Generator {
	return &Generator{
		logger:  logger,
		config:  cfg,
		prompts: prompts,
		models:  models,
		sleep:   sleepContext,
	}
}

// CheckConfig implements generation.ConfigChecker.
func (g *Generator) CheckConfig() error {
	return validateConfig(g.config)
}

// Generate implements generation.Generator.
func (g *Generator) Generate(ctx context.Context, inputs generation.Inputs) (*domain.GeneratedContent, error) {
	if err := g.CheckConfig(); err != nil {
		return nil, err
	}
	if g.models == nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrInvalidConfig, ErrNoClient)
	}

	prompt, err := g.prompts.Build(inputs)
	if err != nil {
		return nil, err
	}
	g.logger.DebugContext(ctx, "prompt generated", "prompt_length", len(prompt))

	text, err := g.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return generation.DecodeContent(text)
}

// callWithRetry calls the model, retrying transient failures up to
// MaxRetries times with exponential backoff and jitter. Blocked content and
// malformed responses are returned immediately.
func (g *Generator) callWithRetry(ctx context.Context, prompt string) (string, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", defaultMaxRetries)
		maxRetries = defaultMaxRetries
	}
	baseDelaySeconds := g.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = defaultRetryDelaySeconds
	}

	genConfig := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attemptNum := attempt + 1
		g.logger.InfoContext(ctx, "making Gemini API call",
			"attempt", attemptNum,
			"max_attempts", maxRetries+1)

		resp, err := g.models.GenerateContent(ctx, g.config.ModelName, genai.Text(prompt), genConfig)
		if err != nil {
			lastErr = err
			g.logger.ErrorContext(ctx, "Gemini API call failed", "attempt", attemptNum, "error", err)
		} else {
			text, err := responseText(resp)
			if err != nil {
				g.logger.WarnContext(ctx, "permanent error occurred, not retrying", "error", err)
				return "", err
			}
			g.logger.InfoContext(ctx, "Gemini API call successful", "attempt", attemptNum)
			return text, nil
		}

		if attempt >= maxRetries {
			break
		}

		// delay = baseDelay * 2^attempt * [0.5, 1.0)
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoffSeconds * (0.5 + rand.Float64()*0.5) * float64(time.Second))

		g.logger.InfoContext(ctx, "retrying after delay", "attempt", attemptNum, "delay", delay)
		if err := g.sleep(ctx, delay); err != nil {
			g.logger.WarnContext(ctx, "API call cancelled during retry delay", "attempt", attemptNum, "ctx_err", err)
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		}
	}

	g.logger.WarnContext(ctx, "maximum retry attempts reached", "max_retries", maxRetries)
	return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
		generation.ErrTransientFailure, maxRetries, lastErr)
}

// responseText extracts the text of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	switch {
	case resp == nil:
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	case len(resp.Candidates) == 0:
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}
	return b.String(), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
