package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/englishprint/papergen/internal/config"
	"github.com/englishprint/papergen/internal/domain"
	"github.com/englishprint/papergen/internal/generation"
	"github.com/ollama/ollama/api"
)

// ErrNilLogger is returned when NewGenerator is called without a logger.
var ErrNilLogger = errors.New("logger cannot be nil")

// completer is the subset of *api.Client the generator uses.
type completer interface {
	Generate(ctx context.Context, req *api.GenerateRequest, fn api.GenerateResponseFunc) error
}

// Generator implements generation.Generator using an Ollama model.
type Generator struct {
	logger  *slog.Logger
	config  config.OllamaConfig
	prompts *generation.PromptBuilder
	client  completer
}

var (
	_ generation.Generator     = (*Generator)(nil)
	_ generation.ConfigChecker = (*Generator)(nil)
)

// NewGenerator creates a Generator talking to cfg.Host. An unparsable host
// is reported by CheckConfig rather than here.
func NewGenerator(logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	prompts, err := generation.NewPromptBuilder(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}

	g := &Generator{
		logger:  logger.With("component", "ollama_generator"),
		config:  cfg.Ollama,
		prompts: prompts,
	}
	if base, err := url.Parse(cfg.Ollama.Host); err == nil && base.Host != "" {
		g.client = api.NewClient(base, http.DefaultClient)
	}
	return g, nil
}

// CheckConfig implements generation.ConfigChecker.
func (g *Generator) CheckConfig() error {
	if strings.TrimSpace(g.config.Model) == "" {
		return fmt.Errorf("%w: Ollama model must be configured", generation.ErrInvalidConfig)
	}
	if g.client == nil {
		return fmt.Errorf("%w: invalid Ollama host %q", generation.ErrInvalidConfig, g.config.Host)
	}
	return nil
}

// Generate implements generation.Generator.
func (g *Generator) Generate(ctx context.Context, inputs generation.Inputs) (*domain.GeneratedContent, error) {
	if err := g.CheckConfig(); err != nil {
		return nil, err
	}
	prompt, err := g.prompts.Build(inputs)
	if err != nil {
		return nil, err
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  g.config.Model,
		Prompt: prompt,
		Format: json.RawMessage(`"json"`),
		Stream: &stream,
	}

	var out strings.Builder
	g.logger.InfoContext(ctx, "calling Ollama", "model", g.config.Model, "prompt_length", len(prompt))
	err = g.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", generation.ErrTransport, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", generation.ErrTransport, err)
	}

	g.logger.DebugContext(ctx, "Ollama call finished", "response_length", out.Len())
	return generation.DecodeContent(out.String())
}
