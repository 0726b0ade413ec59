package mocks

import (
	"context"

	"github.com/englishprint/papergen/internal/domain"
	"github.com/englishprint/papergen/internal/generation"
)

// Generator is a mock implementation of generation.Generator and
// generation.ConfigChecker
type Generator struct {
	GenerateFn    func(ctx context.Context, inputs generation.Inputs) (*domain.GeneratedContent, error)
	CheckConfigFn func() error
}

var (
	_ generation.Generator     = (*Generator)(nil)
	_ generation.ConfigChecker = (*Generator)(nil)
)

// Generate implements generation.Generator
func (m *Generator) Generate(ctx context.Context, inputs generation.Inputs) (*domain.GeneratedContent, error) {
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, inputs)
	}
	return &domain.GeneratedContent{}, nil
}

// CheckConfig implements generation.ConfigChecker
func (m *Generator) CheckConfig() error {
	if m.CheckConfigFn != nil {
		return m.CheckConfigFn()
	}
	return nil
}

// Validator is a mock implementation of generation.Validator
type Validator struct {
	ValidateFn func(content *domain.GeneratedContent) []string
}

var _ generation.Validator = (*Validator)(nil)

// Validate implements generation.Validator
func (m *Validator) Validate(content *domain.GeneratedContent) []string {
	if m.ValidateFn != nil {
		return m.ValidateFn(content)
	}
	return nil
}
