package generation

import (
	"context"

	"github.com/englishprint/papergen/internal/domain"
)

// Inputs are the two text fields the content workflow consumes.
type Inputs struct {
	// Words is the comma-joined, de-duplicated word list the workflow may draw
	// vocabulary from.
	Words string `json:"words"`
	// Unit describes the paper being generated.
	Unit string `json:"unit"`
}

// Generator produces the full content set for one paper.
// This interface serves as a boundary between the scheduler and external
// AI/LLM services.
type Generator interface {
	// Generate blocks until the workflow returns. Implementations should
	// honour ctx cancellation where the transport allows it.
	Generate(ctx context.Context, inputs Inputs) (*domain.GeneratedContent, error)
}

// ConfigChecker is implemented by generators that can tell, without making
// a call, that their configuration cannot work. The scheduler fails pending
// tasks with the returned error instead of dispatching them.
type ConfigChecker interface {
	CheckConfig() error
}
