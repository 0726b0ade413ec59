package gemini

import (
	"context"
	"time"

	"google.golang.org/genai"
)

// modelClient is the subset of *genai.Models used by Generator.
type modelClient interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error
