package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/englishprint/papergen/internal/domain"
)

// DecodeContent parses raw model or workflow output into GeneratedContent.
// A surrounding Markdown code fence is tolerated.
func DecodeContent(raw string) (*domain.GeneratedContent, error) {
	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return nil, fmt.Errorf("%w: empty output", ErrInvalidResponse)
	}

	var content domain.GeneratedContent
	if err := json.Unmarshal([]byte(text), &content); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON output: %v", ErrInvalidResponse, err)
	}
	return &content, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
