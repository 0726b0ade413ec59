package generation

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"
)

//go:embed prompts/content.tmpl
var defaultPromptTemplate string

// PromptBuilder renders Inputs into a prompt for LLM backends.
type PromptBuilder struct {
	tmpl *template.Template
}

// NewPromptBuilder parses the template at path, or the built-in template
// when path is empty.
func NewPromptBuilder(path string) (*PromptBuilder, error) {
	text := defaultPromptTemplate
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
				ErrInvalidConfig, path, err)
		}
		text = string(content)
	}

	tmpl, err := template.New("content").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidConfig, err)
	}

	return &PromptBuilder{tmpl: tmpl}, nil
}

// Build renders the prompt for inputs.
func (b *PromptBuilder) Build(inputs Inputs) (string, error) {
	if inputs.Unit == "" {
		return "", ErrEmptyInputs
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, inputs); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
