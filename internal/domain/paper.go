package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var wordSeparator = regexp.MustCompile(`[,\s]+`)

// Paper is a unit of teaching material. Generation fills in Content.
type Paper struct {
	ID       uuid.UUID  `json:"id"`
	CourseID *uuid.UUID `json:"courseId,omitempty"`
	Title    string     `json:"title"`
	// CoreWords is a free-form list separated by commas or whitespace.
	CoreWords string `json:"coreWords,omitempty"`
	// KeySentences holds one sentence per line.
	KeySentences string            `json:"keySentences,omitempty"`
	Remark       string            `json:"remark,omitempty"`
	Content      *GeneratedContent `json:"content,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// NewPaper creates a Paper with a fresh ID and timestamps.
func NewPaper(title, coreWords, keySentences string, courseID *uuid.UUID) (*Paper, error) {
	now := time.Now().UTC()
	p := &Paper{
		ID:           uuid.New(),
		CourseID:     courseID,
		Title:        title,
		CoreWords:    coreWords,
		KeySentences: keySentences,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the fields every stored paper must have.
func (p *Paper) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: paper id is required", ErrValidation)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title: %w", ErrValidation, ErrEmptyContent)
	}
	return nil
}

// CoreWordList splits CoreWords on commas and whitespace, dropping empties.
func (p *Paper) CoreWordList() []string {
	return SplitWords(p.CoreWords)
}

// SplitWords splits s on runs of commas and whitespace.
func SplitWords(s string) []string {
	var words []string
	for _, w := range wordSeparator.Split(s, -1) {
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// ApplyContent replaces the generated content and bumps UpdatedAt.
func (p *Paper) ApplyContent(content *GeneratedContent, now time.Time) {
	p.Content = content
	p.UpdatedAt = now.UTC()
}
