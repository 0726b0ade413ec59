package generation

import (
	"strings"

	"github.com/englishprint/papergen/internal/domain"
)

// BuildInputs assembles workflow inputs for paper. The word list is the
// union of the core words of every other paper and the global vocabulary,
// de-duplicated in first-seen order.
func BuildInputs(paper *domain.Paper, others []*domain.Paper, vocabulary []string) Inputs {
	seen := make(map[string]struct{})
	var words []string
	add := func(w string) {
		w = strings.TrimSpace(w)
		if w == "" {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}

	for _, other := range others {
		if other == nil || other.ID == paper.ID {
			continue
		}
		for _, w := range other.CoreWordList() {
			add(w)
		}
	}
	for _, w := range vocabulary {
		add(w)
	}

	return Inputs{
		Words: strings.Join(words, ","),
		Unit:  UnitText(paper),
	}
}

// UnitText renders the paper's title, core words and key sentences as the
// unit description sent to the workflow.
func UnitText(paper *domain.Paper) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(paper.Title)
	b.WriteString("\nCore words: ")
	b.WriteString(paper.CoreWords)
	b.WriteString("\nKey sentences: ")
	b.WriteString(paper.KeySentences)
	return b.String()
}
