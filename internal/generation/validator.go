package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/englishprint/papergen/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Validator checks generated content before it is committed. An empty
// result means the content is acceptable.
type Validator interface {
	Validate(content *domain.GeneratedContent) []string
}

// sectionLabels maps top-level JSON fields to the label used in violations.
var sectionLabels = map[string]string{
	"copyExercise": "copy exercise",
	"examPaper":    "exam paper",
	"examAnswers":  "answer sheet",
}

// ContentValidator validates GeneratedContent with struct tags plus
// per-question-type rules and an answer-to-question cross-check.
type ContentValidator struct {
	validate *validator.Validate
}

var _ Validator = (*ContentValidator)(nil)

// NewContentValidator creates a ContentValidator. Field paths in violation
// messages use JSON field names.
func NewContentValidator() *ContentValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateQuestion, domain.Question{})
	v.RegisterStructValidation(validateAnswer, domain.AnsweredQuestion{})
	return &ContentValidator{validate: v}
}

// Validate returns every violation found, formatted as
// "<section> (<path>): <message>".
func (c *ContentValidator) Validate(content *domain.GeneratedContent) []string {
	if content == nil {
		return []string{"content (root): is missing"}
	}

	var violations []string
	if err := c.validate.Struct(content); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []string{fmt.Sprintf("content (root): %v", err)}
		}
		for _, fe := range fieldErrs {
			violations = append(violations, formatFieldError(fe))
		}
	}

	return append(violations, crossCheckAnswers(content)...)
}

func formatFieldError(fe validator.FieldError) string {
	// Namespace is "GeneratedContent.<section>.<path>".
	parts := strings.SplitN(fe.Namespace(), ".", 3)
	label, path := "content", ""
	if len(parts) >= 2 {
		if l, ok := sectionLabels[parts[1]]; ok {
			label = l
			if len(parts) == 3 {
				path = parts[2]
			}
		} else {
			path = strings.Join(parts[1:], ".")
		}
	}
	if path == "" {
		path = "root"
	}
	return fmt.Sprintf("%s (%s): %s", label, path, ruleMessage(fe))
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "eq":
		return fmt.Sprintf("must equal %s", fe.Param())
	case "answer":
		return "must be a string, a boolean or an array of strings"
	default:
		return fmt.Sprintf("failed the %q rule", fe.Tag())
	}
}

// validateQuestion enforces the fields each question type needs.
func validateQuestion(sl validator.StructLevel) {
	q := sl.Current().Interface().(domain.Question)
	d := q.Data

	switch q.QuestionType {
	case domain.QuestionMultiSelectChoice:
		if d.QuestionText == "" {
			sl.ReportError(d.QuestionText, "data.questionText", "QuestionText", "required", "")
		}
		if len(d.Options) < 2 {
			sl.ReportError(d.Options, "data.options", "Options", "min", "2")
		}
	case domain.QuestionTrueFalse:
		if d.QuestionText == "" {
			sl.ReportError(d.QuestionText, "data.questionText", "QuestionText", "required", "")
		}
	case domain.QuestionFillInBlank, domain.QuestionFillInBlankAndTranslate,
		domain.QuestionTranslateZhToEn, domain.QuestionTranslateEnToZh:
		if d.Text == "" {
			sl.ReportError(d.Text, "data.text", "Text", "required", "")
		}
	case domain.QuestionGuidedWriting, domain.QuestionOpenEnded:
		if d.Text == "" && d.QuestionText == "" {
			sl.ReportError(d.Text, "data.text", "Text", "required", "")
		}
	}
}

// validateAnswer accepts a string, a boolean or an array of strings.
func validateAnswer(sl validator.StructLevel) {
	a := sl.Current().Interface().(domain.AnsweredQuestion)
	if len(a.Answer) == 0 {
		return // reported by the required tag
	}

	var value any
	if err := json.Unmarshal(a.Answer, &value); err != nil {
		sl.ReportError(a.Answer, "answer", "Answer", "answer", "")
		return
	}

	switch v := value.(type) {
	case string, bool:
		return
	case []any:
		for _, item := range v {
			if _, ok := item.(string); !ok {
				sl.ReportError(a.Answer, "answer", "Answer", "answer", "")
				return
			}
		}
	default:
		sl.ReportError(a.Answer, "answer", "Answer", "answer", "")
	}
}

// crossCheckAnswers reports duplicate question ids and answers that do not
// match any question.
func crossCheckAnswers(content *domain.GeneratedContent) []string {
	var violations []string

	known := make(map[string]struct{})
	for si, s := range content.ExamPaper.Sections {
		for pi, p := range s.Parts {
			for qi, q := range p.Content {
				if q.Data.ID == "" {
					continue
				}
				if _, dup := known[q.Data.ID]; dup {
					violations = append(violations, fmt.Sprintf(
						"exam paper (sections[%d].parts[%d].content[%d].data.id): duplicate question id %q",
						si, pi, qi, q.Data.ID))
					continue
				}
				known[q.Data.ID] = struct{}{}
			}
		}
	}

	for si, s := range content.ExamAnswers.Sections {
		for pi, p := range s.Parts {
			for ai, a := range p.Content {
				if a.ID == "" {
					continue
				}
				if _, ok := known[a.ID]; !ok {
					violations = append(violations, fmt.Sprintf(
						"answer sheet (sections[%d].parts[%d].content[%d].id): references unknown question %q",
						si, pi, ai, a.ID))
				}
			}
		}
	}

	return violations
}
