package domain

import "encoding/json"

// QuestionType selects the shape of a question's data.
type QuestionType string

const (
	QuestionMultiSelectChoice       QuestionType = "MULTI_SELECT_CHOICE"
	QuestionTrueFalse               QuestionType = "TRUE_FALSE"
	QuestionFillInBlankAndTranslate QuestionType = "FILL_IN_BLANK_AND_TRANSLATE"
	QuestionFillInBlank             QuestionType = "FILL_IN_BLANK"
	QuestionGuidedWriting           QuestionType = "GUIDED_WRITING"
	QuestionOpenEnded               QuestionType = "OPEN_ENDED"
	QuestionTranslateZhToEn         QuestionType = "TRANSLATE_ZH_TO_EN"
	QuestionTranslateEnToZh         QuestionType = "TRANSLATE_EN_TO_ZH"
)

// ContentTypeQuestion is the only content item type an exam part holds.
const ContentTypeQuestion = "QUESTION"

// GeneratedContent is the full set of materials one workflow call produces.
type GeneratedContent struct {
	PreClassGuide     string            `json:"preClassGuide" validate:"required"`
	ListeningMaterial string            `json:"listeningMaterial" validate:"required"`
	CopyExercise      CopyPracticeSheet `json:"copyExercise"`
	ExamPaper         ExamPaper         `json:"examPaper"`
	ExamAnswers       ExamAnswerSheet   `json:"examAnswers"`
}

// CopyPracticeSheet lists words and sentences for copying practice.
type CopyPracticeSheet struct {
	Title             string   `json:"title" validate:"required"`
	WordCopy          []string `json:"word_copy" validate:"required,min=1,dive,required"`
	SentenceCopy      []string `json:"sentence_copy" validate:"required,min=1,dive,required"`
	SentenceTransform []string `json:"sentence_transform" validate:"required,dive,required"`
}

// ExamPaper is the root of a rendered exam.
type ExamPaper struct {
	Title    string        `json:"title" validate:"required"`
	Sections []ExamSection `json:"sections" validate:"required,min=1,dive"`
}

// ExamSection is a numbered top-level block of an exam.
type ExamSection struct {
	SectionNumber string     `json:"sectionNumber" validate:"required"`
	Title         string     `json:"title" validate:"required"`
	Points        float64    `json:"points" validate:"gte=0"`
	Instructions  string     `json:"instructions"`
	Parts         []ExamPart `json:"parts" validate:"required,min=1,dive"`
}

// ExamPart groups questions inside a section.
type ExamPart struct {
	PartNumber   string     `json:"partNumber"`
	Instructions string     `json:"instructions"`
	Content      []Question `json:"content" validate:"required,min=1,dive"`
}

// Question wraps type-specific data. Which QuestionData fields are
// meaningful depends on QuestionType.
type Question struct {
	Type         string       `json:"type" validate:"required,eq=QUESTION"`
	QuestionType QuestionType `json:"questionType" validate:"required,oneof=MULTI_SELECT_CHOICE TRUE_FALSE FILL_IN_BLANK_AND_TRANSLATE FILL_IN_BLANK GUIDED_WRITING OPEN_ENDED TRANSLATE_ZH_TO_EN TRANSLATE_EN_TO_ZH"`
	Data         QuestionData `json:"data"`
}

// QuestionData is the union of all question payloads.
type QuestionData struct {
	ID              string   `json:"id" validate:"required"`
	QuestionText    string   `json:"questionText,omitempty"`
	Options         []string `json:"options,omitempty"`
	CorrectAnswers  []string `json:"correctAnswers,omitempty"`
	IsCorrect       *bool    `json:"isCorrect,omitempty"`
	Text            string   `json:"text,omitempty"`
	Answer          string   `json:"answer,omitempty"`
	ReferenceAnswer string   `json:"referenceAnswer,omitempty"`
}

// ExamAnswerSheet mirrors the exam's section/part layout with answers.
type ExamAnswerSheet struct {
	PaperID  string          `json:"paperId,omitempty"`
	Title    string          `json:"title" validate:"required"`
	Sections []AnswerSection `json:"sections" validate:"required,min=1,dive"`
}

// AnswerSection holds the answers for one exam section.
type AnswerSection struct {
	SectionNumber string       `json:"sectionNumber" validate:"required"`
	Parts         []AnswerPart `json:"parts" validate:"required,min=1,dive"`
}

// AnswerPart holds the answers for one exam part.
type AnswerPart struct {
	PartNumber string             `json:"partNumber"`
	Content    []AnsweredQuestion `json:"content" validate:"required,min=1,dive"`
}

// AnsweredQuestion is the answer to a single question. Answer is a string
// array for choices, a boolean for true/false, and a string otherwise.
type AnsweredQuestion struct {
	ID     string          `json:"id" validate:"required"`
	Answer json.RawMessage `json:"answer" validate:"required"`
}

// QuestionIDs returns every question id in the exam, in document order.
func (e *ExamPaper) QuestionIDs() []string {
	var ids []string
	for _, s := range e.Sections {
		for _, p := range s.Parts {
			for _, q := range p.Content {
				ids = append(ids, q.Data.ID)
			}
		}
	}
	return ids
}
