package catalog

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mtihani/core"
)

// defaultPoints is awarded for a correctly answered question when the
// definition does not say otherwise.
const defaultPoints = 1

type (
	// Question is a single multiple-choice question. Exactly one option,
	// CorrectOption, is the right answer.
	Question struct {
		ID            string   `json:"id"`
		Prompt        string   `json:"prompt"`
		Options       []string `json:"options"`
		CorrectOption int      `json:"correct_option"`
		Points        int      `json:"points"`
	}

	// Section is an ordered group of questions within a Test.
	Section struct {
		ID        string     `json:"id"`
		Title     string     `json:"title"`
		Questions []Question `json:"questions"`
	}

	// Test is an immutable assessment definition. A test either carries
	// Sections or a flat Questions list, never both.
	Test struct {
		ID              string    `json:"id"`
		Title           string    `json:"title"`
		Description     string    `json:"description"`
		DurationSeconds int       `json:"duration_seconds"`
		PassingScore    int       `json:"passing_score"` // percent
		NegativeMarking float64   `json:"negative_marking"`
		Sections        []Section `json:"sections,omitempty"`
		Questions       []Question `json:"questions,omitempty"`
		CreatedAt       time.Time `json:"created_at"` // UTC
		UpdatedAt       time.Time `json:"updated_at"` // UTC
	}
)

// AllQuestions returns the test's questions across all sections, in order.
func (t Test) AllQuestions() []Question {
	if t.Sections == nil {
		return t.Questions
	}
	qs := make([]Question, 0, t.QuestionCount())
	for _, sec := range t.Sections {
		qs = append(qs, sec.Questions...)
	}
	return qs
}

// QuestionCount returns the number of questions across all sections.
func (t Test) QuestionCount() int {
	if t.Sections == nil {
		return len(t.Questions)
	}
	var n int
	for _, sec := range t.Sections {
		n += len(sec.Questions)
	}
	return n
}

// FindQuestion looks a question up by ID.
func (t Test) FindQuestion(id string) (Question, bool) {
	for _, q := range t.AllQuestions() {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// MaxScore returns the sum of points over all questions.
func (t Test) MaxScore() int {
	var max int
	for _, q := range t.AllQuestions() {
		max += q.Points
	}
	return max
}

type (
	// NewQuestion contains information needed to create a Question.
	NewQuestion struct {
		Prompt        string   `json:"prompt" validate:"required"`
		Options       []string `json:"options" validate:"min=2,dive,required"`
		CorrectOption int      `json:"correct_option" validate:"min=0"`
		Points        int      `json:"points" validate:"min=0"` // defaults to 1
	}

	// NewSection contains information needed to create a Section.
	NewSection struct {
		Title     string        `json:"title" validate:"required"`
		Questions []NewQuestion `json:"questions" validate:"min=1,dive"`
	}

	// NewTest contains information needed to create a new Test.
	// Exactly one of Sections or Questions must be provided.
	NewTest struct {
		Title           string        `json:"title" validate:"required"`
		Description     string        `json:"description"`
		DurationSeconds int           `json:"duration_seconds" validate:"min=1"`
		PassingScore    int           `json:"passing_score" validate:"min=0,max=100"`
		NegativeMarking float64       `json:"negative_marking" validate:"min=0"`
		Sections        []NewSection  `json:"sections" validate:"omitempty,dive"`
		Questions       []NewQuestion `json:"questions" validate:"omitempty,dive"`
	}
)

func (nt *NewTest) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)

	if err := validate.Struct(nt); err != nil {
		return err
	}

	if (len(nt.Sections) == 0) == (len(nt.Questions) == 0) {
		return core.NewValidationError(
			nil,
			core.FieldError{Field: "sections", Error: "provide either sections or a flat questions list"},
		)
	}

	// every CorrectOption must index into its Options
	check := func(field string, qs []NewQuestion) error {
		for i, q := range qs {
			if q.CorrectOption >= len(q.Options) {
				return core.NewValidationError(nil, core.FieldError{
					Field: fmt.Sprintf("%s[%d].correct_option", field, i),
					Error: "correct_option is out of range",
				})
			}
		}
		return nil
	}
	if err := check("questions", nt.Questions); err != nil {
		return err
	}
	for s, sec := range nt.Sections {
		if err := check(fmt.Sprintf("sections[%d].questions", s), sec.Questions); err != nil {
			return err
		}
	}
	return nil
}
