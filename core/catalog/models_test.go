package catalog

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mtihani/core"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	return validate
}

func validQuestion() NewQuestion {
	return NewQuestion{
		Prompt:        "1+1?",
		Options:       []string{"1", "2"},
		CorrectOption: 1,
	}
}

func TestNewTest_Validate(t *testing.T) {
	validate := newValidator()

	tests := []struct {
		name      string
		newTest   NewTest
		wantField string // failing field; empty means valid
	}{
		{
			name: "flat questions list",
			newTest: NewTest{
				Title:           "Arithmetic",
				DurationSeconds: 600,
				PassingScore:    50,
				Questions:       []NewQuestion{validQuestion()},
			},
		},
		{
			name: "sectioned",
			newTest: NewTest{
				Title:           "Arithmetic",
				DurationSeconds: 600,
				Sections: []NewSection{
					{Title: "Basics", Questions: []NewQuestion{validQuestion()}},
				},
			},
		},
		{
			name: "title required",
			newTest: NewTest{
				DurationSeconds: 600,
				Questions:       []NewQuestion{validQuestion()},
			},
			wantField: "title",
		},
		{
			name: "neither sections nor questions",
			newTest: NewTest{
				Title:           "Arithmetic",
				DurationSeconds: 600,
			},
			wantField: "sections",
		},
		{
			name: "both sections and questions",
			newTest: NewTest{
				Title:           "Arithmetic",
				DurationSeconds: 600,
				Questions:       []NewQuestion{validQuestion()},
				Sections: []NewSection{
					{Title: "Basics", Questions: []NewQuestion{validQuestion()}},
				},
			},
			wantField: "sections",
		},
		{
			name: "a question needs at least two options",
			newTest: NewTest{
				Title:           "Arithmetic",
				DurationSeconds: 600,
				Questions: []NewQuestion{
					{Prompt: "1+1?", Options: []string{"2"}, CorrectOption: 0},
				},
			},
			wantField: "options",
		},
		{
			name: "correct option out of range",
			newTest: NewTest{
				Title:           "Arithmetic",
				DurationSeconds: 600,
				Questions: []NewQuestion{
					{Prompt: "1+1?", Options: []string{"1", "2"}, CorrectOption: 2},
				},
			},
			wantField: "questions[0].correct_option",
		},
		{
			name: "correct option out of range within a section",
			newTest: NewTest{
				Title:           "Arithmetic",
				DurationSeconds: 600,
				Sections: []NewSection{
					{Title: "Basics", Questions: []NewQuestion{
						validQuestion(),
						{Prompt: "2+2?", Options: []string{"2", "4"}, CorrectOption: 5},
					}},
				},
			},
			wantField: "sections[0].questions[1].correct_option",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.newTest.Validate(validate)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			switch vErr := err.(type) {
			case validator.ValidationErrors:
				found := false
				for _, fErr := range vErr {
					if fErr.Field() == tt.wantField {
						found = true
					}
				}
				assert.True(t, found, "want failure on %q, got %v", tt.wantField, err)
			case *core.ValidationError:
				assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
			default:
				t.Errorf("unexpected error type: %v", err)
			}
		})
	}
}

func TestTest_helpers(t *testing.T) {
	q1 := Question{ID: "q1", Points: 1}
	q2 := Question{ID: "q2", Points: 2}
	q3 := Question{ID: "q3", Points: 3}

	flat := Test{Questions: []Question{q1, q2}}
	sectioned := Test{Sections: []Section{
		{ID: "s1", Questions: []Question{q1, q2}},
		{ID: "s2", Questions: []Question{q3}},
	}}

	assert.Equal(t, 2, flat.QuestionCount())
	assert.Equal(t, 3, sectioned.QuestionCount())
	assert.Equal(t, 3, flat.MaxScore())
	assert.Equal(t, 6, sectioned.MaxScore())
	assert.Equal(t, []Question{q1, q2, q3}, sectioned.AllQuestions())

	got, ok := sectioned.FindQuestion("q3")
	assert.True(t, ok)
	assert.Equal(t, q3, got)

	_, ok = sectioned.FindQuestion("nope")
	assert.False(t, ok)
}
