package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mtihani/core/catalog"
)

func Test_scoreAttempt(t *testing.T) {
	q1 := catalog.Question{ID: "q1", Options: []string{"a", "b", "c"}, CorrectOption: 0, Points: 1}
	q2 := catalog.Question{ID: "q2", Options: []string{"a", "b"}, CorrectOption: 1, Points: 1}
	q3 := catalog.Question{ID: "q3", Options: []string{"a", "b"}, CorrectOption: 0, Points: 2}

	test := catalog.Test{
		PassingScore:    50,
		NegativeMarking: 0.5,
		Questions:       []catalog.Question{q1, q2, q3},
	}

	tests := []struct {
		name       string
		test       catalog.Test
		answers    map[string]int
		clampTotal bool
		want       Result
	}{
		{
			name:    "all correct is a full score",
			test:    test,
			answers: map[string]int{"q1": 0, "q2": 1, "q3": 0},
			want:    Result{Percentage: 100, Passed: true, RawScore: 4, MaxScore: 4},
		},
		{
			name:    "unanswered questions score zero without penalty",
			test:    test,
			answers: map[string]int{},
			want:    Result{Percentage: 0, Passed: false, RawScore: 0, MaxScore: 4},
		},
		{
			name:    "wrong answers deduct the negative marking",
			test:    test,
			answers: map[string]int{"q1": 1, "q2": 1, "q3": 0},
			want:    Result{Percentage: 63, Passed: true, RawScore: 2.5, MaxScore: 4},
		},
		{
			name:    "half the points fails a 50% bar by a wrong answer",
			test:    test,
			answers: map[string]int{"q3": 0, "q1": 2},
			want:    Result{Percentage: 38, Passed: false, RawScore: 1.5, MaxScore: 4},
		},
		{
			name:       "all wrong clamps the total at zero",
			test:       test,
			answers:    map[string]int{"q1": 1, "q2": 0, "q3": 1},
			clampTotal: true,
			want:       Result{Percentage: 0, Passed: false, RawScore: 0, MaxScore: 4},
		},
		{
			name:    "all wrong without clamping keeps the negative total",
			test:    test,
			answers: map[string]int{"q1": 1, "q2": 0, "q3": 1},
			want:    Result{Percentage: 0, Passed: false, RawScore: -1.5, MaxScore: 4},
		},
		{
			name: "exactly the passing score passes",
			test: catalog.Test{
				PassingScore: 50,
				Questions:    []catalog.Question{q1, q2},
			},
			answers: map[string]int{"q1": 0},
			want:    Result{Percentage: 50, Passed: true, RawScore: 1, MaxScore: 2},
		},
		{
			name: "a test without questions scores zero",
			test: catalog.Test{PassingScore: 50},
			want: Result{Percentage: 0, Passed: false, RawScore: 0, MaxScore: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreAttempt(tt.test, tt.answers, tt.clampTotal)
			assert.Equal(t, tt.want, got)
		})
	}
}
