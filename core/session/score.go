package session

import (
	"math"

	"github.com/trezcool/mtihani/core/catalog"
)

// scoreAttempt grades a set of answers against a test definition.
// Unanswered questions score 0 and are not penalized; a wrong answer
// deducts the test's negative marking. When clampTotal is set the total
// raw score is floored at zero before the percentage is computed;
// per-question scores are never clamped either way.
func scoreAttempt(test catalog.Test, answers map[string]int, clampTotal bool) Result {
	var raw float64
	var max int

	for _, q := range test.AllQuestions() {
		max += q.Points
		selected, answered := answers[q.ID]
		if !answered {
			continue
		}
		if selected == q.CorrectOption {
			raw += float64(q.Points)
		} else {
			raw -= test.NegativeMarking
		}
	}

	if clampTotal && raw < 0 {
		raw = 0
	}

	var pct int
	if max > 0 {
		pct = int(math.Round(100 * math.Max(raw, 0) / float64(max)))
	}
	if pct > 100 {
		pct = 100
	}

	return Result{
		Percentage: pct,
		Passed:     pct >= test.PassingScore,
		RawScore:   raw,
		MaxScore:   max,
	}
}
