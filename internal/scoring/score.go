// Package scoring derives the aggregate CIVIQ score from a set of answers.
// It is stateless and deterministic; the result is recomputable at will.
package scoring

// Result is the aggregate score of a completed questionnaire. Percentage is
// stored unrounded; rounding happens at presentation time only.
type Result struct {
	TotalScore int     `json:"total_score"`
	MaxScore   int     `json:"max_score"`
	Percentage float64 `json:"percentage"`
}

// Score sums the given answers against a questionnaire of itemCount items
// whose answer domain tops out at maxValue.
func Score(answers map[int]int, itemCount, maxValue int) Result {
	total := 0
	for _, v := range answers {
		total += v
	}
	max := itemCount * maxValue
	pct := 0.0
	if max > 0 {
		pct = float64(total) / float64(max) * 100
	}
	return Result{TotalScore: total, MaxScore: max, Percentage: pct}
}
