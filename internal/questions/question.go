package questions

import "math/rand"

const (
	MaxLHS = 11
	MaxRHS = 4
)

// Question is a single multiplication problem. LHS and RHS are display
// operands and may be swapped relative to how they were drawn.
type Question struct {
	LHS           int `json:"lhs"`
	RHS           int `json:"rhs"`
	CorrectAnswer int `json:"correctAnswer"`
}

// Generate draws a new Question. Safe for concurrent use.
func Generate() *Question {
	lhs := rand.Intn(MaxLHS) + 1
	rhs := rand.Intn(MaxRHS) + 1
	q := &Question{LHS: lhs, RHS: rhs, CorrectAnswer: lhs * rhs}
	if rand.Intn(2) == 0 {
		q.LHS, q.RHS = rhs, lhs
	}
	return q
}

// Check reports whether answer solves q.
func (q *Question) Check(answer int) bool {
	return q != nil && answer == q.CorrectAnswer
}
