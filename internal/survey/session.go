package survey

import "time"

// Session tracks one user's progress through the questionnaire. A session is
// created on the first start event, mutated only by the Engine, and removed
// only by an explicit reset. While not completed, CurrentOrdinal is the next
// unanswered question; once completed it is zero.
type Session struct {
	UserID         string
	Answers        map[int]int
	CurrentOrdinal int
	StartedAt      time.Time
	CompletedAt    time.Time
	Completed      bool
}

// NewSession creates a fresh session positioned at the first question.
func NewSession(userID string) *Session {
	return &Session{
		UserID:         userID,
		Answers:        make(map[int]int),
		CurrentOrdinal: 1,
		StartedAt:      time.Now(),
	}
}

// CopyAnswers returns a copy of the recorded answers, safe to hand out after
// the per-user lock is released.
func (s *Session) CopyAnswers() map[int]int {
	out := make(map[int]int, len(s.Answers))
	for k, v := range s.Answers {
		out[k] = v
	}
	return out
}

// Record is the persisted artifact of a completed session, keyed by user ID.
// A user who resets and redoes the survey produces a new record that
// overwrites the prior one.
type Record struct {
	UserID      string      `json:"user_id"`
	Answers     map[int]int `json:"answers"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
	TotalScore  int         `json:"total_score"`
	MaxScore    int         `json:"max_score"`
	Percentage  float64     `json:"percentage"`
}
