package models

import "time"

// SurveyResult is a persisted completed questionnaire, one row per user.
// Redoing the survey after a reset overwrites the previous row.
type SurveyResult struct {
	UserID      string      `json:"user_id"`
	Answers     map[int]int `json:"answers"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
	TotalScore  int         `json:"total_score"`
	MaxScore    int         `json:"max_score"`
	Percentage  float64     `json:"percentage"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
