// Package results persists completed questionnaires: a PostgreSQL repository
// for the API server and a JSON file sink for standalone bot deployments.
package results

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiq-care/backend/internal/models"
	"github.com/civiq-care/backend/internal/survey"
)

// Repository stores survey results in PostgreSQL. It implements
// survey.ResultSink with last-write-wins semantics per user.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a results repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Store upserts the completed survey record for its user.
func (r *Repository) Store(ctx context.Context, rec survey.Record) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	const q = `INSERT INTO survey_results (user_id, answers, started_at, completed_at, total_score, max_score, percentage)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			answers = EXCLUDED.answers,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			total_score = EXCLUDED.total_score,
			max_score = EXCLUDED.max_score,
			percentage = EXCLUDED.percentage,
			updated_at = NOW()`
	_, err = r.pool.Exec(ctx, q, rec.UserID, answers, rec.StartedAt, rec.CompletedAt, rec.TotalScore, rec.MaxScore, rec.Percentage)
	if err != nil {
		return fmt.Errorf("upsert survey result: %w", err)
	}
	return nil
}

// GetByUser returns the stored result for userID, or nil when absent.
func (r *Repository) GetByUser(ctx context.Context, userID string) (*models.SurveyResult, error) {
	const q = `SELECT user_id, answers, started_at, completed_at, total_score, max_score, percentage, updated_at
		FROM survey_results WHERE user_id = $1`
	var res models.SurveyResult
	var answers []byte
	err := r.pool.QueryRow(ctx, q, userID).Scan(&res.UserID, &answers, &res.StartedAt, &res.CompletedAt,
		&res.TotalScore, &res.MaxScore, &res.Percentage, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &res.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	return &res, nil
}

// List returns all stored results, most recently completed first.
func (r *Repository) List(ctx context.Context) ([]models.SurveyResult, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, answers, started_at, completed_at, total_score, max_score, percentage, updated_at
		FROM survey_results ORDER BY completed_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SurveyResult
	for rows.Next() {
		var res models.SurveyResult
		var answers []byte
		if err := rows.Scan(&res.UserID, &answers, &res.StartedAt, &res.CompletedAt,
			&res.TotalScore, &res.MaxScore, &res.Percentage, &res.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(answers, &res.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		list = append(list, res)
	}
	return list, rows.Err()
}
