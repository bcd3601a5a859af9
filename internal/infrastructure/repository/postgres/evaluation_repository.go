package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

type EvaluationRepository struct {
	db *sql.DB
}

func NewEvaluationRepository(db *sql.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// Save replaces the row for the CV wholesale. Reruns overwrite the
// previous result; a stored result is never mutated field by field.
func (r *EvaluationRepository) Save(ctx context.Context, result *domain.EvaluationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal evaluation result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO evaluations (cv_id, run_id, content_hash, state, result, started_at, finished_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (cv_id) DO UPDATE
SET run_id = EXCLUDED.run_id,
    content_hash = EXCLUDED.content_hash,
    state = EXCLUDED.state,
    result = EXCLUDED.result,
    started_at = EXCLUDED.started_at,
    finished_at = EXCLUDED.finished_at,
    updated_at = EXCLUDED.updated_at
`, result.CVID, result.RunID, result.ContentHash, string(result.State), payload,
		result.StartedAt, nullableTime(result.FinishedAt), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert evaluation: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) GetByCVID(ctx context.Context, cvID string) (*domain.EvaluationResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT result FROM evaluations WHERE cv_id = $1
`, cvID)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRunNotFound, "get evaluation", err)
		}
		return nil, fmt.Errorf("scan evaluation: %w", err)
	}

	var result domain.EvaluationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation result: %w", err)
	}
	return &result, nil
}

// UpdateState advances the stored run state without touching the
// result payload; ignored when the row now belongs to a newer run.
func (r *EvaluationRepository) UpdateState(ctx context.Context, cvID, runID string, state domain.RunState) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE evaluations
SET state = $3,
    result = jsonb_set(result, '{state}', to_jsonb($3::text)),
    updated_at = $4
WHERE cv_id = $1 AND run_id = $2
`, cvID, runID, string(state), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update evaluation state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update evaluation state rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrRunNotFound, "update evaluation state", sql.ErrNoRows)
	}
	return nil
}

func (r *EvaluationRepository) List(ctx context.Context, limit int) ([]domain.EvaluationResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT result FROM evaluations ORDER BY updated_at DESC LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var out []domain.EvaluationResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", err)
		}
		var result domain.EvaluationResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("unmarshal evaluation row: %w", err)
		}
		out = append(out, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return out, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
