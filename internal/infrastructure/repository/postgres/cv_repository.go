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

type CVRepository struct {
	db *sql.DB
}

func NewCVRepository(db *sql.DB) *CVRepository {
	return &CVRepository{db: db}
}

func (r *CVRepository) Create(ctx context.Context, cv *domain.CVDocument) error {
	payload, err := json.Marshal(cv)
	if err != nil {
		return fmt.Errorf("marshal cv payload: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
INSERT INTO cv_documents (id, candidate_name, content_hash, payload, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE
SET candidate_name = EXCLUDED.candidate_name,
    content_hash = EXCLUDED.content_hash,
    payload = EXCLUDED.payload,
    updated_at = EXCLUDED.updated_at
`, cv.ID, cv.CandidateName, cv.ContentHash(), payload, now, now)
	if err != nil {
		return fmt.Errorf("insert cv document: %w", err)
	}
	return nil
}

func (r *CVRepository) GetByID(ctx context.Context, id string) (*domain.CVDocument, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT payload FROM cv_documents WHERE id = $1
`, id)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrCVNotFound, "get cv", err)
		}
		return nil, fmt.Errorf("scan cv document: %w", err)
	}

	var cv domain.CVDocument
	if err := json.Unmarshal(payload, &cv); err != nil {
		return nil, fmt.Errorf("unmarshal cv payload: %w", err)
	}
	return &cv, nil
}
