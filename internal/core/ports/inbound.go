package ports

import (
	"context"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

// RunHandle identifies one accepted evaluation run.
type RunHandle struct {
	RunID string          `json:"run_id"`
	CVID  string          `json:"cv_id"`
	State domain.RunState `json:"state"`
}

// EvaluationService is the inbound contract the API layer binds to.
type EvaluationService interface {
	SubmitEvaluation(ctx context.Context, cvID string) (RunHandle, error)
	GetResult(ctx context.Context, cvID string) (*domain.EvaluationResult, error)
	GetStatus(ctx context.Context, cvID string) (domain.RunState, error)
	ListResults(ctx context.Context, limit int) ([]domain.EvaluationResult, error)
}

// RunProcessor is the inbound contract for asynchronous run execution.
type RunProcessor interface {
	ProcessByCVID(ctx context.Context, cvID string) error
}

// CVIntake is the inbound contract for résumé upload glue.
type CVIntake interface {
	Ingest(ctx context.Context, filename string, raw []byte) (*domain.CVDocument, error)
}
