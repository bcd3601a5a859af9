package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
)

// EvaluationService is the API-facing half of the pipeline: it
// validates submissions, publishes them to the queue, and reads
// results back. Execution happens in the worker.
type EvaluationService struct {
	cvRepo   ports.CVRepository
	evalRepo ports.EvaluationRepository
	queue    ports.MessageQueue
	logger   *slog.Logger
}

func NewEvaluationService(cvRepo ports.CVRepository, evalRepo ports.EvaluationRepository, queue ports.MessageQueue, logger *slog.Logger) *EvaluationService {
	return &EvaluationService{
		cvRepo:   cvRepo,
		evalRepo: evalRepo,
		queue:    queue,
		logger:   logger,
	}
}

// SubmitEvaluation accepts a run for an existing CV. Submitting a CV
// whose run is still in flight is not an error: the worker-side
// registry attaches the duplicate, so the API just reports the
// current state.
func (s *EvaluationService) SubmitEvaluation(ctx context.Context, cvID string) (ports.RunHandle, error) {
	cv, err := s.cvRepo.GetByID(ctx, cvID)
	if err != nil {
		return ports.RunHandle{}, err
	}

	if existing, err := s.evalRepo.GetByCVID(ctx, cvID); err == nil && !existing.State.Terminal() {
		if existing.ContentHash == cv.ContentHash() {
			return ports.RunHandle{RunID: existing.RunID, CVID: cvID, State: existing.State}, nil
		}
	}

	if err := s.queue.PublishEvaluationRequested(ctx, cvID); err != nil {
		return ports.RunHandle{}, fmt.Errorf("publish evaluation request: %w", err)
	}
	s.logger.Info("evaluation requested", slog.String("cv_id", cvID))
	return ports.RunHandle{CVID: cvID, State: domain.RunPending}, nil
}

func (s *EvaluationService) GetResult(ctx context.Context, cvID string) (*domain.EvaluationResult, error) {
	return s.evalRepo.GetByCVID(ctx, cvID)
}

func (s *EvaluationService) GetStatus(ctx context.Context, cvID string) (domain.RunState, error) {
	result, err := s.evalRepo.GetByCVID(ctx, cvID)
	if err != nil {
		return "", err
	}
	return result.State, nil
}

func (s *EvaluationService) ListResults(ctx context.Context, limit int) ([]domain.EvaluationResult, error) {
	return s.evalRepo.List(ctx, limit)
}

// RunProcessor executes queued runs in the worker.
type RunProcessor struct {
	cvRepo       ports.CVRepository
	orchestrator *Orchestrator
	logger       *slog.Logger
}

func NewRunProcessor(cvRepo ports.CVRepository, orchestrator *Orchestrator, logger *slog.Logger) *RunProcessor {
	return &RunProcessor{cvRepo: cvRepo, orchestrator: orchestrator, logger: logger}
}

func (p *RunProcessor) ProcessByCVID(ctx context.Context, cvID string) error {
	cv, err := p.cvRepo.GetByID(ctx, cvID)
	if err != nil {
		return fmt.Errorf("load cv for run: %w", err)
	}
	result, err := p.orchestrator.Evaluate(ctx, *cv)
	if err != nil {
		return err
	}
	p.logger.Info("run processed",
		slog.String("cv_id", cvID),
		slog.String("run_id", result.RunID),
		slog.String("state", string(result.State)))
	return nil
}
