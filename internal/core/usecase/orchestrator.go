package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
)

// StageObserver reports stage durations; wired to worker metrics in
// bootstrap, nil in tests.
type StageObserver func(stage string, d time.Duration)

// Orchestrator drives one evaluation run through its state machine:
// pending, evidence_gathering, scoring, question_generation, then a
// terminal complete/partial/failed. Stage-local failures are embedded
// in the result; only an invariant violation aborts the run.
type Orchestrator struct {
	evalRepo  ports.EvaluationRepository
	sources   []ports.EvidenceSource
	mapper    *EvidenceMapper
	analyzer  *AuthenticityAnalyzer
	detector  *InflationDetector
	generator *QuestionGenerator

	registry  *runRegistry
	parallel  int
	threshold float64
	observe   StageObserver
	logger    *slog.Logger
}

func NewOrchestrator(
	evalRepo ports.EvaluationRepository,
	sources []ports.EvidenceSource,
	mapper *EvidenceMapper,
	analyzer *AuthenticityAnalyzer,
	detector *InflationDetector,
	generator *QuestionGenerator,
	parallel int,
	threshold float64,
	observe StageObserver,
	logger *slog.Logger,
) *Orchestrator {
	if parallel <= 0 {
		parallel = 8
	}
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.5
	}
	return &Orchestrator{
		evalRepo:  evalRepo,
		sources:   sources,
		mapper:    mapper,
		analyzer:  analyzer,
		detector:  detector,
		generator: generator,
		registry:  newRunRegistry(),
		parallel:  parallel,
		threshold: threshold,
		observe:   observe,
		logger:    logger,
	}
}

// Evaluate runs the pipeline for one CV. A concurrent submission for
// the same CV and content attaches to the in-flight run and shares its
// result; a submission with different content waits the current run
// out and then starts fresh.
func (o *Orchestrator) Evaluate(ctx context.Context, cv domain.CVDocument) (result *domain.EvaluationResult, err error) {
	hash := cv.ContentHash()
	runID := uuid.NewString()

	run, attached := o.registry.Acquire(cv.ID, hash, runID)
	if attached {
		select {
		case <-run.Done():
		case <-ctx.Done():
			return nil, domain.WrapError(domain.ErrRunConflict, "attach to run", ctx.Err())
		}
		if run.ContentHash == hash {
			return run.Outcome()
		}
		return o.Evaluate(ctx, cv)
	}

	// Deferred so a panic inside execute still frees the CV slot.
	defer func() { o.registry.Release(cv.ID, result, err) }()
	result, err = o.execute(ctx, runID, cv)
	return result, err
}

func (o *Orchestrator) execute(ctx context.Context, runID string, cv domain.CVDocument) (*domain.EvaluationResult, error) {
	logger := o.logger.With(slog.String("run_id", runID), slog.String("cv_id", cv.ID))
	started := time.Now().UTC()

	result := &domain.EvaluationResult{
		RunID:       runID,
		CVID:        cv.ID,
		ContentHash: cv.ContentHash(),
		State:       domain.RunPending,
		Skills:      make(map[string]domain.SkillEvidenceResult),
		Projects:    make(map[string]domain.RepoAuthenticity),
		Inflation:   make(map[string]domain.SkillInflationResult),
		Questions:   make(map[string]domain.InterviewQuestionSet),
		StartedAt:   started,
	}
	if err := o.evalRepo.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("persist pending run: %w", err)
	}

	defer o.cleanupSources(runID, logger)

	var (
		mu          sync.Mutex
		stageErrors []domain.StageError
	)
	claims := claimsInOrder(cv)

	o.prepareSources(ctx, runID, cv.Links, &mu, &stageErrors, logger)
	if ctx.Err() != nil {
		return o.finishCancelled(result, cv, stageErrors, logger)
	}

	// Evidence and authenticity branches fan out together behind one
	// bounded semaphore for external calls.
	o.advance(ctx, result, domain.RunEvidenceGathering, logger)
	stageStart := time.Now()
	sem := make(chan struct{}, o.parallel)
	var wg sync.WaitGroup

	for _, claim := range claims {
		wg.Add(1)
		go func(claim domain.SkillClaim) {
			defer wg.Done()
			if !acquire(ctx, sem) {
				return
			}
			defer func() { <-sem }()
			skillResult := o.mapper.MapSkill(ctx, runID, claim)
			mu.Lock()
			result.Skills[claim.Name] = skillResult
			mu.Unlock()
		}(claim)
	}

	for _, project := range cv.Projects {
		wg.Add(1)
		go func(project domain.ProjectRef) {
			defer wg.Done()
			if !acquire(ctx, sem) {
				return
			}
			defer func() { <-sem }()
			authenticity, err := o.analyzer.Analyze(ctx, runID, project)
			if err != nil {
				recordStageError(logger, &mu, &stageErrors, "authenticity", project.Identifier(), err)
				authenticity = domain.RepoAuthenticity{
					Project:     project.Identifier(),
					Description: "authenticity analysis failed",
					RedFlags:    []domain.RedFlag{domain.FlagUnresolvable},
				}
			}
			mu.Lock()
			result.Projects[project.Identifier()] = authenticity
			mu.Unlock()
		}(project)
	}
	wg.Wait()
	o.observeStage("evidence_gathering", time.Since(stageStart))

	if ctx.Err() != nil {
		return o.finishCancelled(result, cv, stageErrors, logger)
	}

	o.advance(ctx, result, domain.RunScoring, logger)
	stageStart = time.Now()
	for _, claim := range claims {
		wg.Add(1)
		go func(claim domain.SkillClaim) {
			defer wg.Done()
			if !acquire(ctx, sem) {
				return
			}
			defer func() { <-sem }()
			mu.Lock()
			evidence := result.Skills[claim.Name]
			mu.Unlock()
			inflation := o.detector.Detect(ctx, claim, evidence)
			mu.Lock()
			result.Inflation[claim.Name] = inflation
			mu.Unlock()
		}(claim)
	}
	wg.Wait()

	timeline := timelineScore(cv.Timeline, time.Now().UTC())
	scores, counts := aggregateScores(result.Skills, result.Projects, result.Inflation, timeline)
	result.Scores = scores
	result.Counts = counts
	result.FocusOrder = focusRanking(result.Skills, result.Inflation)
	o.observeStage("scoring", time.Since(stageStart))

	if ctx.Err() != nil {
		return o.finishCancelled(result, cv, stageErrors, logger)
	}

	o.advance(ctx, result, domain.RunQuestionGeneration, logger)
	stageStart = time.Now()
	for _, claim := range claims {
		wg.Add(1)
		go func(claim domain.SkillClaim) {
			defer wg.Done()
			if !acquire(ctx, sem) {
				return
			}
			defer func() { <-sem }()
			mu.Lock()
			evidence := result.Skills[claim.Name]
			inflation := result.Inflation[claim.Name]
			mu.Unlock()
			set, err := o.generator.Generate(ctx, runID, claim, evidence, inflation, o.threshold)
			if err != nil {
				recordStageError(logger, &mu, &stageErrors, "question_generation", claim.Name, err)
			}
			mu.Lock()
			result.Questions[claim.Name] = set
			mu.Unlock()
		}(claim)
	}
	wg.Wait()
	o.observeStage("question_generation", time.Since(stageStart))

	if ctx.Err() != nil {
		return o.finishCancelled(result, cv, stageErrors, logger)
	}

	result.StageErrors = stageErrors
	result.State = domain.RunComplete
	if len(stageErrors) > 0 {
		result.State = domain.RunPartial
	}
	result.FinishedAt = time.Now().UTC()

	if err := result.Validate(cv); err != nil {
		logger.Error("pipeline invariant violated", slog.String("error", err.Error()))
		result.State = domain.RunFailed
		result.StageErrors = append(result.StageErrors, domain.StageError{
			Stage:  "validate",
			Reason: err.Error(),
		})
		if saveErr := o.evalRepo.Save(context.WithoutCancel(ctx), result); saveErr != nil {
			return result, errors.Join(err, saveErr)
		}
		return result, err
	}

	if err := o.evalRepo.Save(ctx, result); err != nil {
		return result, fmt.Errorf("persist result: %w", err)
	}
	logger.Info("run finished",
		slog.String("state", string(result.State)),
		slog.Int("overall", result.Scores.Overall),
		slog.Duration("took", time.Since(started)))
	return result, nil
}

func (o *Orchestrator) prepareSources(ctx context.Context, runID string, links domain.CandidateLinks, mu *sync.Mutex, stageErrors *[]domain.StageError, logger *slog.Logger) {
	var wg sync.WaitGroup
	for _, source := range o.sources {
		wg.Add(1)
		go func(source ports.EvidenceSource) {
			defer wg.Done()
			if err := source.Prepare(ctx, runID, links); err != nil {
				recordStageError(logger, mu, stageErrors, "prepare", string(source.Kind()), err)
			}
		}(source)
	}
	wg.Wait()
}

func (o *Orchestrator) cleanupSources(runID string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, source := range o.sources {
		if err := source.Cleanup(ctx, runID); err != nil {
			logger.Warn("source cleanup failed",
				slog.String("source", string(source.Kind())),
				slog.String("error", err.Error()))
		}
	}
}

// finishCancelled marks the run failed with reason cancelled and
// persists best-effort on a detached context. Stage data computed
// before the cancellation stays on the failed record for diagnostics
// but is never reported under a complete or partial state.
func (o *Orchestrator) finishCancelled(result *domain.EvaluationResult, cv domain.CVDocument, stageErrors []domain.StageError, logger *slog.Logger) (*domain.EvaluationResult, error) {
	result.State = domain.RunFailed
	result.StageErrors = append(stageErrors, domain.StageError{Stage: "run", Reason: "cancelled"})
	result.FinishedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.evalRepo.Save(ctx, result); err != nil {
		logger.Warn("persist cancelled run failed", slog.String("error", err.Error()))
	}
	logger.Info("run cancelled", slog.String("cv_id", cv.ID))
	return result, context.Canceled
}

func (o *Orchestrator) advance(ctx context.Context, result *domain.EvaluationResult, state domain.RunState, logger *slog.Logger) {
	result.State = state
	if err := o.evalRepo.UpdateState(ctx, result.CVID, result.RunID, state); err != nil {
		logger.Warn("state update failed",
			slog.String("state", string(state)),
			slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) observeStage(stage string, d time.Duration) {
	if o.observe != nil {
		o.observe(stage, d)
	}
}

func recordStageError(logger *slog.Logger, mu *sync.Mutex, stageErrors *[]domain.StageError, stage, subject string, err error) {
	if err == nil {
		return
	}
	logger.Warn("stage error",
		slog.String("stage", stage),
		slog.String("subject", subject),
		slog.String("error", err.Error()))
	mu.Lock()
	*stageErrors = append(*stageErrors, domain.StageError{Stage: stage, Subject: subject, Reason: err.Error()})
	mu.Unlock()
}

func acquire(ctx context.Context, sem chan struct{}) bool {
	select {
	case sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// claimsInOrder dedupes claimed skills preserving CV order; the first
// claim per name wins, matching SkillNames.
func claimsInOrder(cv domain.CVDocument) []domain.SkillClaim {
	seen := make(map[string]struct{}, len(cv.ClaimedSkills))
	out := make([]domain.SkillClaim, 0, len(cv.ClaimedSkills))
	for _, claim := range cv.ClaimedSkills {
		if _, ok := seen[claim.Name]; ok {
			continue
		}
		seen[claim.Name] = struct{}{}
		out = append(out, claim)
	}
	return out
}
