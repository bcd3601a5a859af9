package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

type sourceFake struct {
	kind       domain.SourceKind
	fetch      domain.EvidenceFetch
	fetchErr   error
	facts      domain.ProjectFacts
	factsErr   error
	prepareErr error

	mu       sync.Mutex
	prepared []string
	cleaned  []string
}

func (f *sourceFake) Kind() domain.SourceKind { return f.kind }

func (f *sourceFake) Prepare(_ context.Context, runID string, _ domain.CandidateLinks) error {
	f.mu.Lock()
	f.prepared = append(f.prepared, runID)
	f.mu.Unlock()
	return f.prepareErr
}

func (f *sourceFake) Fetch(context.Context, string, ports.EvidenceSubject) (domain.EvidenceFetch, error) {
	return f.fetch, f.fetchErr
}

func (f *sourceFake) ProjectFacts(context.Context, domain.ProjectRef) (domain.ProjectFacts, error) {
	return f.facts, f.factsErr
}

func (f *sourceFake) Cleanup(_ context.Context, runID string) error {
	f.mu.Lock()
	f.cleaned = append(f.cleaned, runID)
	f.mu.Unlock()
	return nil
}

type oracleFake struct {
	support      ports.SupportJudgment
	supportErr   error
	level        ports.LevelJudgment
	levelErr     error
	originality  ports.OriginalityJudgment
	originalErr  error
	questions    domain.InterviewQuestionSet
	questionsErr error

	mu           sync.Mutex
	levelCalls   int
	supportCalls int
}

func (f *oracleFake) ClassifySkillSupport(context.Context, string, []domain.CodeChunk) (ports.SupportJudgment, error) {
	f.mu.Lock()
	f.supportCalls++
	f.mu.Unlock()
	return f.support, f.supportErr
}

func (f *oracleFake) ClassifyProficiency(context.Context, string, []domain.EvidenceRecord) (ports.LevelJudgment, error) {
	f.mu.Lock()
	f.levelCalls++
	f.mu.Unlock()
	return f.level, f.levelErr
}

func (f *oracleFake) JudgeOriginality(context.Context, domain.ProjectRef, domain.ProjectFacts, []domain.CodeChunk) (ports.OriginalityJudgment, error) {
	return f.originality, f.originalErr
}

func (f *oracleFake) GenerateQuestions(_ context.Context, skill string, qctx ports.QuestionContext) (domain.InterviewQuestionSet, error) {
	if f.questionsErr != nil {
		return domain.InterviewQuestionSet{}, f.questionsErr
	}
	set := f.questions
	set.Skill = skill
	if len(set.Theoretical) == 0 {
		for i := 0; i < qctx.Budget.Theoretical; i++ {
			set.Theoretical = append(set.Theoretical, "t")
		}
		for i := 0; i < qctx.Budget.Practical; i++ {
			set.Practical = append(set.Practical, "p")
		}
		for i := 0; i < qctx.Budget.Debugging; i++ {
			set.Debugging = append(set.Debugging, "d")
		}
	}
	return set, nil
}

type evalRepoFake struct {
	mu     sync.Mutex
	saved  []domain.EvaluationResult
	states []domain.RunState
}

func (f *evalRepoFake) Save(_ context.Context, result *domain.EvaluationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *result)
	return nil
}

func (f *evalRepoFake) GetByCVID(_ context.Context, cvID string) (*domain.EvaluationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.saved) - 1; i >= 0; i-- {
		if f.saved[i].CVID == cvID {
			out := f.saved[i]
			return &out, nil
		}
	}
	return nil, domain.WrapError(domain.ErrRunNotFound, "get evaluation", errors.New("no saved result"))
}

func (f *evalRepoFake) UpdateState(_ context.Context, _, _ string, state domain.RunState) error {
	f.mu.Lock()
	f.states = append(f.states, state)
	f.mu.Unlock()
	return nil
}

func (f *evalRepoFake) List(_ context.Context, _ int) ([]domain.EvaluationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.EvaluationResult(nil), f.saved...), nil
}

func (f *evalRepoFake) last() domain.EvaluationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[len(f.saved)-1]
}

type cvRepoFake struct {
	cv  *domain.CVDocument
	err error
}

func (f *cvRepoFake) Create(_ context.Context, cv *domain.CVDocument) error {
	f.cv = cv
	return nil
}

func (f *cvRepoFake) GetByID(context.Context, string) (*domain.CVDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	copyCV := *f.cv
	return &copyCV, nil
}

type queueFake struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (f *queueFake) PublishEvaluationRequested(_ context.Context, cvID string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.published = append(f.published, cvID)
	f.mu.Unlock()
	return nil
}

func (f *queueFake) SubscribeEvaluationRequested(context.Context, func(context.Context, string) error) error {
	return nil
}
