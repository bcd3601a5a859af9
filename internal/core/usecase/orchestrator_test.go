package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
)

func testCV() domain.CVDocument {
	return domain.CVDocument{
		ID:            "cv-1",
		CandidateName: "Dana",
		ClaimedSkills: []domain.SkillClaim{
			{Name: "Go", ClaimedLevel: domain.LevelExpert, ClaimText: "built concurrent crawlers"},
		},
		Projects: []domain.ProjectRef{
			{Name: "crawler", RepoFull: "dana/crawler"},
		},
	}
}

func newTestOrchestrator(evalRepo *evalRepoFake, source *sourceFake, oracle *oracleFake) *Orchestrator {
	sources := []ports.EvidenceSource{source}
	mapper := NewEvidenceMapper(sources, oracle, 0.5, testLogger())
	analyzer := NewAuthenticityAnalyzer(source, oracle, nil, 0.4, 0.6, testLogger())
	detector := NewInflationDetector(oracle, testLogger())
	generator := NewQuestionGenerator(oracle, testLogger())
	return NewOrchestrator(evalRepo, sources, mapper, analyzer, detector, generator, 4, 0.5, nil, testLogger())
}

func supportedOracle() *oracleFake {
	return &oracleFake{
		support: ports.SupportJudgment{
			Supported:  true,
			Confidence: 0.9,
			Evidence: []domain.EvidenceRecord{{
				ID: "c1", File: "pool.go", Lines: "L1-L40",
				Excerpt: "go func()",
				Payload: map[string]any{"chunk_text": "go func() { work() }"},
			}},
		},
		level:       ports.LevelJudgment{Level: domain.LevelExpert},
		originality: ports.OriginalityJudgment{Score: 80, Description: "original work"},
	}
}

func TestEvaluateCompletesAndPersists(t *testing.T) {
	evalRepo := &evalRepoFake{}
	source := &sourceFake{
		kind:  domain.SourceCodeHosting,
		fetch: domain.EvidenceFetch{Records: []domain.EvidenceRecord{codeRecord("c1", "go func() { work() }")}},
		facts: domain.ProjectFacts{Resolved: true, CommitCount: 40, CommitSpreadDays: 150},
	}
	orch := newTestOrchestrator(evalRepo, source, supportedOracle())

	result, err := orch.Evaluate(context.Background(), testCV())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.State != domain.RunComplete {
		t.Fatalf("state = %s, want complete (%+v)", result.State, result.StageErrors)
	}
	if _, ok := result.Skills["Go"]; !ok {
		t.Fatalf("missing skill entry: %+v", result.Skills)
	}
	if _, ok := result.Projects["dana/crawler"]; !ok {
		t.Fatalf("missing project entry: %+v", result.Projects)
	}
	if _, ok := result.Questions["Go"]; !ok {
		t.Fatalf("missing question set: %+v", result.Questions)
	}
	if len(result.FocusOrder) != 1 || result.FocusOrder[0] != "Go" {
		t.Fatalf("focus order = %v, want [Go]", result.FocusOrder)
	}
	if err := result.Validate(testCV()); err != nil {
		t.Fatalf("persisted result violates invariants: %v", err)
	}

	// Pending snapshot first, final result last.
	if first := evalRepo.saved[0]; first.State != domain.RunPending {
		t.Fatalf("first save = %s, want pending", first.State)
	}
	if last := evalRepo.last(); last.State != domain.RunComplete {
		t.Fatalf("last save = %s, want complete", last.State)
	}
	wantStates := []domain.RunState{domain.RunEvidenceGathering, domain.RunScoring, domain.RunQuestionGeneration}
	if len(evalRepo.states) != len(wantStates) {
		t.Fatalf("state updates = %v, want %v", evalRepo.states, wantStates)
	}
	for i, want := range wantStates {
		if evalRepo.states[i] != want {
			t.Fatalf("state update %d = %s, want %s", i, evalRepo.states[i], want)
		}
	}
	if len(source.cleaned) != 1 || source.cleaned[0] != result.RunID {
		t.Fatalf("source cleanup missing or wrong run: %v", source.cleaned)
	}
}

func TestEvaluateStageErrorsEndPartial(t *testing.T) {
	evalRepo := &evalRepoFake{}
	source := &sourceFake{
		kind:       domain.SourceCodeHosting,
		prepareErr: errors.New("zipball too large"),
		fetch:      domain.EvidenceFetch{EmptyReason: "index unavailable"},
		facts:      domain.ProjectFacts{Resolved: true, CommitCount: 40, CommitSpreadDays: 150},
	}
	orch := newTestOrchestrator(evalRepo, source, supportedOracle())

	result, err := orch.Evaluate(context.Background(), testCV())
	if err != nil {
		t.Fatalf("stage failures must not abort the run: %v", err)
	}
	if result.State != domain.RunPartial {
		t.Fatalf("state = %s, want partial", result.State)
	}
	found := false
	for _, se := range result.StageErrors {
		if se.Stage == "prepare" {
			found = true
		}
	}
	if !found {
		t.Fatalf("prepare failure not recorded: %+v", result.StageErrors)
	}
	if err := result.Validate(testCV()); err != nil {
		t.Fatalf("partial result still honors invariants: %v", err)
	}
}

func TestEvaluateAnalyzerFailureKeepsProjectEntry(t *testing.T) {
	evalRepo := &evalRepoFake{}
	source := &sourceFake{
		kind:     domain.SourceCodeHosting,
		fetch:    domain.EvidenceFetch{Records: []domain.EvidenceRecord{codeRecord("c1", "go func() { work() }")}},
		factsErr: errors.New("rate limited"),
	}
	orch := newTestOrchestrator(evalRepo, source, supportedOracle())

	result, err := orch.Evaluate(context.Background(), testCV())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.State != domain.RunPartial {
		t.Fatalf("state = %s, want partial", result.State)
	}
	entry, ok := result.Projects["dana/crawler"]
	if !ok {
		t.Fatalf("failed analysis must still leave a project entry")
	}
	if entry.AuthenticityScore != 0 || !entry.HasFlag(domain.FlagUnresolvable) {
		t.Fatalf("failed analysis scores zero with a flag, got %+v", entry)
	}
}

func TestEvaluateQuestionFailureEndsPartial(t *testing.T) {
	evalRepo := &evalRepoFake{}
	source := &sourceFake{
		kind:  domain.SourceCodeHosting,
		fetch: domain.EvidenceFetch{Records: []domain.EvidenceRecord{codeRecord("c1", "go func() { work() }")}},
		facts: domain.ProjectFacts{Resolved: true, CommitCount: 40, CommitSpreadDays: 150},
	}
	oracle := supportedOracle()
	oracle.questionsErr = errors.New("oracle down")
	orch := newTestOrchestrator(evalRepo, source, oracle)

	result, err := orch.Evaluate(context.Background(), testCV())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.State != domain.RunPartial {
		t.Fatalf("state = %s, want partial", result.State)
	}
	set, ok := result.Questions["Go"]
	if !ok || set.Skill != "Go" {
		t.Fatalf("question entry must survive the failure: %+v", result.Questions)
	}
}

func TestEvaluateCancelledContextFailsRun(t *testing.T) {
	evalRepo := &evalRepoFake{}
	source := &sourceFake{kind: domain.SourceCodeHosting}
	orch := newTestOrchestrator(evalRepo, source, supportedOracle())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := orch.Evaluate(ctx, testCV())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result.State != domain.RunFailed {
		t.Fatalf("state = %s, want failed", result.State)
	}
	found := false
	for _, se := range result.StageErrors {
		if se.Stage == "run" && se.Reason == "cancelled" {
			found = true
		}
	}
	if !found {
		t.Fatalf("cancellation reason missing: %+v", result.StageErrors)
	}
	if last := evalRepo.last(); last.State != domain.RunFailed {
		t.Fatalf("cancelled run must still be persisted, last save = %s", last.State)
	}
}

func TestEvaluateDuplicateSubmissionSharesResult(t *testing.T) {
	evalRepo := &evalRepoFake{}
	source := &sourceFake{kind: domain.SourceCodeHosting}
	orch := newTestOrchestrator(evalRepo, source, supportedOracle())
	cv := testCV()

	run, attached := orch.registry.Acquire(cv.ID, cv.ContentHash(), "run-existing")
	if attached {
		t.Fatalf("setup: slot should be free")
	}

	type outcome struct {
		result *domain.EvaluationResult
		err    error
	}
	got := make(chan outcome, 1)
	go func() {
		result, err := orch.Evaluate(context.Background(), cv)
		got <- outcome{result, err}
	}()

	shared := &domain.EvaluationResult{RunID: run.RunID, CVID: cv.ID, State: domain.RunComplete}
	// Give the duplicate a moment to park on the done channel.
	time.Sleep(20 * time.Millisecond)
	orch.registry.Release(cv.ID, shared, nil)

	select {
	case out := <-got:
		if out.err != nil || out.result != shared {
			t.Fatalf("duplicate must share the in-flight outcome, got (%v, %v)", out.result, out.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("attached submission never unblocked")
	}
	if len(evalRepo.saved) != 0 {
		t.Fatalf("attached submission must not start a second run: %d saves", len(evalRepo.saved))
	}
}

func TestEvaluateChangedContentWaitsThenRestarts(t *testing.T) {
	evalRepo := &evalRepoFake{}
	source := &sourceFake{
		kind:  domain.SourceCodeHosting,
		fetch: domain.EvidenceFetch{Records: []domain.EvidenceRecord{codeRecord("c1", "go func() { work() }")}},
		facts: domain.ProjectFacts{Resolved: true, CommitCount: 40, CommitSpreadDays: 150},
	}
	orch := newTestOrchestrator(evalRepo, source, supportedOracle())
	cv := testCV()

	if _, attached := orch.registry.Acquire(cv.ID, "stale-hash", "run-old"); attached {
		t.Fatalf("setup: slot should be free")
	}

	type outcome struct {
		result *domain.EvaluationResult
		err    error
	}
	got := make(chan outcome, 1)
	go func() {
		result, err := orch.Evaluate(context.Background(), cv)
		got <- outcome{result, err}
	}()

	time.Sleep(20 * time.Millisecond)
	orch.registry.Release(cv.ID, &domain.EvaluationResult{RunID: "run-old"}, nil)

	select {
	case out := <-got:
		if out.err != nil {
			t.Fatalf("resubmission failed: %v", out.err)
		}
		if out.result.RunID == "run-old" || out.result.State != domain.RunComplete {
			t.Fatalf("changed content must trigger a fresh run, got %+v", out.result)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("resubmission never ran")
	}
}

type panickyEvalRepo struct{ evalRepoFake }

func (p *panickyEvalRepo) Save(context.Context, *domain.EvaluationResult) error {
	panic("evaluation store corrupted")
}

func TestEvaluatePanicFreesRunSlot(t *testing.T) {
	source := &sourceFake{kind: domain.SourceCodeHosting}
	sources := []ports.EvidenceSource{source}
	oracle := supportedOracle()
	mapper := NewEvidenceMapper(sources, oracle, 0.5, testLogger())
	analyzer := NewAuthenticityAnalyzer(source, oracle, nil, 0.4, 0.6, testLogger())
	detector := NewInflationDetector(oracle, testLogger())
	generator := NewQuestionGenerator(oracle, testLogger())
	orch := NewOrchestrator(&panickyEvalRepo{}, sources, mapper, analyzer, detector, generator, 4, 0.5, nil, testLogger())

	cv := testCV()
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the storage panic to propagate")
			}
		}()
		_, _ = orch.Evaluate(context.Background(), cv)
	}()

	if _, held := orch.registry.InFlight(cv.ID); held {
		t.Fatal("run slot still held after panic")
	}
}

func TestEvaluateAttachAbandonedReportsConflict(t *testing.T) {
	evalRepo := &evalRepoFake{}
	source := &sourceFake{kind: domain.SourceCodeHosting}
	orch := newTestOrchestrator(evalRepo, source, supportedOracle())

	cv := testCV()
	orch.registry.Acquire(cv.ID, cv.ContentHash(), "run-held")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := orch.Evaluate(ctx, cv)
	if !domain.IsKind(err, domain.ErrRunConflict) {
		t.Fatalf("expected run conflict, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation cause lost: %v", err)
	}
}
