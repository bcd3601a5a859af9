package ports

import (
	"context"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

// CVRepository persists and reads parsed CV documents.
type CVRepository interface {
	Create(ctx context.Context, cv *domain.CVDocument) error
	GetByID(ctx context.Context, id string) (*domain.CVDocument, error)
}

// EvaluationRepository persists run state and the terminal result.
// Save replaces any previous row for the CV; results are never
// mutated in place.
type EvaluationRepository interface {
	Save(ctx context.Context, result *domain.EvaluationResult) error
	GetByCVID(ctx context.Context, cvID string) (*domain.EvaluationResult, error)
	UpdateState(ctx context.Context, cvID, runID string, state domain.RunState) error
	List(ctx context.Context, limit int) ([]domain.EvaluationResult, error)
}

// MessageQueue publishes/consumes run submissions between api and worker.
type MessageQueue interface {
	PublishEvaluationRequested(ctx context.Context, cvID string) error
	SubscribeEvaluationRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// EvidenceSubject addresses either a claimed skill or a referenced
// project for a given candidate.
type EvidenceSubject struct {
	Candidate domain.CandidateLinks
	Skill     *domain.SkillClaim
	Project   *domain.ProjectRef
}

// EvidenceSource is a uniform query interface over one external
// evidence backend. Fetch is idempotent, times out rather than hangs,
// and reports "no data" via EvidenceFetch.EmptyReason instead of an
// error.
type EvidenceSource interface {
	Kind() domain.SourceKind
	// Prepare runs once per run before per-subject fetches; a source
	// with nothing to warm up returns nil immediately. Per-run state is
	// keyed by runID so concurrent runs do not share material.
	Prepare(ctx context.Context, runID string, cand domain.CandidateLinks) error
	Fetch(ctx context.Context, runID string, subject EvidenceSubject) (domain.EvidenceFetch, error)
	// Cleanup releases per-run material after the run reaches a
	// terminal state.
	Cleanup(ctx context.Context, runID string) error
	// ProjectFacts resolves structural signals for one repository.
	// An unresolvable reference yields Facts.Resolved == false, not an
	// error.
	ProjectFacts(ctx context.Context, ref domain.ProjectRef) (domain.ProjectFacts, error)
}

// SupportJudgment is the oracle's verdict on whether evidence snippets
// back a skill claim.
type SupportJudgment struct {
	Supported  bool
	Confidence float64 // 0..1
	Evidence   []domain.EvidenceRecord
}

// LevelJudgment classifies usage sophistication from evidence text.
type LevelJudgment struct {
	Level     domain.ProficiencyLevel
	Rationale string
}

// OriginalityJudgment scores how original a project looks.
type OriginalityJudgment struct {
	Score       float64 // 0..100
	Description string
	Labels      []string
}

// QuestionContext carries the policy inputs for question generation.
type QuestionContext struct {
	ClaimedLevel  domain.ProficiencyLevel
	ObservedLevel domain.ProficiencyLevel
	Overclaim     domain.OverclaimState
	FocusAreas    []string
	Budget        domain.QuestionBudget
	Snippets      []domain.CodeChunk
}

// JudgmentOracle is the external classification/generation service.
// Treated as a black box with a latency/error contract only.
type JudgmentOracle interface {
	ClassifySkillSupport(ctx context.Context, skill string, snippets []domain.CodeChunk) (SupportJudgment, error)
	ClassifyProficiency(ctx context.Context, skill string, evidence []domain.EvidenceRecord) (LevelJudgment, error)
	JudgeOriginality(ctx context.Context, project domain.ProjectRef, facts domain.ProjectFacts, snippets []domain.CodeChunk) (OriginalityJudgment, error)
	GenerateQuestions(ctx context.Context, skill string, qctx QuestionContext) (domain.InterviewQuestionSet, error)
}

// Embedder builds vectors for code chunks and retrieval queries.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkIndex is the per-run retrieval index over candidate code.
type ChunkIndex interface {
	IndexChunks(ctx context.Context, runID string, chunks []domain.CodeChunk, vectors [][]float32) error
	Search(ctx context.Context, runID string, queryVector []float32, limit int) ([]domain.CodeChunk, error)
	DropRun(ctx context.Context, runID string) error
}

// CVTextExtractor pulls plain text out of an uploaded résumé file.
type CVTextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// CVParser turns raw résumé text into a structured CVDocument. The
// pipeline assumes its output is already validated.
type CVParser interface {
	Parse(ctx context.Context, text string) (*domain.CVDocument, error)
}

// ObjectStorage stores uploaded résumé files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data []byte) (string, error)
}
