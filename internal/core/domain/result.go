package domain

import (
	"fmt"
	"math"
	"time"
)

// RunState is the orchestrator's per-run state machine.
type RunState string

const (
	RunPending            RunState = "pending"
	RunEvidenceGathering  RunState = "evidence_gathering"
	RunScoring            RunState = "scoring"
	RunQuestionGeneration RunState = "question_generation"
	RunComplete           RunState = "complete"
	RunPartial            RunState = "partial"
	RunFailed             RunState = "failed"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == RunComplete || s == RunPartial || s == RunFailed
}

// StageError records a captured stage-local failure. These are data,
// not control flow: only ErrFatalPipeline ever aborts a run.
type StageError struct {
	Stage   string `json:"stage"`
	Subject string `json:"subject,omitempty"` // skill or project, when item-scoped
	Reason  string `json:"reason"`
}

// Score weights. Fixed by policy; configurable per deployment but the
// stored overall must always be reproducible from the sub-scores.
const (
	WeightAuthenticity  = 0.4
	WeightTimeline      = 0.2
	WeightCodeQuality   = 0.2
	WeightPresenceMatch = 0.2
)

// CategoryScores are the four sub-scores feeding the overall value,
// each in [0,100].
type CategoryScores struct {
	Authenticity  float64 `json:"authenticity"`
	Timeline      float64 `json:"timeline"`
	CodeQuality   float64 `json:"code_quality"`
	PresenceMatch float64 `json:"presence_match"`
	Overall       int     `json:"overall"`
}

// OverallFor recomputes the weighted overall score from sub-scores.
// Pure function of its inputs: rounded to the nearest integer and
// clamped to [0,100].
func OverallFor(authenticity, timeline, codeQuality, presenceMatch float64) int {
	weighted := WeightAuthenticity*authenticity +
		WeightTimeline*timeline +
		WeightCodeQuality*codeQuality +
		WeightPresenceMatch*presenceMatch
	overall := int(math.Round(weighted))
	if overall < 0 {
		return 0
	}
	if overall > 100 {
		return 100
	}
	return overall
}

// SkillCounts summarizes the skill verdicts for the dashboard header.
type SkillCounts struct {
	Total     int `json:"total"`
	Real      int `json:"real"`
	Fake      int `json:"fake"`
	Overclaim int `json:"overclaim"`
}

// EvaluationResult is the terminal aggregate of one pipeline run. It
// is written once per run and replaced, never mutated, on rerun. The
// field names and nesting are the dashboard contract.
type EvaluationResult struct {
	RunID       string   `json:"run_id"`
	CVID        string   `json:"cv_id"`
	ContentHash string   `json:"content_hash"`
	State       RunState `json:"state"`

	Skills    map[string]SkillEvidenceResult  `json:"skills"`
	Projects  map[string]RepoAuthenticity     `json:"projects"`
	Inflation map[string]SkillInflationResult `json:"inflation"`
	Questions map[string]InterviewQuestionSet `json:"questions"`

	// FocusOrder lists skill names in interview-attention order, the
	// skill most worth probing first.
	FocusOrder []string `json:"focus_order"`

	Scores      CategoryScores `json:"scores"`
	Counts      SkillCounts    `json:"counts"`
	StageErrors []StageError   `json:"stage_errors"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Validate checks the 1:1 mapping invariants between the CV's claims
// and the per-skill/per-project collections. A violation here is a
// fatal pipeline error, not a data condition.
func (r EvaluationResult) Validate(cv CVDocument) error {
	if r.State == RunFailed {
		return nil
	}
	skillNames := cv.SkillNames()
	if len(r.Skills) != len(skillNames) {
		return WrapError(ErrFatalPipeline, "validate result",
			fmt.Errorf("skill results %d != claimed skills %d", len(r.Skills), len(skillNames)))
	}
	for _, name := range skillNames {
		if _, ok := r.Skills[name]; !ok {
			return WrapError(ErrFatalPipeline, "validate result",
				fmt.Errorf("missing skill result %q", name))
		}
	}
	if r.State == RunComplete {
		if len(r.Projects) != len(cv.Projects) {
			return WrapError(ErrFatalPipeline, "validate result",
				fmt.Errorf("project results %d != claimed projects %d", len(r.Projects), len(cv.Projects)))
		}
		for _, p := range cv.Projects {
			if _, ok := r.Projects[p.Identifier()]; !ok {
				return WrapError(ErrFatalPipeline, "validate result",
					fmt.Errorf("missing project result %q", p.Identifier()))
			}
		}
	}
	if got := OverallFor(r.Scores.Authenticity, r.Scores.Timeline, r.Scores.CodeQuality, r.Scores.PresenceMatch); got != r.Scores.Overall {
		return WrapError(ErrFatalPipeline, "validate result",
			fmt.Errorf("stored overall %d not reproducible, want %d", r.Scores.Overall, got))
	}
	return nil
}

// Identifier returns the stable map key for a project reference: the
// code-host full name when present, the CV project name otherwise.
func (p ProjectRef) Identifier() string {
	if p.RepoFull != "" {
		return p.RepoFull
	}
	return p.Name
}
