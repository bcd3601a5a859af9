package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
)

// QuestionGenerator owns the questioning policy; the oracle only
// writes the content. Budgets are deterministic functions of the
// inflation verdict and evidence strength.
type QuestionGenerator struct {
	oracle ports.JudgmentOracle
	logger *slog.Logger
}

func NewQuestionGenerator(oracle ports.JudgmentOracle, logger *slog.Logger) *QuestionGenerator {
	return &QuestionGenerator{oracle: oracle, logger: logger}
}

// budgetFor maps the verdict onto question counts. Overclaimed skills
// get probed with practical and debugging work; strong verified skills
// get fewer, harder theory questions.
func budgetFor(inflation domain.SkillInflationResult, evidence domain.SkillEvidenceResult) domain.QuestionBudget {
	switch {
	case inflation.Overclaim == domain.OverclaimYes && inflation.Severity >= 2:
		return domain.QuestionBudget{Theoretical: 1, Practical: 3, Debugging: 3}
	case inflation.Overclaim == domain.OverclaimYes:
		return domain.QuestionBudget{Theoretical: 1, Practical: 2, Debugging: 2}
	case inflation.Overclaim == domain.OverclaimNo && evidence.Confidence > 0.75:
		return domain.QuestionBudget{Theoretical: 2, Practical: 1, Debugging: 0}
	default:
		return domain.QuestionBudget{Theoretical: 2, Practical: 2, Debugging: 1}
	}
}

// focusAreasFor names the weakest sub-signals so the interviewer knows
// why each skill made the list.
func focusAreasFor(inflation domain.SkillInflationResult, evidence domain.SkillEvidenceResult, threshold float64) []string {
	var focus []string
	if inflation.Overclaim == domain.OverclaimYes {
		focus = append(focus, fmt.Sprintf("claimed %s but evidence shows %s", inflation.ClaimedLevel, inflation.ObservedLevel))
	}
	if evidence.Status == domain.StatusInsufficientData {
		focus = append(focus, "no public evidence found for this skill")
	} else if evidence.Confidence < threshold {
		focus = append(focus, fmt.Sprintf("evidence confidence %.2f below support threshold", evidence.Confidence))
	}
	if evidence.Fake {
		focus = append(focus, "evidence contradicts the claim")
	}
	return focus
}

func (g *QuestionGenerator) Generate(ctx context.Context, runID string, claim domain.SkillClaim, evidence domain.SkillEvidenceResult, inflation domain.SkillInflationResult, threshold float64) (domain.InterviewQuestionSet, error) {
	budget := budgetFor(inflation, evidence)
	focus := focusAreasFor(inflation, evidence, threshold)

	set, err := g.oracle.GenerateQuestions(ctx, claim.Name, ports.QuestionContext{
		ClaimedLevel:  claim.ClaimedLevel,
		ObservedLevel: inflation.ObservedLevel,
		Overclaim:     inflation.Overclaim,
		FocusAreas:    focus,
		Budget:        budget,
		Snippets:      chunksFromRecords(evidence.Evidence),
	})
	if err != nil {
		g.logger.Warn("question generation failed",
			slog.String("run_id", runID),
			slog.String("skill", claim.Name),
			slog.String("error", err.Error()))
		// The empty set keeps the 1:1 skill mapping; the caller
		// records the stage error.
		return domain.InterviewQuestionSet{Skill: claim.Name, FocusAreas: focus}, err
	}
	set.Skill = claim.Name
	if len(set.FocusAreas) == 0 {
		set.FocusAreas = focus
	}
	return set, nil
}
