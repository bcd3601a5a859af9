package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
)

// InflationDetector compares the claimed proficiency level with the
// level the evidence shows. Confidence bands give the base estimate;
// one oracle classification cross-checks it.
type InflationDetector struct {
	oracle ports.JudgmentOracle
	logger *slog.Logger
}

func NewInflationDetector(oracle ports.JudgmentOracle, logger *slog.Logger) *InflationDetector {
	return &InflationDetector{oracle: oracle, logger: logger}
}

func (d *InflationDetector) Detect(ctx context.Context, claim domain.SkillClaim, evidence domain.SkillEvidenceResult) domain.SkillInflationResult {
	out := domain.SkillInflationResult{
		Skill:        claim.Name,
		ClaimedLevel: claim.ClaimedLevel,
		Overclaim:    domain.OverclaimUnknown,
	}

	// A fabricated skill is an overclaim by definition, whatever level
	// was written next to it.
	if evidence.Fake {
		out.ObservedLevel = domain.LevelUnknown
		out.Overclaim = domain.OverclaimYes
		out.Severity = fakeSeverity(claim.ClaimedLevel)
		out.Rationale = "evidence marks the skill as fabricated"
		return out
	}

	if evidence.Status == domain.StatusInsufficientData {
		out.ObservedLevel = domain.LevelUnknown
		out.Rationale = "no usable evidence to estimate a level"
		return out
	}

	observed := domain.ObservedLevelForConfidence(evidence.Confidence)
	rationale := fmt.Sprintf("confidence %.2f places observed level at %s", evidence.Confidence, observed)
	observedKnown := true

	judgment, err := d.oracle.ClassifyProficiency(ctx, claim.Name, evidence.Evidence)
	if err != nil {
		// The executor already retried once; a second failure leaves
		// the observed level unknown rather than trusting the band
		// estimate alone.
		d.logger.Warn("proficiency classification failed",
			slog.String("skill", claim.Name),
			slog.String("error", err.Error()))
		out.ObservedLevel = domain.LevelUnknown
		out.Rationale = "level judgment unavailable"
		return out
	}
	if judgment.Level.Known() {
		observed = judgment.Level
		if judgment.Rationale != "" {
			rationale = judgment.Rationale
		}
	}

	out.ObservedLevel = observed
	out.ObservedKnown = observedKnown
	out.Rationale = rationale

	if !claim.ClaimedLevel.Known() || !observed.Known() {
		// Unknown claimed level is recorded, never guessed against.
		return out
	}

	distance := claim.ClaimedLevel.Rank() - observed.Rank()
	if distance <= 0 {
		// Under-claiming or matching is never flagged.
		out.Overclaim = domain.OverclaimNo
		return out
	}
	out.Overclaim = domain.OverclaimYes
	out.Severity = distance
	return out
}

// fakeSeverity is the ordinal distance from the claimed level down to
// beginner, floored at 1.
func fakeSeverity(claimed domain.ProficiencyLevel) int {
	if !claimed.Known() {
		return 1
	}
	severity := claimed.Rank() - domain.LevelBeginner.Rank()
	if severity < 1 {
		severity = 1
	}
	return severity
}
