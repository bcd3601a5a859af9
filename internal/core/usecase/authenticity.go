package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
)

// SnippetSampler retrieves representative code chunks for one project
// from the run's index. Wired in bootstrap; nil disables sampling.
type SnippetSampler func(ctx context.Context, runID string, ref domain.ProjectRef) []domain.CodeChunk

// AuthenticityAnalyzer scores how authentic one referenced project
// looks: deterministic structural signals blended with the oracle's
// originality judgment.
type AuthenticityAnalyzer struct {
	source           ports.EvidenceSource
	oracle           ports.JudgmentOracle
	sampler          SnippetSampler
	structuralWeight float64
	judgmentWeight   float64
	logger           *slog.Logger
}

func NewAuthenticityAnalyzer(source ports.EvidenceSource, oracle ports.JudgmentOracle, sampler SnippetSampler, structuralWeight, judgmentWeight float64, logger *slog.Logger) *AuthenticityAnalyzer {
	if structuralWeight <= 0 || judgmentWeight <= 0 {
		structuralWeight, judgmentWeight = 0.4, 0.6
	}
	total := structuralWeight + judgmentWeight
	return &AuthenticityAnalyzer{
		source:           source,
		oracle:           oracle,
		sampler:          sampler,
		structuralWeight: structuralWeight / total,
		judgmentWeight:   judgmentWeight / total,
		logger:           logger,
	}
}

// Analyze never omits a project: an unresolvable reference comes back
// with score 0 and the unresolvable red flag.
func (a *AuthenticityAnalyzer) Analyze(ctx context.Context, runID string, ref domain.ProjectRef) (domain.RepoAuthenticity, error) {
	facts, err := a.source.ProjectFacts(ctx, ref)
	if err != nil {
		return domain.RepoAuthenticity{}, err
	}
	if !facts.Resolved {
		return domain.RepoAuthenticity{
			Project:     ref.Identifier(),
			Description: "project reference could not be resolved on the code host",
			RedFlags:    []domain.RedFlag{domain.FlagUnresolvable},
			Facts:       facts,
		}, nil
	}

	structural, flags := structuralScore(facts)

	var snippets []domain.CodeChunk
	if a.sampler != nil {
		snippets = a.sampler(ctx, runID, ref)
	}

	judgmentScore := structural
	description := "structural signals only"
	judgment, err := a.oracle.JudgeOriginality(ctx, ref, facts, snippets)
	if err != nil {
		a.logger.Warn("originality judgment failed",
			slog.String("project", ref.Identifier()),
			slog.String("error", err.Error()))
	} else {
		judgmentScore = judgment.Score
		description = judgment.Description
		for _, label := range judgment.Labels {
			if flag, ok := judgmentFlag(label); ok && !hasFlag(flags, flag) {
				flags = append(flags, flag)
			}
		}
	}

	combined := a.structuralWeight*structural + a.judgmentWeight*judgmentScore
	// A fork that still judges highly is likely judged on inherited
	// code; dock it rather than let it outrank original work.
	if facts.Fork && combined > 70 {
		combined -= 10
	}
	if combined < 0 {
		combined = 0
	}
	if combined > 100 {
		combined = 100
	}

	return domain.RepoAuthenticity{
		Project:           ref.Identifier(),
		AuthenticityScore: combined,
		StructuralScore:   structural,
		JudgmentScore:     judgmentScore,
		Description:       description,
		RedFlags:          flags,
		Facts:             facts,
	}, nil
}

// structuralScore normalizes the deterministic repo signals into
// [0,100] and collects the red flags they trigger.
func structuralScore(facts domain.ProjectFacts) (float64, []domain.RedFlag) {
	score := 50.0
	var flags []domain.RedFlag

	switch {
	case facts.CommitCount >= 20:
		score += 15
	case facts.CommitCount < 5:
		score -= 15
		flags = append(flags, domain.FlagShallowHistory)
	}

	switch {
	case facts.CommitSpreadDays >= 90:
		score += 15
	case facts.CommitSpreadDays >= 30:
		score += 5
	case facts.CommitCount >= 5 && facts.CommitSpreadDays < 7:
		// Many commits in under a week reads like a bulk import.
		score -= 10
		if !hasFlag(flags, domain.FlagShallowHistory) {
			flags = append(flags, domain.FlagShallowHistory)
		}
	}

	if facts.BoilerplateRatio > 0.5 {
		score -= 20
		flags = append(flags, domain.FlagBoilerplateHeavy)
	}
	if facts.Fork {
		score -= 15
		flags = append(flags, domain.FlagFork)
	}
	if facts.TemplateMatch {
		score -= 25
		flags = append(flags, domain.FlagTemplateMatch)
	}
	if facts.Stars >= 5 {
		score += 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, flags
}

func judgmentFlag(label string) (domain.RedFlag, bool) {
	switch label {
	case "template_match", "template_based", "tutorial_clone":
		return domain.FlagTemplateMatch, true
	case "boilerplate_heavy":
		return domain.FlagBoilerplateHeavy, true
	default:
		return "", false
	}
}

func hasFlag(flags []domain.RedFlag, flag domain.RedFlag) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
