package usecase

import (
	"sort"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

// aggregateScores folds the four stage outputs into the fixed-weight
// category scores and counts. Pure function; the orchestrator owns
// when it runs.
func aggregateScores(
	skills map[string]domain.SkillEvidenceResult,
	projects map[string]domain.RepoAuthenticity,
	inflation map[string]domain.SkillInflationResult,
	timeline float64,
) (domain.CategoryScores, domain.SkillCounts) {
	counts := domain.SkillCounts{Total: len(skills)}

	// Skill authenticity: mean confidence on a 0..100 scale. A fake
	// skill contributes zero instead of being excluded, so one
	// fabricated claim drags the average down.
	authenticity := 0.0
	supported := 0
	for _, skill := range skills {
		if skill.Fake {
			counts.Fake++
			continue
		}
		counts.Real++
		authenticity += skill.Confidence * 100
		if skill.Status == domain.StatusSupported {
			supported++
		}
	}
	if counts.Total > 0 {
		authenticity /= float64(counts.Total)
	}

	codeQuality := 0.0
	for _, project := range projects {
		codeQuality += project.AuthenticityScore
	}
	if len(projects) > 0 {
		codeQuality /= float64(len(projects))
	}

	presence := 0.0
	if counts.Total > 0 {
		presence = float64(supported) / float64(counts.Total) * 100
	}

	for _, inf := range inflation {
		if inf.Overclaim == domain.OverclaimYes {
			counts.Overclaim++
		}
	}

	scores := domain.CategoryScores{
		Authenticity:  authenticity,
		Timeline:      timeline,
		CodeQuality:   codeQuality,
		PresenceMatch: presence,
	}
	scores.Overall = domain.OverallFor(scores.Authenticity, scores.Timeline, scores.CodeQuality, scores.PresenceMatch)
	return scores, counts
}

// focusRanking orders skills by interview attention: lowest evidence
// confidence first, ties broken by descending overclaim severity, then
// by ascending skill name. Skills whose observed level never resolved
// carry no severity signal; they are listed after the ranked ones, by
// name, rather than dropped.
func focusRanking(
	skills map[string]domain.SkillEvidenceResult,
	inflation map[string]domain.SkillInflationResult,
) []string {
	ranked := make([]string, 0, len(skills))
	var unresolved []string
	for name := range skills {
		if inf, ok := inflation[name]; ok && !inf.ObservedKnown {
			unresolved = append(unresolved, name)
			continue
		}
		ranked = append(ranked, name)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := skills[ranked[i]], skills[ranked[j]]
		if a.Confidence != b.Confidence {
			return a.Confidence < b.Confidence
		}
		if sa, sb := inflation[ranked[i]].Severity, inflation[ranked[j]].Severity; sa != sb {
			return sa > sb
		}
		return ranked[i] < ranked[j]
	})
	sort.Strings(unresolved)
	return append(ranked, unresolved...)
}
