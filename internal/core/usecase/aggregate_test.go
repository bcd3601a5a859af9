package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

func TestAggregateScoresWeightsAndCounts(t *testing.T) {
	skills := map[string]domain.SkillEvidenceResult{
		"Go":         {Skill: "Go", Status: domain.StatusSupported, Confidence: 0.8},
		"Postgres":   {Skill: "Postgres", Status: domain.StatusUnsupported, Confidence: 0.3},
		"Kubernetes": {Skill: "Kubernetes", Status: domain.StatusUnsupported, Fake: true, Confidence: 0.9},
	}
	projects := map[string]domain.RepoAuthenticity{
		"dana/crawler": {Project: "dana/crawler", AuthenticityScore: 80},
		"dana/starter": {Project: "dana/starter", AuthenticityScore: 20},
	}
	inflation := map[string]domain.SkillInflationResult{
		"Go":         {Overclaim: domain.OverclaimNo},
		"Postgres":   {Overclaim: domain.OverclaimYes, Severity: 1},
		"Kubernetes": {Overclaim: domain.OverclaimYes, Severity: 2},
	}

	scores, counts := aggregateScores(skills, projects, inflation, 85)

	// Fake skill contributes 0: (80 + 30 + 0) / 3.
	if diff := math.Abs(scores.Authenticity - 110.0/3); diff > 1e-9 {
		t.Fatalf("authenticity = %.4f, want %.4f", scores.Authenticity, 110.0/3)
	}
	if scores.CodeQuality != 50 {
		t.Fatalf("code quality = %.1f, want 50", scores.CodeQuality)
	}
	// One supported skill of three.
	if diff := math.Abs(scores.PresenceMatch - 100.0/3); diff > 1e-9 {
		t.Fatalf("presence = %.4f, want %.4f", scores.PresenceMatch, 100.0/3)
	}
	if scores.Timeline != 85 {
		t.Fatalf("timeline passthrough broken: %.1f", scores.Timeline)
	}
	if scores.Overall != domain.OverallFor(scores.Authenticity, scores.Timeline, scores.CodeQuality, scores.PresenceMatch) {
		t.Fatalf("overall not reproducible from categories: %+v", scores)
	}

	want := domain.SkillCounts{Total: 3, Real: 2, Fake: 1, Overclaim: 2}
	if counts != want {
		t.Fatalf("counts = %+v, want %+v", counts, want)
	}
}

func TestAggregateScoresEmptyInputs(t *testing.T) {
	scores, counts := aggregateScores(nil, nil, nil, 50)
	if scores.Authenticity != 0 || scores.CodeQuality != 0 || scores.PresenceMatch != 0 {
		t.Fatalf("empty inputs must score zero categories: %+v", scores)
	}
	if counts.Total != 0 {
		t.Fatalf("counts = %+v, want empty", counts)
	}
}

func TestFocusRankingWeakestConfidenceFirst(t *testing.T) {
	skills := map[string]domain.SkillEvidenceResult{
		"Go":     {Skill: "Go", Confidence: 0.9},
		"Rust":   {Skill: "Rust", Confidence: 0.2},
		"Python": {Skill: "Python", Confidence: 0.2},
		"SQL":    {Skill: "SQL", Confidence: 0.2},
	}
	inflation := map[string]domain.SkillInflationResult{
		"Go":     {Skill: "Go", Severity: 0, ObservedKnown: true},
		"Rust":   {Skill: "Rust", Severity: 2, ObservedKnown: true},
		"Python": {Skill: "Python", Severity: 1, ObservedKnown: true},
		"SQL":    {Skill: "SQL", Severity: 2, ObservedKnown: true},
	}

	got := focusRanking(skills, inflation)

	// Confidence ties break by descending severity, then by name.
	want := []string{"Rust", "SQL", "Python", "Go"}
	if len(got) != len(want) {
		t.Fatalf("ranking length = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ranking[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestFocusRankingUnresolvedObservedLevelListedLast(t *testing.T) {
	skills := map[string]domain.SkillEvidenceResult{
		"Kubernetes": {Skill: "Kubernetes", Confidence: 0.1},
		"Terraform":  {Skill: "Terraform", Confidence: 0.1},
		"Go":         {Skill: "Go", Confidence: 0.95},
		"Postgres":   {Skill: "Postgres", Confidence: 0.5},
	}
	inflation := map[string]domain.SkillInflationResult{
		"Kubernetes": {Skill: "Kubernetes", Severity: 2, ObservedKnown: false},
		"Terraform":  {Skill: "Terraform", Severity: 1, ObservedKnown: false},
		"Go":         {Skill: "Go", ObservedKnown: true},
		"Postgres":   {Skill: "Postgres", Severity: 1, ObservedKnown: true},
	}

	got := focusRanking(skills, inflation)

	// Skills without a resolved observed level keep no severity
	// signal: they trail the ranked skills in name order even with
	// the lowest confidence.
	want := []string{"Postgres", "Go", "Kubernetes", "Terraform"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ranking[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}
