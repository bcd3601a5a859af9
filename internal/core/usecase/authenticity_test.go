package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
)

func TestAnalyzeUnresolvableProjectScoresZeroWithFlag(t *testing.T) {
	source := &sourceFake{kind: domain.SourceCodeHosting, facts: domain.ProjectFacts{Resolved: false}}
	analyzer := NewAuthenticityAnalyzer(source, &oracleFake{}, nil, 0.4, 0.6, testLogger())

	result, err := analyzer.Analyze(context.Background(), "run-1", domain.ProjectRef{Name: "ghost", RepoFull: "dana/ghost"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.AuthenticityScore != 0 {
		t.Fatalf("unresolvable project must score 0, got %.1f", result.AuthenticityScore)
	}
	if !result.HasFlag(domain.FlagUnresolvable) {
		t.Fatalf("missing unresolvable flag: %+v", result)
	}
	if result.Project != "dana/ghost" {
		t.Fatalf("entry must never be omitted or renamed: %+v", result)
	}
}

func TestAnalyzeCombinesStructuralAndJudgment(t *testing.T) {
	source := &sourceFake{kind: domain.SourceCodeHosting, facts: domain.ProjectFacts{
		Resolved:         true,
		CommitCount:      40,
		CommitSpreadDays: 200,
	}}
	oracle := &oracleFake{originality: ports.OriginalityJudgment{Score: 90, Description: "substantial original work"}}
	analyzer := NewAuthenticityAnalyzer(source, oracle, nil, 0.4, 0.6, testLogger())

	result, err := analyzer.Analyze(context.Background(), "run-1", domain.ProjectRef{RepoFull: "dana/crawler"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	// structural: 50 +15 commits +15 spread = 80; combined 0.4*80 + 0.6*90 = 86
	if result.StructuralScore != 80 {
		t.Fatalf("structural = %.1f, want 80", result.StructuralScore)
	}
	if result.AuthenticityScore != 86 {
		t.Fatalf("combined = %.1f, want 86", result.AuthenticityScore)
	}
}

func TestAnalyzeForkPenaltyAndFlags(t *testing.T) {
	source := &sourceFake{kind: domain.SourceCodeHosting, facts: domain.ProjectFacts{
		Resolved:         true,
		Fork:             true,
		CommitCount:      50,
		CommitSpreadDays: 365,
	}}
	oracle := &oracleFake{originality: ports.OriginalityJudgment{Score: 95}}
	analyzer := NewAuthenticityAnalyzer(source, oracle, nil, 0.4, 0.6, testLogger())

	result, err := analyzer.Analyze(context.Background(), "run-1", domain.ProjectRef{RepoFull: "dana/forked"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !result.HasFlag(domain.FlagFork) {
		t.Fatalf("fork flag missing: %+v", result)
	}
	// structural: 50+15+15-15 = 65; combined 0.4*65+0.6*95 = 83; fork >70 docked 10 = 73
	if result.AuthenticityScore != 73 {
		t.Fatalf("fork penalty not applied: got %.1f, want 73", result.AuthenticityScore)
	}
}

func TestAnalyzeStructuralFlags(t *testing.T) {
	source := &sourceFake{kind: domain.SourceCodeHosting, facts: domain.ProjectFacts{
		Resolved:         true,
		CommitCount:      2,
		BoilerplateRatio: 0.8,
		TemplateMatch:    true,
	}}
	oracle := &oracleFake{originality: ports.OriginalityJudgment{Score: 10, Labels: []string{"tutorial_clone"}}}
	analyzer := NewAuthenticityAnalyzer(source, oracle, nil, 0.4, 0.6, testLogger())

	result, err := analyzer.Analyze(context.Background(), "run-1", domain.ProjectRef{RepoFull: "dana/starter"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	for _, flag := range []domain.RedFlag{domain.FlagShallowHistory, domain.FlagBoilerplateHeavy, domain.FlagTemplateMatch} {
		if !result.HasFlag(flag) {
			t.Fatalf("missing flag %s: %+v", flag, result.RedFlags)
		}
	}
}

func TestAnalyzeJudgmentOutageFallsBackToStructural(t *testing.T) {
	source := &sourceFake{kind: domain.SourceCodeHosting, facts: domain.ProjectFacts{
		Resolved:         true,
		CommitCount:      40,
		CommitSpreadDays: 200,
	}}
	oracle := &oracleFake{originalErr: errors.New("oracle down")}
	analyzer := NewAuthenticityAnalyzer(source, oracle, nil, 0.4, 0.6, testLogger())

	result, err := analyzer.Analyze(context.Background(), "run-1", domain.ProjectRef{RepoFull: "dana/crawler"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.AuthenticityScore != result.StructuralScore {
		t.Fatalf("fallback should reuse structural score: %+v", result)
	}
}

func TestAnalyzeTransientFactsErrorPropagates(t *testing.T) {
	source := &sourceFake{kind: domain.SourceCodeHosting, factsErr: errors.New("rate limited")}
	analyzer := NewAuthenticityAnalyzer(source, &oracleFake{}, nil, 0.4, 0.6, testLogger())

	if _, err := analyzer.Analyze(context.Background(), "run-1", domain.ProjectRef{RepoFull: "dana/crawler"}); err == nil {
		t.Fatalf("expected error for transient facts failure")
	}
}
