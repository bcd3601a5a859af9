package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadScoringDefaults(t *testing.T) {
	t.Setenv("SCORING_POLICY_PATH", "")
	t.Setenv("EVIDENCE_TOP_K", "")
	t.Setenv("EXTERNAL_PARALLEL", "")

	cfg := Load()
	if cfg.Scoring.SupportThreshold != 0.5 {
		t.Fatalf("expected default support threshold 0.5, got %v", cfg.Scoring.SupportThreshold)
	}
	if cfg.Scoring.StructuralWeight != 0.4 || cfg.Scoring.JudgmentWeight != 0.6 {
		t.Fatalf("expected 40/60 structural/judgment split, got %v/%v",
			cfg.Scoring.StructuralWeight, cfg.Scoring.JudgmentWeight)
	}
	if cfg.ExternalParallel != 8 {
		t.Fatalf("expected default external parallelism 8, got %d", cfg.ExternalParallel)
	}
	if cfg.EvidenceTopK != 15 {
		t.Fatalf("expected default evidence top k 15, got %d", cfg.EvidenceTopK)
	}
}

func TestLoadAPITrafficControls(t *testing.T) {
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("API_RATE_LIMIT_BURST", "10")
	t.Setenv("API_MAX_IN_FLIGHT", "")

	cfg := Load()
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5 rps, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.APIRateLimitBurst != 10 {
		t.Fatalf("expected burst 10, got %d", cfg.APIRateLimitBurst)
	}
	if cfg.APIMaxInFlight != 64 {
		t.Fatalf("expected default max in flight 64, got %d", cfg.APIMaxInFlight)
	}
}

func TestLoadScoringPolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scoring.yaml")
	policy := []byte("support_threshold: 0.6\nstructural_weight: 0.3\njudgment_weight: 0.7\n")
	if err := os.WriteFile(path, policy, 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}
	t.Setenv("SCORING_POLICY_PATH", path)

	cfg := Load()
	if cfg.Scoring.SupportThreshold != 0.6 {
		t.Fatalf("expected threshold override 0.6, got %v", cfg.Scoring.SupportThreshold)
	}
	if cfg.Scoring.StructuralWeight != 0.3 || cfg.Scoring.JudgmentWeight != 0.7 {
		t.Fatalf("expected 30/70 split, got %v/%v", cfg.Scoring.StructuralWeight, cfg.Scoring.JudgmentWeight)
	}
}

func TestLoadScoringPolicyMissingFileKeepsDefaults(t *testing.T) {
	t.Setenv("SCORING_POLICY_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg := Load()
	if cfg.Scoring != DefaultScoringPolicy() {
		t.Fatalf("expected default policy on unreadable file, got %+v", cfg.Scoring)
	}
}

func TestLoadScoringPolicyRejectsBadWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scoring.yaml")
	policy := []byte("support_threshold: 0.5\nstructural_weight: 0.9\njudgment_weight: 0.9\n")
	if err := os.WriteFile(path, policy, 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}
	t.Setenv("SCORING_POLICY_PATH", path)

	cfg := Load()
	if cfg.Scoring.StructuralWeight != 0.4 || cfg.Scoring.JudgmentWeight != 0.6 {
		t.Fatalf("expected fallback to default weights, got %v/%v",
			cfg.Scoring.StructuralWeight, cfg.Scoring.JudgmentWeight)
	}
}
