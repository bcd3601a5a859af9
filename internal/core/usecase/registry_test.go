package usecase

import (
	"errors"
	"testing"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

func TestRegistryAcquireThenAttach(t *testing.T) {
	registry := newRunRegistry()

	first, attached := registry.Acquire("cv-1", "hash-a", "run-1")
	if attached {
		t.Fatalf("first acquire must own the slot")
	}
	second, attached := registry.Acquire("cv-1", "hash-a", "run-2")
	if !attached || second != first {
		t.Fatalf("second acquire must attach to the in-flight run")
	}
	if _, ok := registry.InFlight("cv-1"); !ok {
		t.Fatalf("run should be reported in flight")
	}
}

func TestRegistryReleasePublishesOutcome(t *testing.T) {
	registry := newRunRegistry()
	run, _ := registry.Acquire("cv-1", "hash-a", "run-1")

	want := &domain.EvaluationResult{RunID: "run-1", CVID: "cv-1"}
	registry.Release("cv-1", want, errors.New("partial"))

	select {
	case <-run.Done():
	default:
		t.Fatalf("release must close the done channel")
	}
	got, err := run.Outcome()
	if got != want || err == nil {
		t.Fatalf("outcome = (%v, %v), want the released pair", got, err)
	}
	if _, ok := registry.InFlight("cv-1"); ok {
		t.Fatalf("released run must free the slot")
	}
	if _, attached := registry.Acquire("cv-1", "hash-b", "run-3"); attached {
		t.Fatalf("a fresh acquire after release must own the slot")
	}
}

func TestRegistryDifferentHashStillAttaches(t *testing.T) {
	registry := newRunRegistry()
	first, _ := registry.Acquire("cv-1", "hash-a", "run-1")

	// The caller notices the hash mismatch after waiting and resubmits;
	// the registry itself never preempts a running evaluation.
	second, attached := registry.Acquire("cv-1", "hash-b", "run-2")
	if !attached || second != first {
		t.Fatalf("mismatched hash must still attach, got attached=%v", attached)
	}
	if second.ContentHash != "hash-a" {
		t.Fatalf("attached run keeps the original hash, got %q", second.ContentHash)
	}
}
