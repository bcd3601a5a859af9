package usecase

import (
	"sync"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

// activeRun is one in-flight evaluation. Attached submitters wait on
// done and read result/err afterwards.
type activeRun struct {
	RunID       string
	ContentHash string

	done   chan struct{}
	result *domain.EvaluationResult
	err    error
}

// Wait blocks until the run finishes or ctx ends.
func (r *activeRun) Done() <-chan struct{} { return r.done }

func (r *activeRun) Outcome() (*domain.EvaluationResult, error) {
	return r.result, r.err
}

// runRegistry enforces at most one in-flight run per CV identifier.
// A duplicate submission with the same content hash attaches to the
// existing run instead of starting a second one.
type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*activeRun
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*activeRun)}
}

// Acquire registers a run for the CV, or returns the existing one with
// attached=true when a same-hash run is already in flight. A run with
// a different hash also attaches: the caller waits it out and
// resubmits, so the older result is never clobbered mid-flight.
func (g *runRegistry) Acquire(cvID, contentHash, runID string) (run *activeRun, attached bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.runs[cvID]; ok {
		return existing, true
	}
	run = &activeRun{
		RunID:       runID,
		ContentHash: contentHash,
		done:        make(chan struct{}),
	}
	g.runs[cvID] = run
	return run, false
}

// Release publishes the outcome and frees the slot. Safe to call
// exactly once per acquired run; deferred on every exit path.
func (g *runRegistry) Release(cvID string, result *domain.EvaluationResult, err error) {
	g.mu.Lock()
	run, ok := g.runs[cvID]
	delete(g.runs, cvID)
	g.mu.Unlock()

	if !ok {
		return
	}
	run.result = result
	run.err = err
	close(run.done)
}

// InFlight reports the registered run for a CV, if any.
func (g *runRegistry) InFlight(cvID string) (*activeRun, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	run, ok := g.runs[cvID]
	return run, ok
}
