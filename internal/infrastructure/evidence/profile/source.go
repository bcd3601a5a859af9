package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/resilience"
)

// Source queries a professional-profile service for skill activity.
// The whole profile is fetched once per run; per-skill fetches answer
// from the cached document.
type Source struct {
	baseURL    string
	httpClient *http.Client
	exec       *resilience.Executor

	mu   sync.Mutex
	runs map[string]*runState
}

type runState struct {
	emptyReason string
	skills      map[string]profileSkill
	handle      string
}

type profileSkill struct {
	Name         string    `json:"name"`
	Endorsements int       `json:"endorsements"`
	LastActivity time.Time `json:"last_activity"`
	// Disputed marks skills the service itself flags as contested
	// (e.g. failed assessments).
	Disputed bool `json:"disputed"`
}

type profileDoc struct {
	Handle string         `json:"handle"`
	Skills []profileSkill `json:"skills"`
}

func New(baseURL string, exec *resilience.Executor) *Source {
	return &Source{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       exec,
		runs:       make(map[string]*runState),
	}
}

func (s *Source) Kind() domain.SourceKind { return domain.SourceProfile }

func (s *Source) Prepare(ctx context.Context, runID string, cand domain.CandidateLinks) error {
	state := &runState{handle: cand.ProfileHandle, skills: make(map[string]profileSkill)}
	defer func() {
		s.mu.Lock()
		s.runs[runID] = state
		s.mu.Unlock()
	}()

	handle := strings.TrimSpace(cand.ProfileHandle)
	if handle == "" {
		state.emptyReason = "no professional profile on cv"
		return nil
	}
	if s.baseURL == "" {
		state.emptyReason = "profile backend not configured"
		return nil
	}

	var doc profileDoc
	err := s.exec.Execute(ctx, "fetch profile", func(ctx context.Context) error {
		url := fmt.Sprintf("%s/profiles/%s", s.baseURL, handle)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create profile request: %w", err)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("profile request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			state.emptyReason = fmt.Sprintf("profile %q does not exist", handle)
			return nil
		}
		if resp.StatusCode >= 300 {
			return &statusError{status: resp.Status, code: resp.StatusCode}
		}
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return fmt.Errorf("decode profile response: %w", err)
		}
		return nil
	}, classifyProfileError)
	if err != nil {
		return fmt.Errorf("fetch profile %s: %w", handle, err)
	}

	for _, skill := range doc.Skills {
		state.skills[strings.ToLower(skill.Name)] = skill
	}
	if state.emptyReason == "" && len(state.skills) == 0 {
		state.emptyReason = fmt.Sprintf("profile %q lists no skills", handle)
	}
	return nil
}

func (s *Source) Fetch(_ context.Context, runID string, subject ports.EvidenceSubject) (domain.EvidenceFetch, error) {
	s.mu.Lock()
	state := s.runs[runID]
	s.mu.Unlock()
	if state == nil {
		return domain.EvidenceFetch{}, domain.WrapError(domain.ErrNoEvidence, "fetch evidence",
			fmt.Errorf("run %s was not prepared", runID))
	}
	if state.emptyReason != "" {
		return domain.EvidenceFetch{EmptyReason: state.emptyReason}, nil
	}
	if subject.Skill == nil {
		return domain.EvidenceFetch{EmptyReason: "profile source answers skill subjects only"}, nil
	}

	skill, ok := state.skills[strings.ToLower(subject.Skill.Name)]
	if !ok {
		return domain.EvidenceFetch{
			EmptyReason: fmt.Sprintf("profile does not mention %q", subject.Skill.Name),
		}, nil
	}
	return domain.EvidenceFetch{Records: []domain.EvidenceRecord{{
		ID:      fmt.Sprintf("profile:%s:%s", state.handle, strings.ToLower(skill.Name)),
		Source:  domain.SourceProfile,
		Subject: subject.Skill.Name,
		Payload: map[string]any{
			"endorsements":  skill.Endorsements,
			"last_activity": skill.LastActivity,
		},
		Contradicts: skill.Disputed,
		RetrievedAt: time.Now().UTC(),
		FetchOK:     true,
	}}}, nil
}

// ProjectFacts is out of this source's domain; projects resolve via
// code hosting only.
func (s *Source) ProjectFacts(context.Context, domain.ProjectRef) (domain.ProjectFacts, error) {
	return domain.ProjectFacts{Resolved: false}, nil
}

func (s *Source) Cleanup(_ context.Context, runID string) error {
	s.mu.Lock()
	delete(s.runs, runID)
	s.mu.Unlock()
	return nil
}
