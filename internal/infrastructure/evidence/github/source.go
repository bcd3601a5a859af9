package github

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/chunking"
)

// Config bounds how much of a candidate's account gets ingested.
type Config struct {
	DeepRepos   int
	MaxFiles    int
	MaxZipBytes int64
	MaxChunks   int
	TopK        int
}

// Source ingests a candidate's public repositories once per run and
// answers per-skill evidence queries against the indexed code.
type Source struct {
	client   *Client
	splitter *chunking.Splitter
	embedder ports.Embedder
	index    ports.ChunkIndex
	cfg      Config
	logger   *slog.Logger

	mu   sync.Mutex
	runs map[string]*runState
	// boilerplate ratios survive run cleanup so ProjectFacts stays
	// cheap for repos already ingested.
	boilerByRepo map[string]float64
}

type runState struct {
	user        string
	emptyReason string
	indexed     int
	repoByName  map[string]repoMeta // lowercased full_name and name
}

func NewSource(client *Client, splitter *chunking.Splitter, embedder ports.Embedder, index ports.ChunkIndex, cfg Config, logger *slog.Logger) *Source {
	return &Source{
		client:       client,
		splitter:     splitter,
		embedder:     embedder,
		index:        index,
		cfg:          cfg,
		logger:       logger,
		runs:         make(map[string]*runState),
		boilerByRepo: make(map[string]float64),
	}
}

func (s *Source) Kind() domain.SourceKind { return domain.SourceCodeHosting }

func (s *Source) Prepare(ctx context.Context, runID string, cand domain.CandidateLinks) error {
	state := &runState{user: cand.CodeHostUser, repoByName: make(map[string]repoMeta)}
	defer func() {
		s.mu.Lock()
		s.runs[runID] = state
		s.mu.Unlock()
	}()

	user := strings.TrimSpace(cand.CodeHostUser)
	if user == "" {
		state.emptyReason = "no code hosting account on cv"
		return nil
	}

	repos, err := s.client.ListRepos(ctx, user, 200)
	if err != nil {
		if domain.IsKind(err, domain.ErrUnresolvable) {
			state.emptyReason = fmt.Sprintf("code hosting account %q does not exist", user)
			return nil
		}
		return fmt.Errorf("list repos for %s: %w", user, err)
	}
	if len(repos) == 0 {
		state.emptyReason = fmt.Sprintf("code hosting account %q has no public repositories", user)
		return nil
	}
	for _, repo := range repos {
		state.repoByName[strings.ToLower(repo.FullName)] = repo
		state.repoByName[strings.ToLower(repo.Name)] = repo
	}

	deep := chooseDeepRepos(repos, s.cfg.DeepRepos)
	budget := s.cfg.MaxChunks
	for _, repo := range deep {
		if budget <= 0 {
			break
		}
		chunks, ingestErr := s.ingestRepo(ctx, runID, repo, budget)
		if ingestErr != nil {
			if ctx.Err() != nil {
				return ingestErr
			}
			s.logger.Warn("repo ingest skipped",
				slog.String("repo", repo.FullName),
				slog.String("error", ingestErr.Error()))
			continue
		}
		budget -= chunks
		state.indexed += chunks
	}

	if state.indexed == 0 {
		state.emptyReason = fmt.Sprintf("no indexable code found for %q", user)
	}
	return nil
}

func (s *Source) ingestRepo(ctx context.Context, runID string, repo repoMeta, budget int) (int, error) {
	zipData, err := s.client.DownloadZipball(ctx, repo.FullName, repo.DefaultBranch, s.cfg.MaxZipBytes)
	if err != nil {
		return 0, err
	}
	chunks, err := chunksFromZip(zipData, repo.FullName, s.splitter, zipLimits{
		maxFiles:    s.cfg.MaxFiles,
		maxBytes:    s.cfg.MaxZipBytes,
		maxChunks:   s.cfg.MaxChunks,
		chunkBudget: budget,
	})
	if err != nil {
		return 0, fmt.Errorf("unpack %s: %w", repo.FullName, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	var boilerSum float64
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
		boilerSum += boilerplateScore(chunk.Text)
	}
	s.mu.Lock()
	s.boilerByRepo[strings.ToLower(repo.FullName)] = boilerSum / float64(len(chunks))
	s.mu.Unlock()

	const batch = 64
	for i := 0; i < len(chunks); i += batch {
		end := i + batch
		if end > len(chunks) {
			end = len(chunks)
		}
		vectors, err := s.embedder.Embed(ctx, texts[i:end])
		if err != nil {
			return 0, fmt.Errorf("embed chunks for %s: %w", repo.FullName, err)
		}
		if err := s.index.IndexChunks(ctx, runID, chunks[i:end], vectors); err != nil {
			return 0, fmt.Errorf("index chunks for %s: %w", repo.FullName, err)
		}
	}
	return len(chunks), nil
}

func (s *Source) Fetch(ctx context.Context, runID string, subject ports.EvidenceSubject) (domain.EvidenceFetch, error) {
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

	switch {
	case subject.Skill != nil:
		return s.fetchSkill(ctx, runID, *subject.Skill)
	case subject.Project != nil:
		return s.fetchProject(state, *subject.Project)
	default:
		return domain.EvidenceFetch{EmptyReason: "no subject"}, nil
	}
}

func (s *Source) fetchSkill(ctx context.Context, runID string, claim domain.SkillClaim) (domain.EvidenceFetch, error) {
	query := claim.Name
	if claim.ClaimText != "" {
		query += ": " + claim.ClaimText
	}
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return domain.EvidenceFetch{}, fmt.Errorf("embed skill query: %w", err)
	}
	chunks, err := s.index.Search(ctx, runID, vector, s.cfg.TopK)
	if err != nil {
		return domain.EvidenceFetch{}, fmt.Errorf("search chunks: %w", err)
	}
	if len(chunks) == 0 {
		return domain.EvidenceFetch{EmptyReason: fmt.Sprintf("no code matching %q", claim.Name)}, nil
	}

	now := time.Now().UTC()
	records := make([]domain.EvidenceRecord, 0, len(chunks))
	for _, chunk := range chunks {
		records = append(records, domain.EvidenceRecord{
			ID:      chunk.ID,
			Source:  domain.SourceCodeHosting,
			Subject: claim.Name,
			Repo:    chunk.Repo,
			File:    chunk.File,
			Lines:   chunk.LineRange(),
			Payload: map[string]any{
				"chunk_text": chunk.Text,
				"start_line": chunk.StartLine,
				"end_line":   chunk.EndLine,
			},
			RetrievedAt: now,
			FetchOK:     true,
		})
	}
	return domain.EvidenceFetch{Records: records}, nil
}

func (s *Source) fetchProject(state *runState, ref domain.ProjectRef) (domain.EvidenceFetch, error) {
	repo, ok := lookupRepo(state, ref)
	if !ok {
		return domain.EvidenceFetch{
			EmptyReason: fmt.Sprintf("project %q not found among candidate repositories", ref.Identifier()),
		}, nil
	}
	return domain.EvidenceFetch{Records: []domain.EvidenceRecord{{
		ID:      "repo:" + repo.FullName,
		Source:  domain.SourceCodeHosting,
		Subject: ref.Identifier(),
		Repo:    repo.FullName,
		Payload: map[string]any{
			"fork":        repo.Fork,
			"stars":       repo.Stars,
			"size_kb":     repo.SizeKB,
			"language":    repo.Language,
			"description": repo.Description,
			"pushed_at":   repo.PushedAt,
		},
		RetrievedAt: time.Now().UTC(),
		FetchOK:     true,
	}}}, nil
}

// ProjectFacts resolves one repository regardless of whether the run
// ingested it. Unresolvable references report Resolved=false instead
// of an error.
func (s *Source) ProjectFacts(ctx context.Context, ref domain.ProjectRef) (domain.ProjectFacts, error) {
	full := strings.TrimSpace(ref.RepoFull)
	if full == "" {
		return domain.ProjectFacts{Resolved: false}, nil
	}

	meta, err := s.client.GetRepo(ctx, full)
	if err != nil {
		if domain.IsKind(err, domain.ErrUnresolvable) {
			return domain.ProjectFacts{Resolved: false}, nil
		}
		return domain.ProjectFacts{}, fmt.Errorf("resolve repo %s: %w", full, err)
	}

	facts := domain.ProjectFacts{
		Resolved:      true,
		Fork:          meta.Fork,
		Stars:         meta.Stars,
		PushedAt:      meta.PushedAt.Format(time.RFC3339),
		TemplateMatch: meta.TemplateRepo != nil || looksLikeTutorial(meta),
	}

	s.mu.Lock()
	facts.BoilerplateRatio = s.boilerByRepo[strings.ToLower(meta.FullName)]
	s.mu.Unlock()

	commits, err := s.client.ListCommits(ctx, full)
	if err != nil {
		s.logger.Warn("commit history unavailable",
			slog.String("repo", full),
			slog.String("error", err.Error()))
		return facts, nil
	}
	facts.CommitCount = len(commits)
	if len(commits) > 1 {
		newest := commits[0].Commit.Author.Date
		oldest := commits[len(commits)-1].Commit.Author.Date
		facts.CommitSpreadDays = int(newest.Sub(oldest).Hours() / 24)
	}
	return facts, nil
}

func (s *Source) Cleanup(ctx context.Context, runID string) error {
	s.mu.Lock()
	state := s.runs[runID]
	delete(s.runs, runID)
	s.mu.Unlock()

	if state == nil || state.indexed == 0 {
		return nil
	}
	return s.index.DropRun(ctx, runID)
}

func lookupRepo(state *runState, ref domain.ProjectRef) (repoMeta, bool) {
	if full := strings.ToLower(strings.TrimSpace(ref.RepoFull)); full != "" {
		if repo, ok := state.repoByName[full]; ok {
			return repo, true
		}
	}
	if name := strings.ToLower(strings.TrimSpace(ref.Name)); name != "" {
		if repo, ok := state.repoByName[name]; ok {
			return repo, true
		}
	}
	return repoMeta{}, false
}

// chooseDeepRepos ranks for substance: non-forks first, then size and
// stars, capped.
func chooseDeepRepos(repos []repoMeta, k int) []repoMeta {
	scored := make([]repoMeta, len(repos))
	copy(scored, repos)
	score := func(r repoMeta) float64 {
		s := 0.0
		if !r.Fork {
			s += 30.0
		}
		size := float64(r.SizeKB) / 200.0
		if size > 60 {
			size = 60
		}
		s += size
		stars := float64(r.Stars) / 5.0
		if stars > 10 {
			stars = 10
		}
		s += stars
		return s
	}
	sort.SliceStable(scored, func(i, j int) bool { return score(scored[i]) > score(scored[j]) })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

var tutorialWords = []string{"tutorial", "course", "bootcamp", "practice", "lab", "assignment", "homework"}

func looksLikeTutorial(meta repoMeta) bool {
	name := strings.ToLower(meta.Name)
	desc := strings.ToLower(meta.Description)
	for _, word := range tutorialWords {
		if strings.Contains(name, word) || strings.Contains(desc, word) {
			return true
		}
	}
	return false
}
