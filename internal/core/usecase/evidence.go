package usecase

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
)

// EvidenceMapper turns one skill claim into a SkillEvidenceResult by
// querying every configured evidence source and cross-checking the
// collected records with the judgment oracle.
type EvidenceMapper struct {
	sources          []ports.EvidenceSource
	oracle           ports.JudgmentOracle
	supportThreshold float64
	logger           *slog.Logger
}

func NewEvidenceMapper(sources []ports.EvidenceSource, oracle ports.JudgmentOracle, supportThreshold float64, logger *slog.Logger) *EvidenceMapper {
	if supportThreshold <= 0 || supportThreshold >= 1 {
		supportThreshold = 0.5
	}
	return &EvidenceMapper{
		sources:          sources,
		oracle:           oracle,
		supportThreshold: supportThreshold,
		logger:           logger,
	}
}

// MapSkill is idempotent and side-effect free from the pipeline's
// perspective; sources may cache externally.
func (m *EvidenceMapper) MapSkill(ctx context.Context, runID string, claim domain.SkillClaim) domain.SkillEvidenceResult {
	records, emptyReasons := m.collect(ctx, runID, claim)

	if len(records) == 0 {
		return domain.SkillEvidenceResult{
			Skill:      claim.Name,
			Status:     domain.StatusInsufficientData,
			Confidence: 0,
			Notes:      strings.Join(emptyReasons, "; "),
		}
	}

	confidence := heuristicConfidence(records)
	contradicting := 0
	for _, rec := range records {
		if rec.Contradicts {
			contradicting++
		}
	}

	// Contradiction dominating the record set is a verdict on its own;
	// the oracle is not consulted to soften it.
	if contradicting*2 > len(records) {
		return domain.SkillEvidenceResult{
			Skill:      claim.Name,
			Status:     domain.StatusUnsupported,
			Confidence: confidence,
			Fake:       true,
			Evidence:   records,
			Notes:      "contradicting evidence dominates",
		}
	}

	result := m.judge(ctx, claim, records, confidence)
	result.Skill = claim.Name
	return result
}

func (m *EvidenceMapper) collect(ctx context.Context, runID string, claim domain.SkillClaim) ([]domain.EvidenceRecord, []string) {
	type fetchOut struct {
		fetch domain.EvidenceFetch
		err   error
		kind  domain.SourceKind
	}

	subject := ports.EvidenceSubject{Skill: &claim}
	outs := make([]fetchOut, len(m.sources))

	var wg sync.WaitGroup
	for i, source := range m.sources {
		wg.Add(1)
		go func(i int, source ports.EvidenceSource) {
			defer wg.Done()
			fetch, err := source.Fetch(ctx, runID, subject)
			outs[i] = fetchOut{fetch: fetch, err: err, kind: source.Kind()}
		}(i, source)
	}
	wg.Wait()

	var (
		records []domain.EvidenceRecord
		reasons []string
	)
	for _, out := range outs {
		if out.err != nil {
			if domain.IsKind(out.err, domain.ErrNoEvidence) {
				reasons = append(reasons, fmt.Sprintf("%s: no usable evidence", out.kind))
				continue
			}
			// An exhausted source contributes nothing but must not
			// fail the skill when another source answered.
			m.logger.Warn("evidence source failed",
				slog.String("skill", claim.Name),
				slog.String("source", string(out.kind)),
				slog.String("error", out.err.Error()))
			reasons = append(reasons, fmt.Sprintf("%s: fetch failed", out.kind))
			continue
		}
		if out.fetch.EmptyReason != "" {
			reasons = append(reasons, out.fetch.EmptyReason)
		}
		records = append(records, out.fetch.Records...)
	}
	return records, reasons
}

// judge runs the oracle support classification over code evidence and
// applies the citation verification rule: every excerpt the oracle
// cites must be a literal substring of the chunk it cites, and a
// "supported" verdict with zero surviving citations is downgraded to
// unsupported with fake=true.
func (m *EvidenceMapper) judge(ctx context.Context, claim domain.SkillClaim, records []domain.EvidenceRecord, heuristic float64) domain.SkillEvidenceResult {
	chunks := chunksFromRecords(records)
	if len(chunks) == 0 {
		// Profile-only evidence: no code to classify, the heuristic
		// stands alone.
		return statusFor(claim, records, heuristic, m.supportThreshold, "")
	}

	judgment, err := m.oracle.ClassifySkillSupport(ctx, claim.Name, chunks)
	if err != nil {
		m.logger.Warn("support classification failed",
			slog.String("skill", claim.Name),
			slog.String("error", err.Error()))
		return statusFor(claim, records, heuristic, m.supportThreshold, "oracle unavailable, heuristic confidence only")
	}

	verified := verifyCitations(judgment.Evidence)
	if judgment.Supported && len(verified) == 0 {
		return domain.SkillEvidenceResult{
			Status:     domain.StatusUnsupported,
			Confidence: heuristic,
			Fake:       true,
			Evidence:   records,
			Notes:      "oracle support claim failed citation verification",
		}
	}

	blended := (heuristic + judgment.Confidence) / 2
	if !judgment.Supported && blended >= m.supportThreshold {
		// The oracle examined the code and found nothing; cap below
		// the support threshold so volume alone cannot carry a claim.
		blended = m.supportThreshold - 0.01
	}
	out := statusFor(claim, append(records, verified...), blended, m.supportThreshold, "")
	return out
}

func statusFor(claim domain.SkillClaim, records []domain.EvidenceRecord, confidence float64, threshold float64, notes string) domain.SkillEvidenceResult {
	nonContradicting := 0
	for _, rec := range records {
		if !rec.Contradicts {
			nonContradicting++
		}
	}

	status := domain.StatusUnsupported
	if confidence >= threshold && nonContradicting > 0 {
		status = domain.StatusSupported
	}
	return domain.SkillEvidenceResult{
		Skill:      claim.Name,
		Status:     status,
		Confidence: confidence,
		Evidence:   records,
		Notes:      notes,
	}
}

// heuristicConfidence blends record count, recency, and cross-source
// corroboration into [0,1]. A single source kind is capped at 0.75 so
// code volume alone never reaches the top band.
func heuristicConfidence(records []domain.EvidenceRecord) float64 {
	if len(records) == 0 {
		return 0
	}

	count := float64(len(records))
	countScore := count / (count + 4)

	now := time.Now().UTC()
	recencySum := 0.0
	kinds := make(map[domain.SourceKind]bool)
	for _, rec := range records {
		kinds[rec.Source] = true
		age := now.Sub(rec.RetrievedAt)
		switch {
		case age < 30*24*time.Hour:
			recencySum += 1.0
		case age < 365*24*time.Hour:
			recencySum += 0.7
		default:
			recencySum += 0.4
		}
	}
	recencyScore := recencySum / count

	confidence := 0.6*countScore + 0.4*recencyScore
	if len(kinds) >= 2 {
		confidence += 0.15
	} else if confidence > 0.75 {
		confidence = 0.75
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// verifyCitations keeps only citations whose excerpt is a verbatim
// substring of the cited chunk text.
func verifyCitations(citations []domain.EvidenceRecord) []domain.EvidenceRecord {
	var verified []domain.EvidenceRecord
	for _, cite := range citations {
		excerpt := strings.TrimSpace(cite.Excerpt)
		if excerpt == "" || cite.File == "" || cite.Lines == "" {
			continue
		}
		text, _ := cite.Payload["chunk_text"].(string)
		if text == "" || !strings.Contains(text, excerpt) {
			continue
		}
		if len(cite.Excerpt) > 220 {
			cite.Excerpt = cite.Excerpt[:220]
		}
		cite.RetrievedAt = time.Now().UTC()
		cite.FetchOK = true
		verified = append(verified, cite)
	}
	return verified
}

func chunksFromRecords(records []domain.EvidenceRecord) []domain.CodeChunk {
	var chunks []domain.CodeChunk
	for _, rec := range records {
		if rec.Source != domain.SourceCodeHosting {
			continue
		}
		text, _ := rec.Payload["chunk_text"].(string)
		if text == "" {
			continue
		}
		chunks = append(chunks, domain.CodeChunk{
			ID:        rec.ID,
			Repo:      rec.Repo,
			File:      rec.File,
			StartLine: payloadInt(rec.Payload, "start_line"),
			EndLine:   payloadInt(rec.Payload, "end_line"),
			Text:      text,
		})
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].ID < chunks[j].ID })
	return chunks
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
