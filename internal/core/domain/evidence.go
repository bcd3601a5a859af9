package domain

import (
	"fmt"
	"time"
)

// SourceKind identifies the class of evidence backend.
type SourceKind string

const (
	SourceCodeHosting SourceKind = "code_hosting"
	SourceProfile     SourceKind = "profile"
)

// EvidenceRecord is one externally sourced fact supporting or
// contradicting a skill or project claim. Records are append-only per
// subject and never mutated after creation.
type EvidenceRecord struct {
	ID          string         `json:"id"`
	Source      SourceKind     `json:"source"`
	Subject     string         `json:"subject"` // skill name or repo full name
	Repo        string         `json:"repo,omitempty"`
	File        string         `json:"file,omitempty"`
	Lines       string         `json:"lines,omitempty"` // "L10-L42"
	Excerpt     string         `json:"excerpt,omitempty"`
	Reasoning   string         `json:"reasoning,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Contradicts bool           `json:"contradicts,omitempty"`
	RetrievedAt time.Time      `json:"retrieved_at"`
	FetchOK     bool           `json:"fetch_ok"`
}

// EvidenceFetch is the uniform answer of an evidence source. Sources
// report "no data" through EmptyReason instead of an error so callers
// can tell absence from failure.
type EvidenceFetch struct {
	Records     []EvidenceRecord `json:"records"`
	EmptyReason string           `json:"empty_reason,omitempty"`
}

// SupportStatus enumerates the outcome of evidence mapping per skill.
type SupportStatus string

const (
	StatusSupported        SupportStatus = "supported"
	StatusUnsupported      SupportStatus = "unsupported"
	StatusInsufficientData SupportStatus = "insufficient_data"
)

// SkillEvidenceResult is the mapper's verdict for one claimed skill.
// Written exactly once per skill per run.
type SkillEvidenceResult struct {
	Skill      string           `json:"skill"`
	Status     SupportStatus    `json:"status"`
	Confidence float64          `json:"confidence"` // 0..1
	Fake       bool             `json:"fake"`
	Evidence   []EvidenceRecord `json:"evidence"`
	Notes      string           `json:"notes,omitempty"`
}

// CodeChunk is a line-bounded slice of one source file, used both as
// oracle context and as the unit of the per-run retrieval index.
type CodeChunk struct {
	ID        string `json:"id"`
	Repo      string `json:"repo"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Text      string `json:"text"`
}

// LineRange renders the chunk span in the citation format evidence
// verification matches against.
func (c CodeChunk) LineRange() string {
	return fmt.Sprintf("L%d-L%d", c.StartLine, c.EndLine)
}
