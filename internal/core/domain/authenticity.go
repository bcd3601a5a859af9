package domain

// RedFlag labels a structural warning signal on a project.
type RedFlag string

const (
	FlagUnresolvable     RedFlag = "unresolvable"
	FlagTemplateMatch    RedFlag = "template_match"
	FlagFork             RedFlag = "fork"
	FlagShallowHistory   RedFlag = "shallow_history"
	FlagBoilerplateHeavy RedFlag = "boilerplate_heavy"
)

// ProjectFacts are the deterministic structural observations for one
// repository, gathered before any judgment call.
type ProjectFacts struct {
	Resolved         bool    `json:"resolved"`
	Fork             bool    `json:"fork"`
	CommitCount      int     `json:"commit_count"`
	CommitSpreadDays int     `json:"commit_spread_days"`
	BoilerplateRatio float64 `json:"boilerplate_ratio"` // 0..1 of sampled chunks
	TemplateMatch    bool    `json:"template_match"`
	Stars            int     `json:"stars,omitempty"`
	PushedAt         string  `json:"pushed_at,omitempty"`
}

// RepoAuthenticity is the analyzer's verdict for one referenced
// project. A project that cannot be resolved still gets an entry with
// score 0; omitting it would silently inflate the aggregate.
type RepoAuthenticity struct {
	Project           string       `json:"project"`
	AuthenticityScore float64      `json:"authenticity_score"` // 0..100
	StructuralScore   float64      `json:"structural_score"`   // 0..100
	JudgmentScore     float64      `json:"judgment_score"`     // 0..100
	Description       string       `json:"description"`
	RedFlags          []RedFlag    `json:"red_flags"`
	Facts             ProjectFacts `json:"facts"`
}

// HasFlag reports whether the given red flag was recorded.
func (r RepoAuthenticity) HasFlag(f RedFlag) bool {
	for _, rf := range r.RedFlags {
		if rf == f {
			return true
		}
	}
	return false
}
