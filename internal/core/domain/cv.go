package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// ProficiencyLevel is the ordered claimed/observed skill scale.
// LevelUnknown sorts below every concrete level and never produces an
// overclaim on its own.
type ProficiencyLevel string

const (
	LevelUnknown      ProficiencyLevel = "unknown"
	LevelBeginner     ProficiencyLevel = "beginner"
	LevelIntermediate ProficiencyLevel = "intermediate"
	LevelExpert       ProficiencyLevel = "expert"
)

var levelRank = map[ProficiencyLevel]int{
	LevelUnknown:      0,
	LevelBeginner:     1,
	LevelIntermediate: 2,
	LevelExpert:       3,
}

// Rank returns the ordinal position of the level; unknown ranks 0.
func (l ProficiencyLevel) Rank() int {
	return levelRank[normalizeLevel(l)]
}

func (l ProficiencyLevel) Known() bool {
	return normalizeLevel(l) != LevelUnknown
}

func normalizeLevel(l ProficiencyLevel) ProficiencyLevel {
	switch ProficiencyLevel(strings.ToLower(strings.TrimSpace(string(l)))) {
	case LevelBeginner:
		return LevelBeginner
	case LevelIntermediate:
		return LevelIntermediate
	case LevelExpert:
		return LevelExpert
	default:
		return LevelUnknown
	}
}

// ParseLevel maps free CV wording onto the ordered scale. "advanced"
// and "senior" count as expert, "familiar" and "basic" as beginner,
// mirroring how claim wording is classified upstream.
func ParseLevel(raw string) ProficiencyLevel {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return LevelUnknown
	case strings.Contains(s, "expert"), strings.Contains(s, "advanced"), strings.Contains(s, "senior"):
		return LevelExpert
	case strings.Contains(s, "intermediate"), strings.Contains(s, "proficient"):
		return LevelIntermediate
	case strings.Contains(s, "beginner"), strings.Contains(s, "familiar"), strings.Contains(s, "basic"), strings.Contains(s, "junior"):
		return LevelBeginner
	default:
		return LevelUnknown
	}
}

// SkillClaim is one skill as stated on the CV.
type SkillClaim struct {
	Name         string           `json:"name"`
	ClaimText    string           `json:"claim_text,omitempty"`
	ClaimedLevel ProficiencyLevel `json:"claimed_level"`
	ClaimedYears int              `json:"claimed_years,omitempty"`
}

// ProjectRef is one project or repository the CV points at.
type ProjectRef struct {
	Name     string `json:"name"`
	RepoFull string `json:"repo_full,omitempty"` // owner/name on the code host
	URL      string `json:"url,omitempty"`
}

// TimelineEntry is one work or education period from the CV.
type TimelineEntry struct {
	Title    string     `json:"title"`
	Org      string     `json:"org,omitempty"`
	Kind     string     `json:"kind,omitempty"` // work | education
	Start    time.Time  `json:"start"`
	End      *time.Time `json:"end,omitempty"` // nil = ongoing
	FullTime bool       `json:"full_time"`
}

// CandidateLinks holds the external handles discovered on the CV.
type CandidateLinks struct {
	CodeHostUser  string `json:"code_host_user,omitempty"`
	ProfileHandle string `json:"profile_handle,omitempty"`
}

// CVDocument is the parsed, validated résumé the pipeline evaluates.
// The pipeline only reads it; ownership stays with the intake layer.
type CVDocument struct {
	ID            string          `json:"id"`
	CandidateName string          `json:"candidate_name"`
	Links         CandidateLinks  `json:"links"`
	ClaimedSkills []SkillClaim    `json:"claimed_skills"`
	Projects      []ProjectRef    `json:"projects"`
	Timeline      []TimelineEntry `json:"timeline"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ContentHash fingerprints the evaluated content of the CV. It is the
// second half of the run idempotency key: the same CV ID with a new
// hash starts a fresh run instead of attaching to an old one.
func (cv CVDocument) ContentHash() string {
	type hashed struct {
		Skills   []SkillClaim    `json:"skills"`
		Projects []ProjectRef    `json:"projects"`
		Timeline []TimelineEntry `json:"timeline"`
		Links    CandidateLinks  `json:"links"`
	}
	payload, err := json.Marshal(hashed{
		Skills:   cv.ClaimedSkills,
		Projects: cv.Projects,
		Timeline: cv.Timeline,
		Links:    cv.Links,
	})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// SkillNames returns claimed skill names in CV order with duplicates
// removed; the first occurrence wins.
func (cv CVDocument) SkillNames() []string {
	seen := make(map[string]struct{}, len(cv.ClaimedSkills))
	out := make([]string, 0, len(cv.ClaimedSkills))
	for _, s := range cv.ClaimedSkills {
		if _, ok := seen[s.Name]; ok {
			continue
		}
		seen[s.Name] = struct{}{}
		out = append(out, s.Name)
	}
	return out
}

// SortedTimeline returns timeline entries ordered by start date.
func (cv CVDocument) SortedTimeline() []TimelineEntry {
	out := make([]TimelineEntry, len(cv.Timeline))
	copy(out, cv.Timeline)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
