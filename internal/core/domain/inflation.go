package domain

// OverclaimState is a tri-state verdict. A skill with no discoverable
// evidence records unknown rather than false, so absence of proof
// never clears a candidate.
type OverclaimState string

const (
	OverclaimYes     OverclaimState = "yes"
	OverclaimNo      OverclaimState = "no"
	OverclaimUnknown OverclaimState = "unknown"
)

// SkillInflationResult compares the claimed level on the CV with the
// level the evidence actually shows.
type SkillInflationResult struct {
	Skill         string           `json:"skill"`
	ClaimedLevel  ProficiencyLevel `json:"claimed_level"`
	ObservedLevel ProficiencyLevel `json:"observed_level"`
	Overclaim     OverclaimState   `json:"overclaim"`
	Severity      int              `json:"severity"` // 0..5 ordinal distance
	Rationale     string           `json:"rationale,omitempty"`

	// ObservedKnown is false when the judgment call failed after its
	// retry; such skills are excluded from severity-based sorting but
	// still reported.
	ObservedKnown bool `json:"observed_known"`
}

// ObservedLevelForConfidence maps evidence confidence into the fixed
// bands: below 0.4 beginner, up to 0.75 intermediate, above expert.
func ObservedLevelForConfidence(confidence float64) ProficiencyLevel {
	switch {
	case confidence < 0.4:
		return LevelBeginner
	case confidence <= 0.75:
		return LevelIntermediate
	default:
		return LevelExpert
	}
}
