package domain

// InterviewQuestionSet is the generated question plan for one skill.
// The selection policy (how many questions per category, which focus
// areas) lives in the pipeline; only the question text itself comes
// from the judgment oracle.
type InterviewQuestionSet struct {
	Skill       string   `json:"skill"`
	Theoretical []string `json:"theoretical"`
	Practical   []string `json:"practical"`
	Debugging   []string `json:"debugging"`
	FocusAreas  []string `json:"focus_areas"`
}

// QuestionBudget is the per-category question count policy for a skill.
type QuestionBudget struct {
	Theoretical int
	Practical   int
	Debugging   int
}

// Total returns the summed question count across categories.
func (b QuestionBudget) Total() int {
	return b.Theoretical + b.Practical + b.Debugging
}
