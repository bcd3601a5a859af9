package gemini

import (
	"fmt"
	"strings"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
)

const maxPromptSnippet = 4000

func buildSupportPrompt(skill string, snippets []domain.CodeChunk) string {
	var b strings.Builder
	for _, chunk := range snippets {
		b.WriteString(fmt.Sprintf("[chunk_id=%s] repo=%s file=%s %s\n%s\n\n",
			chunk.ID, chunk.Repo, chunk.File, chunk.LineRange(), truncate(chunk.Text, maxPromptSnippet)))
	}

	return fmt.Sprintf(`You verify whether code written by a candidate demonstrates real use of a skill.
Skill under review: %q.

Return strict JSON object with keys:
supported (boolean), confidence (number from 0 to 1),
citations (array of objects with keys chunk_id, excerpt, reasoning).
Every excerpt must be copied verbatim from the chunk it cites.
Cite only chunks that genuinely demonstrate the skill. No markdown, no extra keys.

Code chunks:
%s`, skill, b.String())
}

func buildProficiencyPrompt(skill string, evidence []domain.EvidenceRecord) string {
	var b strings.Builder
	for idx, rec := range evidence {
		b.WriteString(fmt.Sprintf("[%d] repo=%s file=%s %s\n%s\nreasoning: %s\n\n",
			idx+1, rec.Repo, rec.File, rec.Lines, truncate(rec.Excerpt, maxPromptSnippet), rec.Reasoning))
	}

	return fmt.Sprintf(`You grade how sophisticated a candidate's use of %q looks from the evidence below.
Grade "beginner" for trivial or tutorial-style usage, "intermediate" for
competent everyday usage, "expert" for advanced patterns, non-obvious
tradeoffs, or deep internals. Use "unknown" only when the evidence says
nothing about sophistication.

Return strict JSON object with keys: level (string), rationale (string).
No markdown, no extra keys.

Evidence:
%s`, skill, b.String())
}

func buildOriginalityPrompt(project domain.ProjectRef, facts domain.ProjectFacts, snippets []domain.CodeChunk) string {
	var b strings.Builder
	for _, chunk := range snippets {
		b.WriteString(fmt.Sprintf("file=%s %s\n%s\n\n",
			chunk.File, chunk.LineRange(), truncate(chunk.Text, maxPromptSnippet)))
	}

	return fmt.Sprintf(`You judge how much original engineering work a repository contains.
Repository: %s
Fork: %t, commits: %d, commit spread days: %d, boilerplate ratio: %.2f, stars: %d.

Score 0 for a pure template or tutorial clone, 100 for substantial
original work. Return strict JSON object with keys:
score (number from 0 to 100), description (string),
labels (array of strings, e.g. "template_match", "boilerplate_heavy").
No markdown, no extra keys.

Sample code:
%s`, project.Identifier(), facts.Fork, facts.CommitCount, facts.CommitSpreadDays, facts.BoilerplateRatio, facts.Stars, b.String())
}

func buildQuestionsPrompt(skill string, qctx ports.QuestionContext) string {
	var b strings.Builder
	for _, chunk := range qctx.Snippets {
		b.WriteString(fmt.Sprintf("file=%s %s\n%s\n\n",
			chunk.File, chunk.LineRange(), truncate(chunk.Text, maxPromptSnippet)))
	}
	focus := strings.Join(qctx.FocusAreas, ", ")
	if focus == "" {
		focus = "none recorded"
	}

	return fmt.Sprintf(`You write targeted interview questions for a candidate on %q.
Claimed level: %s. Observed level from their code: %s. Overclaim verdict: %s.
Weak spots to probe: %s.
Anchor questions in the candidate's own code below where possible.

Produce exactly %d theoretical, %d practical, and %d debugging questions.
Return strict JSON object with keys:
theoretical (array of strings), practical (array of strings),
debugging (array of strings), focus_areas (array of strings).
No markdown, no extra keys.

Candidate code:
%s`, skill, qctx.ClaimedLevel, qctx.ObservedLevel, qctx.Overclaim, focus,
		qctx.Budget.Theoretical, qctx.Budget.Practical, qctx.Budget.Debugging, b.String())
}

func buildParsePrompt(text string) string {
	const maxCVText = 24000
	return `You extract structured data from a résumé.
Return strict JSON object with keys:
candidate_name (string),
links (object with keys code_host_user, profile_handle),
claimed_skills (array of objects with keys name, claim_text, claimed_level, claimed_years),
projects (array of objects with keys name, repo_full, url),
timeline (array of objects with keys title, org, kind, start, end, full_time).
claimed_level is one of: beginner, intermediate, expert, unknown.
kind is "work" or "education". Dates are RFC 3339 timestamps; omit end for
ongoing entries. repo_full is "owner/name" when a code host URL is present.
No markdown, no extra keys.

Résumé text:
` + truncate(text, maxCVText)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
