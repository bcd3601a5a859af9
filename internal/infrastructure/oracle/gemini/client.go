package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/resilience"
)

// generateFunc exists so tests can stub the model call without a live
// API key.
type generateFunc func(ctx context.Context, prompt string) (string, error)

type Client struct {
	genModel   string
	embedModel string
	exec       *resilience.Executor
	generate   generateFunc
	embed      func(ctx context.Context, texts []string) ([][]float32, error)
}

func New(ctx context.Context, apiKey, genModel, embedModel string, exec *resilience.Executor) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	c := &Client{genModel: genModel, embedModel: embedModel, exec: exec}
	c.generate = func(ctx context.Context, prompt string) (string, error) {
		temperature := float32(0.2)
		resp, err := client.Models.GenerateContent(ctx, c.genModel, genai.Text(prompt), &genai.GenerateContentConfig{
			Temperature:     &temperature,
			MaxOutputTokens: 4096,
		})
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return "", fmt.Errorf("empty model response")
		}
		return text, nil
	}
	c.embed = func(ctx context.Context, texts []string) ([][]float32, error) {
		contents := make([]*genai.Content, 0, len(texts))
		for _, text := range texts {
			if len(text) > 40000 {
				text = text[:40000]
			}
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}
		result, err := client.Models.EmbedContent(ctx, c.embedModel, contents, nil)
		if err != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		if result == nil || len(result.Embeddings) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch")
		}
		vectors := make([][]float32, len(result.Embeddings))
		for i, emb := range result.Embeddings {
			vectors[i] = emb.Values
		}
		return vectors, nil
	}
	return c, nil
}

func (c *Client) generateJSON(ctx context.Context, operation, prompt string, out any) error {
	var raw string
	err := c.exec.Execute(ctx, operation, func(ctx context.Context) error {
		text, genErr := c.generate(ctx, prompt)
		if genErr != nil {
			return genErr
		}
		raw = text
		return nil
	}, classifyGeminiError)
	if err != nil {
		return wrapTransientIfNeeded(operation, err)
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), out); err != nil {
		return fmt.Errorf("parse %s json: %w", operation, err)
	}
	return nil
}

type Oracle struct {
	client *Client
}

func NewOracle(client *Client) *Oracle {
	return &Oracle{client: client}
}

func (o *Oracle) ClassifySkillSupport(ctx context.Context, skill string, snippets []domain.CodeChunk) (ports.SupportJudgment, error) {
	var result struct {
		Supported  bool    `json:"supported"`
		Confidence float64 `json:"confidence"`
		Citations  []struct {
			ChunkID   string `json:"chunk_id"`
			Excerpt   string `json:"excerpt"`
			Reasoning string `json:"reasoning"`
		} `json:"citations"`
	}
	if err := o.client.generateJSON(ctx, "classify_skill_support", buildSupportPrompt(skill, snippets), &result); err != nil {
		return ports.SupportJudgment{}, err
	}

	byID := make(map[string]domain.CodeChunk, len(snippets))
	for _, chunk := range snippets {
		byID[chunk.ID] = chunk
	}
	judgment := ports.SupportJudgment{
		Supported:  result.Supported,
		Confidence: clamp01(result.Confidence),
	}
	for _, cite := range result.Citations {
		chunk, ok := byID[cite.ChunkID]
		if !ok {
			continue
		}
		judgment.Evidence = append(judgment.Evidence, domain.EvidenceRecord{
			ID:        cite.ChunkID,
			Source:    domain.SourceCodeHosting,
			Subject:   skill,
			Repo:      chunk.Repo,
			File:      chunk.File,
			Lines:     chunk.LineRange(),
			Excerpt:   cite.Excerpt,
			Reasoning: cite.Reasoning,
			Payload:   map[string]any{"chunk_text": chunk.Text},
			FetchOK:   true,
		})
	}
	return judgment, nil
}

func (o *Oracle) ClassifyProficiency(ctx context.Context, skill string, evidence []domain.EvidenceRecord) (ports.LevelJudgment, error) {
	var result struct {
		Level     string `json:"level"`
		Rationale string `json:"rationale"`
	}
	if err := o.client.generateJSON(ctx, "classify_proficiency", buildProficiencyPrompt(skill, evidence), &result); err != nil {
		return ports.LevelJudgment{}, err
	}
	return ports.LevelJudgment{
		Level:     domain.ParseLevel(result.Level),
		Rationale: result.Rationale,
	}, nil
}

func (o *Oracle) JudgeOriginality(ctx context.Context, project domain.ProjectRef, facts domain.ProjectFacts, snippets []domain.CodeChunk) (ports.OriginalityJudgment, error) {
	var result struct {
		Score       float64  `json:"score"`
		Description string   `json:"description"`
		Labels      []string `json:"labels"`
	}
	if err := o.client.generateJSON(ctx, "judge_originality", buildOriginalityPrompt(project, facts, snippets), &result); err != nil {
		return ports.OriginalityJudgment{}, err
	}
	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 100 {
		result.Score = 100
	}
	return ports.OriginalityJudgment{
		Score:       result.Score,
		Description: result.Description,
		Labels:      result.Labels,
	}, nil
}

func (o *Oracle) GenerateQuestions(ctx context.Context, skill string, qctx ports.QuestionContext) (domain.InterviewQuestionSet, error) {
	var result struct {
		Theoretical []string `json:"theoretical"`
		Practical   []string `json:"practical"`
		Debugging   []string `json:"debugging"`
		FocusAreas  []string `json:"focus_areas"`
	}
	if err := o.client.generateJSON(ctx, "generate_questions", buildQuestionsPrompt(skill, qctx), &result); err != nil {
		return domain.InterviewQuestionSet{}, err
	}
	return domain.InterviewQuestionSet{
		Skill:       skill,
		Theoretical: capList(result.Theoretical, qctx.Budget.Theoretical),
		Practical:   capList(result.Practical, qctx.Budget.Practical),
		Debugging:   capList(result.Debugging, qctx.Budget.Debugging),
		FocusAreas:  result.FocusAreas,
	}, nil
}

type Parser struct {
	client *Client
}

func NewParser(client *Client) *Parser {
	return &Parser{client: client}
}

func (p *Parser) Parse(ctx context.Context, text string) (*domain.CVDocument, error) {
	var result struct {
		CandidateName string                 `json:"candidate_name"`
		Links         domain.CandidateLinks  `json:"links"`
		ClaimedSkills []domain.SkillClaim    `json:"claimed_skills"`
		Projects      []domain.ProjectRef    `json:"projects"`
		Timeline      []domain.TimelineEntry `json:"timeline"`
	}
	if err := p.client.generateJSON(ctx, "parse_cv", buildParsePrompt(text), &result); err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.CandidateName) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse cv", errors.New("no candidate name extracted"))
	}
	for i := range result.ClaimedSkills {
		result.ClaimedSkills[i].ClaimedLevel = domain.ParseLevel(string(result.ClaimedSkills[i].ClaimedLevel))
	}
	return &domain.CVDocument{
		CandidateName: result.CandidateName,
		Links:         result.Links,
		ClaimedSkills: result.ClaimedSkills,
		Projects:      result.Projects,
		Timeline:      result.Timeline,
	}, nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var vectors [][]float32
	err := e.client.exec.Execute(ctx, "embed", func(ctx context.Context) error {
		out, embedErr := e.client.embed(ctx, texts)
		if embedErr != nil {
			return embedErr
		}
		vectors = out
		return nil
	}, classifyGeminiError)
	if err != nil {
		return nil, wrapTransientIfNeeded("embed", err)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func capList(items []string, limit int) []string {
	if limit >= 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
