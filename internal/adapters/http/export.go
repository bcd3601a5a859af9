package httpadapter

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

const exportListLimit = 500

// exportEvaluations streams the recent evaluations as an XLSX
// workbook: one summary row per run plus a per-skill breakdown sheet.
func (rt *Router) exportEvaluations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit := exportListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	results, err := rt.evaluations.ListResults(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	workbook, err := buildExportWorkbook(results)
	if err != nil {
		writeError(w, err)
		return
	}
	defer workbook.Close()

	if rt.serverMtx != nil {
		rt.serverMtx.RecordExport("api", "xlsx")
	}

	filename := fmt.Sprintf("evaluations-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := workbook.Write(w); err != nil {
		// Headers are already out; nothing left to do but log upstream.
		return
	}
}

const (
	summarySheet = "Summary"
	skillsSheet  = "Skills"
)

func buildExportWorkbook(results []domain.EvaluationResult) (*excelize.File, error) {
	workbook := excelize.NewFile()
	if err := workbook.SetSheetName(workbook.GetSheetName(0), summarySheet); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := workbook.NewSheet(skillsSheet); err != nil {
		return nil, fmt.Errorf("add skills sheet: %w", err)
	}

	summaryHeader := []any{
		"CV ID", "Run ID", "State", "Overall",
		"Skill Authenticity", "Timeline", "Code Quality", "Presence Match",
		"Skills Total", "Real", "Fake", "Overclaimed", "Finished At",
	}
	if err := workbook.SetSheetRow(summarySheet, "A1", &summaryHeader); err != nil {
		return nil, err
	}

	skillsHeader := []any{
		"CV ID", "Skill", "Status", "Confidence", "Fake",
		"Claimed Level", "Observed Level", "Overclaim", "Severity",
	}
	if err := workbook.SetSheetRow(skillsSheet, "A1", &skillsHeader); err != nil {
		return nil, err
	}

	skillRow := 2
	for i, result := range results {
		finished := ""
		if !result.FinishedAt.IsZero() {
			finished = result.FinishedAt.UTC().Format(time.RFC3339)
		}
		row := []any{
			result.CVID, result.RunID, string(result.State), result.Scores.Overall,
			result.Scores.Authenticity, result.Scores.Timeline,
			result.Scores.CodeQuality, result.Scores.PresenceMatch,
			result.Counts.Total, result.Counts.Real, result.Counts.Fake,
			result.Counts.Overclaim, finished,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := workbook.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}

		for _, name := range skillOrder(result) {
			skill := result.Skills[name]
			inflation := result.Inflation[name]
			row := []any{
				result.CVID, name, string(skill.Status), skill.Confidence, skill.Fake,
				string(inflation.ClaimedLevel), string(inflation.ObservedLevel),
				string(inflation.Overclaim), inflation.Severity,
			}
			cell, err := excelize.CoordinatesToCellName(1, skillRow)
			if err != nil {
				return nil, err
			}
			if err := workbook.SetSheetRow(skillsSheet, cell, &row); err != nil {
				return nil, err
			}
			skillRow++
		}
	}
	return workbook, nil
}

// skillOrder follows the run's interview focus ranking; runs persisted
// before ranking existed fall back to alphabetical.
func skillOrder(result domain.EvaluationResult) []string {
	if len(result.FocusOrder) == len(result.Skills) {
		return result.FocusOrder
	}
	return sortedSkillNames(result.Skills)
}

func sortedSkillNames(skills map[string]domain.SkillEvidenceResult) []string {
	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
