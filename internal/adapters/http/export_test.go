package httpadapter

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

func TestExportEvaluationsWritesWorkbook(t *testing.T) {
	handler := newTestHandler(&intakeStub{}, &evaluationsStub{
		list: []domain.EvaluationResult{{
			RunID: "run-1",
			CVID:  "cv-1",
			State: domain.RunComplete,
			Skills: map[string]domain.SkillEvidenceResult{
				"Go": {Skill: "Go", Status: domain.StatusSupported, Confidence: 0.8},
			},
			Inflation: map[string]domain.SkillInflationResult{
				"Go": {Skill: "Go", ClaimedLevel: domain.LevelExpert, ObservedLevel: domain.LevelExpert, Overclaim: domain.OverclaimNo},
			},
			Scores: domain.CategoryScores{Authenticity: 80, Timeline: 100, CodeQuality: 70, PresenceMatch: 100, Overall: 86},
			Counts: domain.SkillCounts{Total: 1, Real: 1},
		}},
	}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/v1/evaluations/export", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", res.Code, res.Body.String())
	}
	if ct := res.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", ct)
	}

	workbook, err := excelize.OpenReader(bytes.NewReader(res.Body.Bytes()))
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer workbook.Close()

	cvID, err := workbook.GetCellValue(summarySheet, "A2")
	if err != nil || cvID != "cv-1" {
		t.Fatalf("summary A2 = %q (%v), want cv-1", cvID, err)
	}
	skill, err := workbook.GetCellValue(skillsSheet, "B2")
	if err != nil || skill != "Go" {
		t.Fatalf("skills B2 = %q (%v), want Go", skill, err)
	}
}

func TestExportEvaluationsRejectsBadLimit(t *testing.T) {
	handler := newTestHandler(&intakeStub{}, &evaluationsStub{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/v1/evaluations/export?limit=-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}
