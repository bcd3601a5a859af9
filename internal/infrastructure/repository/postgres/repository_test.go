package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return db, mock, func() { _ = db.Close() }
}

func TestCVGetByIDReturnsDomainNotFound(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewCVRepository(db)

	mock.ExpectQuery("SELECT payload FROM cv_documents").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrCVNotFound) {
		t.Fatalf("expected ErrCVNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCVGetByIDRoundTripsPayload(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewCVRepository(db)

	cv := domain.CVDocument{
		ID:            "cv-1",
		CandidateName: "Dana",
		ClaimedSkills: []domain.SkillClaim{{Name: "Go", ClaimedLevel: domain.LevelExpert}},
	}
	payload, err := json.Marshal(&cv)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	mock.ExpectQuery("SELECT payload FROM cv_documents").
		WithArgs("cv-1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := repo.GetByID(context.Background(), "cv-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.CandidateName != "Dana" || len(got.ClaimedSkills) != 1 || got.ClaimedSkills[0].Name != "Go" {
		t.Fatalf("unexpected cv: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEvaluationSaveUpsertsByCVID(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewEvaluationRepository(db)

	result := &domain.EvaluationResult{
		RunID:       "run-1",
		CVID:        "cv-1",
		ContentHash: "abc",
		State:       domain.RunComplete,
		StartedAt:   time.Now().UTC(),
		FinishedAt:  time.Now().UTC(),
	}
	mock.ExpectExec("INSERT INTO evaluations").
		WithArgs("cv-1", "run-1", "abc", string(domain.RunComplete),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), result); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEvaluationUpdateStateRejectsStaleRun(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewEvaluationRepository(db)

	mock.ExpectExec("UPDATE evaluations").
		WithArgs("cv-1", "old-run", string(domain.RunScoring), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateState(context.Background(), "cv-1", "old-run", domain.RunScoring)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEvaluationListDecodesRows(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewEvaluationRepository(db)

	first, _ := json.Marshal(&domain.EvaluationResult{CVID: "cv-2", State: domain.RunComplete})
	second, _ := json.Marshal(&domain.EvaluationResult{CVID: "cv-1", State: domain.RunPartial})
	mock.ExpectQuery("SELECT result FROM evaluations ORDER BY updated_at").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"result"}).AddRow(first).AddRow(second))

	got, err := repo.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].CVID != "cv-2" || got[1].State != domain.RunPartial {
		t.Fatalf("unexpected list: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
