package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

func newReportRepoWithMock(t *testing.T) (*ReportRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ReportRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestReportGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, filename, storage_path").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReportRoundTripJSONColumns(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t)
	defer done()

	created := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "filename", "storage_path", "patient_info", "panel",
		"comments", "raw_summary", "derived_query", "created_at",
	}).AddRow(
		"rep-1", "cbc.txt", "reports/rep-1_cbc.txt",
		[]byte(`{"name":"A. Martin","sex":"female"}`),
		[]byte(`[{"parameter":"Hemoglobin","value":9.8,"unit":"g/dL","flag":"low"}]`),
		"", "low hemoglobin", "interpretation of low hemoglobin", created,
	)
	mock.ExpectQuery("SELECT id, filename, storage_path").
		WithArgs("rep-1").
		WillReturnRows(rows)

	report, err := repo.GetByID(context.Background(), "rep-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if report.Patient.Name != "A. Martin" {
		t.Fatalf("unexpected patient name %q", report.Patient.Name)
	}
	if len(report.Panel) != 1 || report.Panel[0].Flag != domain.FlagLow {
		t.Fatalf("unexpected panel %+v", report.Panel)
	}
	if !report.CreatedAt.Equal(created) {
		t.Fatalf("unexpected created_at %v", report.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReportSaveMarshalsPanel(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO cbc_reports").
		WithArgs("rep-1", "cbc.txt", "reports/rep-1_cbc.txt",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "", "low hemoglobin",
			"interpretation of low hemoglobin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &domain.CBCReport{
		ID:           "rep-1",
		Filename:     "cbc.txt",
		StoragePath:  "reports/rep-1_cbc.txt",
		Panel:        []domain.Finding{{Parameter: "Hemoglobin", Value: 9.8, Unit: "g/dL", Flag: domain.FlagLow}},
		RawSummary:   "low hemoglobin",
		DerivedQuery: "interpretation of low hemoglobin",
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
