package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

func newKnowledgeRepoWithMock(t *testing.T) (*KnowledgeRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &KnowledgeRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestKnowledgeGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newKnowledgeRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, filename, mime_type, storage_path").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newKnowledgeRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE knowledge_documents").
		WithArgs("missing", string(domain.KnowledgeProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.KnowledgeProcessing, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResolveMissingRowReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newKnowledgeRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, COALESCE").
		WithArgs("dangling").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Resolve(context.Background(), "dangling")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResolveEmptyTextReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newKnowledgeRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "title", "full_text"}).
		AddRow("doc-1", "Iron Deficiency Anemia", "")
	mock.ExpectQuery("SELECT id, COALESCE").
		WithArgs("doc-1").
		WillReturnRows(rows)

	_, err := repo.Resolve(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResolveTagsLocalProvenance(t *testing.T) {
	repo, mock, done := newKnowledgeRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "title", "full_text"}).
		AddRow("doc-1", "Iron Deficiency Anemia", "Low MCV with low hemoglobin suggests iron deficiency.")
	mock.ExpectQuery("SELECT id, COALESCE").
		WithArgs("doc-1").
		WillReturnRows(rows)

	ref, err := repo.Resolve(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ref.Origin != domain.ProvenanceLocal {
		t.Fatalf("expected local provenance, got %q", ref.Origin)
	}
	if ref.Title != "Iron Deficiency Anemia" {
		t.Fatalf("unexpected title %q", ref.Title)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
