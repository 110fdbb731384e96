package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

// KnowledgeRepository is the content store: it owns knowledge document state
// and the full text that index entries dereference to.
type KnowledgeRepository struct {
	db *sql.DB
}

func NewKnowledgeRepository(db *sql.DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *KnowledgeRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS knowledge_documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	title TEXT,
	full_text TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_knowledge_documents_status ON knowledge_documents(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *KnowledgeRepository) Create(ctx context.Context, doc *domain.KnowledgeDocument) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO knowledge_documents (
	id, filename, mime_type, storage_path, title, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, doc.Title,
		string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert knowledge document: %w", err)
	}
	return nil
}

func (r *KnowledgeRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeDocument, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, COALESCE(title, ''), status, COALESCE(error_message, ''), created_at, updated_at
FROM knowledge_documents
WHERE id = $1
`, id)

	var doc domain.KnowledgeDocument
	var status string
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &doc.Title,
		&status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get knowledge document", err)
		}
		return nil, fmt.Errorf("scan knowledge document: %w", err)
	}
	doc.Status = domain.KnowledgeStatus(status)
	return &doc, nil
}

func (r *KnowledgeRepository) SaveText(ctx context.Context, id, title, fullText string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE knowledge_documents
SET title = $2, full_text = $3, updated_at = $4
WHERE id = $1
`, id, title, fullText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save document text: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "save document text", sql.ErrNoRows)
	}
	return nil
}

func (r *KnowledgeRepository) UpdateStatus(ctx context.Context, id string, status domain.KnowledgeStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE knowledge_documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document status", sql.ErrNoRows)
	}
	return nil
}

// Resolve dereferences an index hit to its full document. Missing rows and
// rows with no stored text both come back as ErrDocumentNotFound; the
// caller decides how hard that failure is.
func (r *KnowledgeRepository) Resolve(ctx context.Context, documentID string) (*domain.DocumentRef, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, COALESCE(title, ''), COALESCE(full_text, '')
FROM knowledge_documents
WHERE id = $1
`, documentID)

	var ref domain.DocumentRef
	if err := row.Scan(&ref.DocumentID, &ref.Title, &ref.FullText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "resolve document", err)
		}
		return nil, fmt.Errorf("scan document ref: %w", err)
	}
	if ref.FullText == "" {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "resolve document", errors.New("document has no stored text"))
	}
	ref.Origin = domain.ProvenanceLocal
	ref.RetrievedAt = time.Now().UTC()
	return &ref, nil
}
