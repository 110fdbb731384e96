package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

// ReportRepository archives normalized CBC reports. Each report is written
// once after normalization and read back for answering requests.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083102)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS cbc_reports (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	patient_info JSONB NOT NULL DEFAULT '{}'::jsonb,
	panel JSONB NOT NULL DEFAULT '[]'::jsonb,
	comments TEXT,
	raw_summary TEXT NOT NULL,
	derived_query TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cbc_reports_created_at ON cbc_reports(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) Save(ctx context.Context, report *domain.CBCReport) error {
	patientJSON, err := json.Marshal(report.Patient)
	if err != nil {
		return fmt.Errorf("marshal patient info: %w", err)
	}
	panelJSON, err := json.Marshal(report.Panel)
	if err != nil {
		return fmt.Errorf("marshal panel: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO cbc_reports (
	id, filename, storage_path, patient_info, panel, comments, raw_summary, derived_query, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		report.ID, report.Filename, report.StoragePath, patientJSON, panelJSON,
		report.Comments, report.RawSummary, report.DerivedQuery, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cbc report: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*domain.CBCReport, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, storage_path, patient_info, panel, COALESCE(comments, ''), raw_summary, derived_query, created_at
FROM cbc_reports
WHERE id = $1
`, id)

	var report domain.CBCReport
	var patientRaw, panelRaw []byte
	err := row.Scan(
		&report.ID, &report.Filename, &report.StoragePath, &patientRaw, &panelRaw,
		&report.Comments, &report.RawSummary, &report.DerivedQuery, &report.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrReportNotFound, "get cbc report", err)
		}
		return nil, fmt.Errorf("scan cbc report: %w", err)
	}

	if err := json.Unmarshal(patientRaw, &report.Patient); err != nil {
		return nil, fmt.Errorf("unmarshal patient info: %w", err)
	}
	if err := json.Unmarshal(panelRaw, &report.Panel); err != nil {
		return nil, fmt.Errorf("unmarshal panel: %w", err)
	}
	return &report, nil
}
