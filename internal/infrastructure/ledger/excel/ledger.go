package excel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

const sheetName = "Reports"

var headerRow = []any{
	"Report ID", "Filename", "Patient", "Age", "Sex",
	"Abnormal Findings", "Summary", "Created At",
}

// Ledger appends one row per normalized report to an xlsx workbook, giving
// clinicians a reviewable log outside the service. Writes are serialized;
// the workbook is reopened per append so external edits between runs are
// preserved.
type Ledger struct {
	path string

	mu sync.Mutex
}

func New(path string) (*Ledger, error) {
	if path == "" {
		path = "./data/reports.xlsx"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	return &Ledger{path: path}, nil
}

func (l *Ledger) Append(ctx context.Context, report *domain.CBCReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := l.open()
	if err != nil {
		return err
	}
	defer file.Close()

	rows, err := file.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("read ledger rows: %w", err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return fmt.Errorf("compute ledger cell: %w", err)
	}
	row := []any{
		report.ID,
		report.Filename,
		report.Patient.Name,
		report.Patient.Age,
		report.Patient.Sex,
		formatFindings(report.AbnormalFindings()),
		report.RawSummary,
		report.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if err := file.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}

	if err := file.SaveAs(l.path); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func (l *Ledger) open() (*excelize.File, error) {
	if _, err := os.Stat(l.path); err == nil {
		file, err := excelize.OpenFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("open ledger workbook: %w", err)
		}
		return file, nil
	}

	file := excelize.NewFile()
	index, err := file.NewSheet(sheetName)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("create ledger sheet: %w", err)
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}
	if err := file.SetSheetRow(sheetName, "A1", &headerRow); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write ledger header: %w", err)
	}
	return file, nil
}

func formatFindings(findings []domain.Finding) string {
	if len(findings) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(findings))
	for _, f := range findings {
		part := fmt.Sprintf("%s %.4g", f.Parameter, f.Value)
		if f.Unit != "" {
			part += " " + f.Unit
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", part, f.Flag))
	}
	return strings.Join(parts, "; ")
}
