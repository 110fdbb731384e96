package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
	"github.com/hemolens/cbc-advisor/internal/core/ports"
	"github.com/hemolens/cbc-advisor/internal/core/refrange"
)

// NormalizeReportUseCase turns an uploaded CBC report into a structured,
// archived record and a retrieval query. The classification gate runs before
// any other work so a non-CBC upload never reaches retrieval, and flag
// computation stays deterministic while only the derived query comes from
// the summarizer.
type NormalizeReportUseCase struct {
	storage    ports.ObjectStorage
	extractor  ports.TextExtractor
	classifier ports.ReportClassifier
	summarizer ports.QuerySummarizer
	archive    ports.ReportArchive
	ledger     ports.FindingsLedger
	ranges     *refrange.Table
}

func NewNormalizeReportUseCase(
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	classifier ports.ReportClassifier,
	summarizer ports.QuerySummarizer,
	archive ports.ReportArchive,
	ledger ports.FindingsLedger,
	ranges *refrange.Table,
) *NormalizeReportUseCase {
	return &NormalizeReportUseCase{
		storage:    storage,
		extractor:  extractor,
		classifier: classifier,
		summarizer: summarizer,
		archive:    archive,
		ledger:     ledger,
		ranges:     ranges,
	}
}

func (uc *NormalizeReportUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.CBCReport, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("reports/%s_%s", id, sanitizeFilename(filename))

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save uploaded report: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, storageKey, mimeType)
	if err != nil {
		return nil, fmt.Errorf("extract report text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract report text", errors.New("empty report"))
	}

	// Fail-fast gate: nothing downstream runs for a non-CBC upload.
	isCBC, err := uc.classifier.IsCBCReport(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("classify report: %w", err)
	}
	if !isCBC {
		return nil, domain.WrapError(domain.ErrNotCBCReport, "classify report", errors.New("classifier rejected upload"))
	}

	patient, findings, comments := parseReport(text, uc.ranges)
	if len(findings) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse report", errors.New("no recognizable CBC parameters"))
	}

	report := &domain.CBCReport{
		ID:          id,
		Filename:    filename,
		StoragePath: storageKey,
		Patient:     patient,
		Panel:       findings,
		Comments:    comments,
		RawSummary:  buildRawSummary(findings, comments),
		CreatedAt:   time.Now().UTC(),
	}

	// The summarizer is the only model-dependent part of normalization.
	// Its failure is fatal: the pipeline cannot retrieve without a query.
	derived, err := uc.summarizer.SummarizeFindings(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("derive retrieval query: %w", err)
	}
	report.DerivedQuery = strings.TrimSpace(derived)
	if report.DerivedQuery == "" {
		report.DerivedQuery = report.RawSummary
	}

	if err := uc.persistRecord(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// persistRecord writes the structured record once: archive row, ledger row,
// and an individual JSON record keyed by report id.
func (uc *NormalizeReportUseCase) persistRecord(ctx context.Context, report *domain.CBCReport) error {
	if err := uc.archive.Save(ctx, report); err != nil {
		return fmt.Errorf("archive report: %w", err)
	}
	if err := uc.ledger.Append(ctx, report); err != nil {
		return fmt.Errorf("append findings ledger: %w", err)
	}

	record, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report record: %w", err)
	}
	recordKey := fmt.Sprintf("records/%s.json", report.ID)
	if err := uc.storage.Save(ctx, recordKey, bytes.NewReader(record)); err != nil {
		return fmt.Errorf("save report record: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "report.bin"
	}
	return base
}
