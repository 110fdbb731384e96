package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
	"github.com/hemolens/cbc-advisor/internal/core/ports"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/extractor/pdf"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/extractor/plaintext"
)

type formatExtractor interface {
	Extract(ctx context.Context, storagePath string) (string, error)
}

// Dispatcher routes a stored upload to the extractor for its format.
// PDF is detected by mime type or file extension; everything else is
// treated as plain text.
type Dispatcher struct {
	plain formatExtractor
	pdf   formatExtractor
}

func NewDispatcher(storage ports.ObjectStorage) *Dispatcher {
	return &Dispatcher{
		plain: plaintext.NewExtractor(storage),
		pdf:   pdf.NewExtractor(storage),
	}
}

func (d *Dispatcher) Extract(ctx context.Context, storagePath, mimeType string) (string, error) {
	if isPDF(storagePath, mimeType) {
		text, err := d.pdf.Extract(ctx, storagePath)
		if err != nil {
			return "", domain.WrapError(domain.ErrInvalidInput, "extract pdf", err)
		}
		return text, nil
	}

	text, err := d.plain.Extract(ctx, storagePath)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", err)
	}
	return text, nil
}

func isPDF(storagePath, mimeType string) bool {
	if strings.Contains(strings.ToLower(mimeType), "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(storagePath), ".pdf")
}
