package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers malformed uploads and reports the pipeline
	// cannot work with. Fatal, surfaced before any retrieval.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotCBCReport marks an upload the classification gate rejected.
	// A kind of invalid input, kept distinct for API mapping.
	ErrNotCBCReport = errors.New("not a cbc report")

	// ErrConsistency marks an index entry referencing a document the content
	// store no longer has. Fatal to the current request, logged as a
	// data-integrity incident, never masked by skipping the document.
	ErrConsistency = errors.New("index consistency violation")

	// ErrProviderUnavailable marks a failed or timed-out external provider
	// call (LLM, embedding, web search). Recoverable at component boundaries.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrSearchUnavailable marks a web-search provider failure. Recoverable
	// at the orchestrator: the request degrades instead of failing.
	ErrSearchUnavailable = errors.New("web search unavailable")

	ErrReportNotFound   = errors.New("report not found")
	ErrDocumentNotFound = errors.New("document not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
