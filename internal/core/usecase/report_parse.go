package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
	"github.com/hemolens/cbc-advisor/internal/core/refrange"
)

// findingLine matches one panel row: parameter name, numeric value, optional
// unit. Reference-range columns after the unit are ignored.
var findingLine = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z .()\-]*?)\s*[:\-]?\s+(\d+(?:\.\d+)?)\s*([A-Za-z0-9%/^.]*)`)

var patientField = regexp.MustCompile(`(?i)^\s*(name|patient name|age|sex|gender)\s*[:\-]\s*(.+?)\s*$`)

// parseReport extracts patient info, panel findings and trailing comments
// from raw report text. Flags are computed against the fixed reference
// ranges; lines naming parameters outside the table are skipped.
func parseReport(text string, ranges *refrange.Table) (domain.PatientInfo, []domain.Finding, string) {
	var patient domain.PatientInfo
	var findings []domain.Finding
	var comments []string
	seen := make(map[string]bool)
	inComments := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if inComments {
			comments = append(comments, trimmed)
			continue
		}
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "comments") || strings.HasPrefix(lower, "impression") || strings.HasPrefix(lower, "remarks") {
			inComments = true
			if _, rest, ok := strings.Cut(trimmed, ":"); ok {
				if rest = strings.TrimSpace(rest); rest != "" {
					comments = append(comments, rest)
				}
			}
			continue
		}

		if m := patientField.FindStringSubmatch(trimmed); m != nil {
			switch strings.ToLower(m[1]) {
			case "name", "patient name":
				patient.Name = m[2]
			case "age":
				patient.Age = m[2]
			case "sex", "gender":
				patient.Sex = m[2]
			}
			continue
		}

		m := findingLine.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		rng, ok := ranges.Lookup(m[1])
		if !ok {
			continue
		}
		if seen[rng.Parameter] {
			continue
		}
		value, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}

		unit := m[3]
		if unit == "" {
			unit = rng.Unit
		}
		seen[rng.Parameter] = true
		findings = append(findings, domain.Finding{
			Parameter: rng.Parameter,
			Value:     value,
			Unit:      unit,
			Flag:      rng.Flag(value),
		})
	}

	return patient, findings, strings.Join(comments, " ")
}

// buildRawSummary renders a deterministic one-line summary of the panel,
// abnormal findings first. This feeds retrieval provenance; the
// natural-language derived query comes from the summarizer separately.
func buildRawSummary(findings []domain.Finding, comments string) string {
	var parts []string
	for _, f := range findings {
		if f.Flag == domain.FlagNormal {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %.4g %s (%s)", f.Parameter, f.Value, f.Unit, f.Flag))
	}
	if len(parts) == 0 {
		parts = append(parts, "all CBC parameters within reference range")
	}
	summary := strings.Join(parts, "; ")
	if comments != "" {
		summary += ". " + comments
	}
	return summary
}
