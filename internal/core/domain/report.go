package domain

import "time"

type FlagState string

const (
	FlagNormal FlagState = "normal"
	FlagLow    FlagState = "low"
	FlagHigh   FlagState = "high"
)

// Finding is a single CBC panel row. Value and Flag are computed
// deterministically from the parsed report, never by a model.
type Finding struct {
	Parameter string    `json:"parameter"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Flag      FlagState `json:"flag"`
}

type PatientInfo struct {
	Name string `json:"name,omitempty"`
	Age  string `json:"age,omitempty"`
	Sex  string `json:"sex,omitempty"`
}

type CBCReport struct {
	ID           string      `json:"id"`
	Filename     string      `json:"filename"`
	StoragePath  string      `json:"storage_path"`
	Patient      PatientInfo `json:"patient_info"`
	Panel        []Finding   `json:"panel"`
	Comments     string      `json:"comments,omitempty"`
	RawSummary   string      `json:"raw_summary"`
	DerivedQuery string      `json:"derived_query"`
	CreatedAt    time.Time   `json:"created_at"`
}

// AbnormalFindings returns the panel rows flagged out of range, in panel order.
func (r *CBCReport) AbnormalFindings() []Finding {
	out := make([]Finding, 0, len(r.Panel))
	for _, f := range r.Panel {
		if f.Flag != FlagNormal {
			out = append(out, f)
		}
	}
	return out
}

// PatientQuery is the retrieval-facing view of a normalized report. Values are
// immutable: the rewriter produces a new variant via WithRewrittenQuery and
// never mutates an existing one.
type PatientQuery struct {
	ReportID      string    `json:"report_id"`
	RawSummary    string    `json:"raw_summary"`
	DerivedQuery  string    `json:"derived_query"`
	Findings      []Finding `json:"structured_findings"`
	RewrittenFrom string    `json:"rewritten_from,omitempty"`
}

func NewPatientQuery(report *CBCReport) PatientQuery {
	findings := make([]Finding, len(report.Panel))
	copy(findings, report.Panel)
	return PatientQuery{
		ReportID:     report.ID,
		RawSummary:   report.RawSummary,
		DerivedQuery: report.DerivedQuery,
		Findings:     findings,
	}
}

// WithRewrittenQuery returns a new PatientQuery carrying the rewritten query
// text and lineage to the query it replaced. Findings and raw summary are
// carried over unchanged for provenance.
func (q PatientQuery) WithRewrittenQuery(rewritten string) PatientQuery {
	next := q
	next.DerivedQuery = rewritten
	next.RewrittenFrom = q.DerivedQuery
	findings := make([]Finding, len(q.Findings))
	copy(findings, q.Findings)
	next.Findings = findings
	return next
}
