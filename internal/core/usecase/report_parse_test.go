package usecase

import (
	"strings"
	"testing"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
	"github.com/hemolens/cbc-advisor/internal/core/refrange"
)

func TestParseReportExtractsPanelAndPatient(t *testing.T) {
	text := `Patient Name: J. Okafor
Age: 52
Gender: male

Hemoglobin: 18.2 g/dL
Hct - 54 %
WBC 12.5
Platelet Count 460 thousand/uL

Remarks: polycythemia workup advised`

	patient, findings, comments := parseReport(text, refrange.Default())

	if patient.Name != "J. Okafor" || patient.Age != "52" || patient.Sex != "male" {
		t.Fatalf("unexpected patient %+v", patient)
	}
	if comments != "polycythemia workup advised" {
		t.Fatalf("unexpected comments %q", comments)
	}

	byParam := make(map[string]domain.Finding, len(findings))
	for _, f := range findings {
		byParam[f.Parameter] = f
	}

	if f := byParam["Hemoglobin"]; f.Flag != domain.FlagHigh || f.Value != 18.2 {
		t.Fatalf("unexpected hemoglobin finding %+v", f)
	}
	// "Hct" resolves through the alias to the canonical name.
	if f := byParam["Hematocrit"]; f.Flag != domain.FlagHigh {
		t.Fatalf("unexpected hematocrit finding %+v", f)
	}
	if f := byParam["WBC Count"]; f.Flag != domain.FlagHigh {
		t.Fatalf("unexpected wbc finding %+v", f)
	}
	if f := byParam["Platelet Count"]; f.Flag != domain.FlagHigh {
		t.Fatalf("unexpected platelet finding %+v", f)
	}
}

func TestParseReportUsesTableUnitWhenMissing(t *testing.T) {
	_, findings, _ := parseReport("WBC 6.0", refrange.Default())
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %d", len(findings))
	}
	if findings[0].Unit != "thousand/uL" {
		t.Fatalf("missing unit should fall back to the table unit, got %q", findings[0].Unit)
	}
	if findings[0].Flag != domain.FlagNormal {
		t.Fatalf("6.0 is in range, got %q", findings[0].Flag)
	}
}

func TestParseReportSkipsDuplicateParameters(t *testing.T) {
	text := "Hemoglobin 9.0\nHb 13.0"
	_, findings, _ := parseReport(text, refrange.Default())
	if len(findings) != 1 {
		t.Fatalf("expected duplicate parameter collapsed, got %d findings", len(findings))
	}
	if findings[0].Value != 9.0 {
		t.Fatalf("first occurrence wins, got %v", findings[0].Value)
	}
}

func TestParseReportIgnoresUnknownParameters(t *testing.T) {
	text := "Serum Rhubarb 42 mg/dL\nHemoglobin 13.0"
	_, findings, _ := parseReport(text, refrange.Default())
	if len(findings) != 1 || findings[0].Parameter != "Hemoglobin" {
		t.Fatalf("unknown parameters must be skipped, got %v", findings)
	}
}

func TestBuildRawSummaryLeadsWithAbnormal(t *testing.T) {
	findings := []domain.Finding{
		{Parameter: "Hemoglobin", Value: 9.8, Unit: "g/dL", Flag: domain.FlagLow},
		{Parameter: "WBC Count", Value: 6.2, Unit: "thousand/uL", Flag: domain.FlagNormal},
		{Parameter: "MCV", Value: 70, Unit: "fL", Flag: domain.FlagLow},
	}

	got := buildRawSummary(findings, "iron studies advised")
	if !strings.HasPrefix(got, "Hemoglobin 9.8 g/dL (low); MCV 70 fL (low)") {
		t.Fatalf("unexpected summary %q", got)
	}
	if !strings.HasSuffix(got, "iron studies advised") {
		t.Fatalf("comments must trail the summary, got %q", got)
	}
	if strings.Contains(got, "WBC") {
		t.Fatalf("normal findings must not appear in the summary, got %q", got)
	}
}

func TestBuildRawSummaryAllNormal(t *testing.T) {
	findings := []domain.Finding{
		{Parameter: "Hemoglobin", Value: 14, Unit: "g/dL", Flag: domain.FlagNormal},
	}
	got := buildRawSummary(findings, "")
	if got != "all CBC parameters within reference range" {
		t.Fatalf("unexpected summary %q", got)
	}
}
