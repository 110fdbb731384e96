package ollama

import (
	"fmt"
	"strings"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

const maxPromptSnippet = 4000

func snippet(text string) string {
	if len(text) > maxPromptSnippet {
		return text[:maxPromptSnippet]
	}
	return text
}

func buildClassifyPrompt(text string) string {
	return `You are a medical document classifier.
Decide whether the document below is a Complete Blood Count (CBC) laboratory report.
Return strict JSON with a single key: is_cbc_report (boolean).
No markdown, no extra keys.

Document:
` + snippet(text)
}

func buildJudgePrompt(question string, doc domain.DocumentRef) string {
	return fmt.Sprintf(`You are a clinical evidence grader.
Decide whether the document below contains information relevant to answering the question.
Return strict JSON with a single key: relevant (boolean).
No markdown, no extra keys.

Question:
%s

Document (%s):
%s
`, question, doc.Title, snippet(doc.FullText))
}

func buildRewritePrompt(query domain.PatientQuery) string {
	var findings strings.Builder
	for _, f := range query.Findings {
		fmt.Fprintf(&findings, "- %s: %.4g %s (%s)\n", f.Parameter, f.Value, f.Unit, f.Flag)
	}

	return fmt.Sprintf(`Rewrite the clinical search query below so it works well on a public web search engine.
Use broader medical terminology, drop any internal phrasing, keep it to one line.
Return only the rewritten query text.

Original query:
%s

Structured findings:
%s`, query.DerivedQuery, findings.String())
}

func buildSynthesisPrompt(question string, evidence []domain.DocumentRef) string {
	var contextBuilder strings.Builder
	for idx, doc := range evidence {
		origin := string(doc.Origin)
		if doc.URL != "" {
			origin += " " + doc.URL
		}
		fmt.Fprintf(&contextBuilder, "[%d] title=%s origin=%s\n%s\n\n",
			idx+1, doc.Title, origin, snippet(doc.FullText))
	}
	if len(evidence) == 0 {
		contextBuilder.WriteString("(no evidence retrieved)\n")
	}

	return fmt.Sprintf(`You are a hematology assistant. Answer the question using only the evidence below.
Cite evidence by its [number]. If the evidence is thin, say so explicitly and recommend
verification with a clinician.

Question:
%s

Evidence:
%s`, question, contextBuilder.String())
}

func buildFindingsSummaryPrompt(report *domain.CBCReport) string {
	var findings strings.Builder
	for _, f := range report.Panel {
		fmt.Fprintf(&findings, "- %s: %.4g %s (%s)\n", f.Parameter, f.Value, f.Unit, f.Flag)
	}

	return fmt.Sprintf(`Summarize the CBC findings below into a short clinical phrase naming the most
likely hematological picture (for example "Microcytic Hypochromic Anemia").
Return only the phrase, no explanation.

Findings:
%sComments: %s
`, findings.String(), report.Comments)
}

func buildChunkSummaryPrompt(chunk string) string {
	return `Summarize the medical text below in one or two sentences, keeping the key clinical
terms so the summary works as a semantic search key.

Text:
` + snippet(chunk)
}
