package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
	"github.com/hemolens/cbc-advisor/internal/core/ports"
	"github.com/hemolens/cbc-advisor/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	reportIngest  ports.ReportIngestor
	reportAnswer  ports.ReportAnswerer
	reportReader  ports.ReportReader
	knowledgeAdd  ports.KnowledgeIngestor
	knowledgeRead ports.KnowledgeReader
	metrics       *metrics.APIMetrics
}

func NewRouter(
	reportIngest ports.ReportIngestor,
	reportAnswer ports.ReportAnswerer,
	reportReader ports.ReportReader,
	knowledgeAdd ports.KnowledgeIngestor,
	knowledgeRead ports.KnowledgeReader,
	apiMetrics *metrics.APIMetrics,
) *Router {
	return &Router{
		reportIngest:  reportIngest,
		reportAnswer:  reportAnswer,
		reportReader:  reportReader,
		knowledgeAdd:  knowledgeAdd,
		knowledgeRead: knowledgeRead,
		metrics:       apiMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/reports", rt.uploadReport)
	mux.HandleFunc("GET /v1/reports/{report_id}", rt.getReport)
	mux.HandleFunc("POST /v1/reports/{report_id}/answer", rt.answerReport)
	mux.HandleFunc("POST /v1/knowledge", rt.uploadKnowledge)
	mux.HandleFunc("GET /v1/knowledge/{document_id}", rt.getKnowledge)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadReport(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	report, err := rt.reportIngest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.recordUpload(uploadOutcome(err))
		writeError(w, r, err)
		return
	}

	rt.recordUpload("accepted")
	writeJSON(w, http.StatusCreated, report)
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("report_id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "report id is required"})
		return
	}

	report, err := rt.reportReader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) answerReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("report_id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "report id is required"})
		return
	}

	var req struct {
		Question string `json:"question"`
		TopK     int    `json:"top_k"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	start := time.Now()
	answer, err := rt.reportAnswer.Answer(r.Context(), id, strings.TrimSpace(req.Question), req.TopK)
	if err != nil {
		if rt.metrics != nil && domain.IsKind(err, domain.ErrConsistency) {
			rt.metrics.RecordConsistencyError(serviceName)
		}
		writeError(w, r, err)
		return
	}

	if rt.metrics != nil {
		local, web := countByOrigin(answer.Sources)
		rt.metrics.RecordAnswer(serviceName, string(answer.Confidence), local, web, answer.Attempts, time.Since(start))
		if answer.Degraded {
			rt.metrics.RecordWebSearchDegraded(serviceName)
		}
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) uploadKnowledge(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.knowledgeAdd.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getKnowledge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("document_id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.knowledgeRead.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) recordUpload(outcome string) {
	if rt.metrics != nil {
		rt.metrics.RecordReportUpload(serviceName, outcome)
	}
}

func uploadOutcome(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrNotCBCReport):
		return "rejected_not_cbc"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "rejected_invalid"
	default:
		return "error"
	}
}

func countByOrigin(refs []domain.DocumentRef) (local, web int) {
	for _, ref := range refs {
		switch ref.Origin {
		case domain.ProvenanceWeb:
			web++
		default:
			local++
		}
	}
	return local, web
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
