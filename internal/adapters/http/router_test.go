package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

type reportIngestFake struct {
	err   error
	calls int
}

func (f *reportIngestFake) Upload(_ context.Context, filename, _ string, body io.Reader) (*domain.CBCReport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	return &domain.CBCReport{
		ID:        "rep-1",
		Filename:  filename,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type answerFake struct {
	err    error
	answer *domain.GroundedAnswer
	calls  int
}

func (f *answerFake) Answer(_ context.Context, reportID, question string, _ int) (*domain.GroundedAnswer, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &domain.GroundedAnswer{
		ReportID:   reportID,
		Question:   question,
		Text:       "ok",
		Confidence: domain.ConfidenceLocalOnly,
	}, nil
}

type reportReaderFake struct {
	err error
}

func (f *reportReaderFake) GetByID(_ context.Context, id string) (*domain.CBCReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CBCReport{ID: id, Filename: "cbc.txt"}, nil
}

type knowledgeIngestFake struct{}

func (f *knowledgeIngestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.KnowledgeDocument, error) {
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &domain.KnowledgeDocument{
		ID:        "doc-1",
		Filename:  filename,
		MimeType:  mimeType,
		Status:    domain.KnowledgeUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type knowledgeReaderFake struct {
	err error
}

func (f *knowledgeReaderFake) GetByID(_ context.Context, id string) (*domain.KnowledgeDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.KnowledgeDocument{ID: id, Status: domain.KnowledgeReady}, nil
}

type routerFakes struct {
	ingest    *reportIngestFake
	answer    *answerFake
	reports   *reportReaderFake
	knowledge *knowledgeIngestFake
	reader    *knowledgeReaderFake
}

func newTestRouter(fakes routerFakes) http.Handler {
	if fakes.ingest == nil {
		fakes.ingest = &reportIngestFake{}
	}
	if fakes.answer == nil {
		fakes.answer = &answerFake{}
	}
	if fakes.reports == nil {
		fakes.reports = &reportReaderFake{}
	}
	if fakes.knowledge == nil {
		fakes.knowledge = &knowledgeIngestFake{}
	}
	if fakes.reader == nil {
		fakes.reader = &knowledgeReaderFake{}
	}
	return NewRouter(fakes.ingest, fakes.answer, fakes.reports, fakes.knowledge, fakes.reader, nil).Handler()
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestRouter(routerFakes{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadReportSuccess(t *testing.T) {
	handler := newTestRouter(routerFakes{})

	body, contentType := multipartBody(t, "file", "cbc.txt", "Hemoglobin: 9.8 g/dL")
	req := httptest.NewRequest(http.MethodPost, "/v1/reports", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != "rep-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestUploadReportMissingMultipartField(t *testing.T) {
	handler := newTestRouter(routerFakes{})

	req := httptest.NewRequest(http.MethodPost, "/v1/reports", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadNonCBCReportMaps422AndSkipsPipeline(t *testing.T) {
	answer := &answerFake{}
	handler := newTestRouter(routerFakes{
		ingest: &reportIngestFake{err: domain.WrapError(domain.ErrNotCBCReport, "upload", errors.New("classified as non-cbc"))},
		answer: answer,
	})

	body, contentType := multipartBody(t, "file", "recipe.txt", "flour, sugar, eggs")
	req := httptest.NewRequest(http.MethodPost, "/v1/reports", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	if answer.calls != 0 {
		t.Fatalf("rejected upload must not reach the answering pipeline, got %d calls", answer.calls)
	}
}

func TestAnswerReportReturnsConfidence(t *testing.T) {
	handler := newTestRouter(routerFakes{
		answer: &answerFake{answer: &domain.GroundedAnswer{
			ReportID:   "rep-1",
			Question:   "why is hemoglobin low",
			Text:       "grounded answer",
			Confidence: domain.ConfidenceLocalWeb,
			Sources: []domain.DocumentRef{
				{DocumentID: "doc-1", Origin: domain.ProvenanceLocal},
				{DocumentID: "web:x:0", Origin: domain.ProvenanceWeb},
			},
			Attempts: 1,
		}},
	})

	payload, _ := json.Marshal(map[string]any{"question": "why is hemoglobin low"})
	req := httptest.NewRequest(http.MethodPost, "/v1/reports/rep-1/answer", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["confidence"] != string(domain.ConfidenceLocalWeb) {
		t.Fatalf("unexpected confidence: %v", resp["confidence"])
	}
}

func TestAnswerReportEmptyBodyAllowed(t *testing.T) {
	handler := newTestRouter(routerFakes{})

	req := httptest.NewRequest(http.MethodPost, "/v1/reports/rep-1/answer", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for default question, got %d", res.Code)
	}
}

func TestAnswerReportMapsProviderUnavailableTo503(t *testing.T) {
	handler := newTestRouter(routerFakes{
		answer: &answerFake{err: domain.WrapError(domain.ErrProviderUnavailable, "synthesize", errors.New("ollama down"))},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/reports/rep-1/answer", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestAnswerReportMapsConsistencyTo500(t *testing.T) {
	handler := newTestRouter(routerFakes{
		answer: &answerFake{err: domain.WrapError(domain.ErrConsistency, "resolve", errors.New("doc-9 missing"))},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/reports/rep-1/answer", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestGetReportReturns404ForNotFound(t *testing.T) {
	handler := newTestRouter(routerFakes{
		reports: &reportReaderFake{err: domain.WrapError(domain.ErrReportNotFound, "get", errors.New("id=missing"))},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestUploadKnowledgeAccepted(t *testing.T) {
	handler := newTestRouter(routerFakes{})

	body, contentType := multipartBody(t, "file", "anemia.pdf", "%PDF-1.4 ...")
	req := httptest.NewRequest(http.MethodPost, "/v1/knowledge", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
}

func TestGetKnowledgeReturnsStatus(t *testing.T) {
	handler := newTestRouter(routerFakes{})

	req := httptest.NewRequest(http.MethodGet, "/v1/knowledge/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != string(domain.KnowledgeReady) {
		t.Fatalf("unexpected status %v", resp["status"])
	}
}
