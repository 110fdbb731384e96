package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/hemolens/cbc-advisor/internal/config"
	"github.com/hemolens/cbc-advisor/internal/core/ports"
	"github.com/hemolens/cbc-advisor/internal/core/refrange"
	"github.com/hemolens/cbc-advisor/internal/core/usecase"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/chunking"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/extractor"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/ledger/excel"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/llm/ollama"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/queue/nats"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/repository/postgres"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/resilience"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/search/tavily"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/storage/localfs"
	"github.com/hemolens/cbc-advisor/internal/infrastructure/vector/qdrant"
)

// App wires the full dependency graph once; the api and worker binaries each
// pick the pieces they serve.
type App struct {
	Config config.Config

	Queue ports.MessageQueue

	ReportIngest  ports.ReportIngestor
	ReportAnswer  ports.ReportAnswerer
	ReportReader  ports.ReportReader
	KnowledgeAdd  ports.KnowledgeIngestor
	KnowledgeRead ports.KnowledgeReader
	ProcessUC     ports.KnowledgeProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	knowledgeRepo := postgres.NewKnowledgeRepository(db)
	if err := knowledgeRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure knowledge schema: %w", err)
	}
	reportRepo := postgres.NewReportRepository(db)
	if err := reportRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure report schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	ledger, err := excel.New(cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("init findings ledger: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	classifier := ollama.NewClassifier(ollamaClient)
	judge := ollama.NewJudge(ollamaClient)
	rewriter := ollama.NewRewriter(ollamaClient)
	synthesizer := ollama.NewSynthesizer(ollamaClient)
	summarizer := ollama.NewSummarizer(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.NewDispatcher(storage)
	searcher := tavily.New(cfg.WebSearchURL, cfg.WebSearchAPIKey, tavily.Options{
		RequestsPerSecond: cfg.WebSearchRateLimit,
	})

	normalizeUC := usecase.NewNormalizeReportUseCase(
		storage, extract, classifier, summarizer, reportRepo, ledger, refrange.Default(),
	)
	ingestUC := usecase.NewIngestKnowledgeUseCase(knowledgeRepo, storage, queue)
	processUC := usecase.NewProcessKnowledgeUseCase(
		knowledgeRepo, extract, chunker, summarizer, embedder, index,
	)
	retrieveUC := usecase.NewRetrieveEvidenceUseCase(embedder, index, knowledgeRepo)
	gradeUC := usecase.NewGradeEvidenceUseCase(judge, time.Duration(cfg.JudgeTimeoutSecs)*time.Second)
	// MAX_CORRECTIONS=0 disables the correction cycle; the answer config
	// reserves the zero value for "unset", so explicit zero maps to negative.
	maxCorrections := cfg.MaxCorrections
	if maxCorrections == 0 {
		maxCorrections = -1
	}
	answerUC := usecase.NewAnswerReportUseCase(
		reportRepo, retrieveUC, gradeUC, rewriter, searcher, synthesizer,
		usecase.AnswerConfig{
			TopK:           cfg.RetrieveTopK,
			WebTopK:        cfg.WebSearchTopK,
			MaxCorrections: maxCorrections,
		},
	)

	return &App{
		Config: cfg,
		Queue:  queue,

		ReportIngest:  normalizeUC,
		ReportAnswer:  answerUC,
		ReportReader:  reportRepo,
		KnowledgeAdd:  ingestUC,
		KnowledgeRead: knowledgeRepo,
		ProcessUC:     processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
