package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/cv-sentinel/internal/config"
	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
	"github.com/kirillkom/cv-sentinel/internal/core/usecase"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/chunking"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/evidence/github"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/evidence/profile"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/extractor/pdfcv"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/oracle/gemini"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/queue/nats"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/resilience"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/cv-sentinel/internal/observability/metrics"
)

// App wires the shared infrastructure once; the api and worker
// binaries pick the pieces they serve.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue       ports.MessageQueue
	Intake      ports.CVIntake
	Evaluations ports.EvaluationService
	Processor   ports.RunProcessor

	ServerMetrics *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	cvRepo := postgres.NewCVRepository(db)
	evalRepo := postgres.NewEvaluationRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics(service)
	serverMetrics := metrics.NewHTTPServerMetrics(service)

	// One executor per backend keeps breaker state and the external
	// call metrics label scoped to that backend.
	observed := func(base resilience.Config, backend string) resilience.Config {
		base.OnResult = func(_ string, err error) {
			workerMetrics.RecordExternalCall(service, backend, err)
		}
		return base
	}
	githubExec := resilience.NewExecutor(observed(resilience.DefaultConfig(), "github"))
	profileExec := resilience.NewExecutor(observed(resilience.DefaultConfig(), "profile"))
	oracleExec := resilience.NewExecutor(observed(resilience.OracleConfig(), "gemini"))
	natsExec := resilience.NewExecutor(observed(resilience.DefaultConfig(), "nats"))

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: natsExec,
		OnLag:              func(lag time.Duration) { workerMetrics.ObserveQueueLag(service, lag) },
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	geminiClient, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbedModel, oracleExec)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	oracle := gemini.NewOracle(geminiClient)
	parser := gemini.NewParser(geminiClient)
	embedder := gemini.NewEmbedder(geminiClient)

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	splitter := chunking.NewSplitter(cfg.ChunkMaxLines, cfg.ChunkOverlap)

	githubClient := github.NewClient(cfg.GitHubAPIURL, cfg.GitHubToken, cfg.GitHubRatePerSec, githubExec)
	codeSource := github.NewSource(githubClient, splitter, embedder, index, github.Config{
		DeepRepos:   cfg.GitHubDeepRepos,
		MaxFiles:    cfg.GitHubMaxFiles,
		MaxZipBytes: cfg.GitHubMaxZipBytes,
		MaxChunks:   cfg.GitHubMaxChunks,
		TopK:        cfg.EvidenceTopK,
	}, logger)

	sources := []ports.EvidenceSource{codeSource}
	if cfg.ProfileAPIURL != "" {
		sources = append(sources, profile.New(cfg.ProfileAPIURL, profileExec))
	}

	sampler := snippetSampler(embedder, index, cfg.EvidenceTopK)

	mapper := usecase.NewEvidenceMapper(sources, oracle, cfg.Scoring.SupportThreshold, logger)
	analyzer := usecase.NewAuthenticityAnalyzer(codeSource, oracle, sampler,
		cfg.Scoring.StructuralWeight, cfg.Scoring.JudgmentWeight, logger)
	detector := usecase.NewInflationDetector(oracle, logger)
	generator := usecase.NewQuestionGenerator(oracle, logger)

	orchestrator := usecase.NewOrchestrator(
		evalRepo, sources, mapper, analyzer, detector, generator,
		cfg.ExternalParallel, cfg.Scoring.SupportThreshold,
		func(stage string, d time.Duration) { workerMetrics.ObserveStage(service, stage, d) },
		logger,
	)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:       queue,
		Intake:      usecase.NewIngestCVUseCase(storage, pdfcv.NewExtractor(), parser, cvRepo, logger),
		Evaluations: usecase.NewEvaluationService(cvRepo, evalRepo, queue, logger),
		Processor:   usecase.NewRunProcessor(cvRepo, orchestrator, logger),

		ServerMetrics: serverMetrics,
		WorkerMetrics: workerMetrics,

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

// snippetSampler pulls representative indexed chunks for one project
// so the originality judgment sees real code, not just metadata.
func snippetSampler(embedder ports.Embedder, index ports.ChunkIndex, topK int) usecase.SnippetSampler {
	return func(ctx context.Context, runID string, ref domain.ProjectRef) []domain.CodeChunk {
		query := ref.RepoFull
		if query == "" {
			query = ref.Name
		}
		vector, err := embedder.EmbedQuery(ctx, "representative code from "+query)
		if err != nil {
			return nil
		}
		chunks, err := index.Search(ctx, runID, vector, topK)
		if err != nil {
			return nil
		}
		repo := strings.ToLower(ref.RepoFull)
		var out []domain.CodeChunk
		for _, chunk := range chunks {
			if repo == "" || strings.ToLower(chunk.Repo) == repo {
				out = append(out, chunk)
			}
		}
		return out
	}
}
