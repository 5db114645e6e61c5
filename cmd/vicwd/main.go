// Command vicwd is the VICW daemon: it wires every component from
// configuration and serves the HTTP surface, following a standard bootstrap
// shape (load env -> init logger -> init tracing -> wire backends -> serve
// -> graceful shutdown on signal).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"vicw/internal/analytics"
	"vicw/internal/chunkstore"
	"vicw/internal/coldworker"
	"vicw/internal/config"
	"vicw/internal/contextmgr"
	"vicw/internal/embedder"
	"vicw/internal/graphstore"
	"vicw/internal/httpapi"
	"vicw/internal/llmclient"
	"vicw/internal/observability"
	"vicw/internal/offloadqueue"
	"vicw/internal/orchestrator"
	"vicw/internal/retrieval"
	"vicw/internal/semantic"
	"vicw/internal/session"
	"vicw/internal/tokenizer"
	"vicw/internal/vectorindex"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, shutdownTracing, err := observability.InitTracing(ctx, "dev")
	if err != nil {
		log.Warn().Err(err).Msg("tracing init failed, continuing without spans")
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	deps, err := wireBackends(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire backends")
	}
	defer deps.Close()

	registry := session.NewRegistry(session.Factory{
		PinnedHeader: pinnedHeader(),
		Config: contextmgr.Config{
			TMax: cfg.TMax, ThetaTrigger: cfg.ThetaTrigger, ThetaTarget: cfg.ThetaTarget, ThetaResume: cfg.ThetaResume,
			StateCaps: contextmgr.StateCaps{
				Goal: cfg.StateCaps.Goal, Task: cfg.StateCaps.Task,
				Decision: cfg.StateCaps.Decision, Fact: cfg.StateCaps.Fact,
			},
			RecentlyCompletedCap: cfg.RecentlyCompletedCap,
			BoredomThreshold:     cfg.BoredomThreshold,
			BoredomEnabled:       cfg.BoredomEnabled,
			StateTrackingEnabled: cfg.StateTrackingEnabled,
		},
		Tokenizer:    tokenizer.Default,
		Queue:        deps.Queue,
		Graph:        deps.Graph,
		EchoRingSize: cfg.EchoRingSize,
	})

	semanticMgr := semantic.NewManager(semantic.Config{
		LeadSentences:        cfg.SummaryLeadSentences,
		TailSentences:        cfg.SummaryTailSentences,
		MaxSummaryTokens:     cfg.SummaryMaxTokens,
		StateTrackingEnabled: cfg.StateTrackingEnabled,
	}, deps.Chunks, deps.Vectors, deps.Graph, deps.Embedder, tokenizer.Default.Estimate)

	pauseSignal := func() bool { return registry.AnyPaused() }
	worker := coldworker.New(deps.Queue, semanticMgr, pauseSignal, cfg.IdleSleep, 8, log.Logger)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	workerAlive := make(chan struct{})
	go func() {
		defer close(workerAlive)
		worker.Run(workerCtx)
	}()
	defer cancelWorker()
	workerRunning := func() bool {
		select {
		case <-workerAlive:
			return false
		default:
			return true
		}
	}

	coord := retrieval.NewCoordinator(deps.Embedder, deps.Vectors, deps.Chunks, deps.Graph, retrieval.Config{
		KSemantic: cfg.SemanticK, KRelational: cfg.RelationalK, SimMin: cfg.SimMin,
	})
	if embedCache, err := retrieval.NewRedisEmbeddingCache(cfg.RedisAddr, "", 0, 10*time.Minute); err != nil {
		log.Warn().Err(err).Msg("redis embedding cache unavailable, continuing without it")
	} else if embedCache != nil {
		coord.WithEmbeddingCache(embedCache)
	}

	trend := analytics.NewRing(500)
	chSink, err := analytics.NewClickHouseSink(ctx, analytics.ClickHouseConfig{DSN: cfg.ClickHouseDSN}, log.Logger)
	if err != nil {
		log.Warn().Err(err).Msg("clickhouse analytics sink unavailable, continuing with in-memory ring only")
		chSink = nil
	}
	sinks := []analytics.Sink{trend}
	if chSink != nil {
		defer chSink.Close()
		sinks = append(sinks, chSink)
	}
	sink := analytics.NewMultiSink(sinks...)

	orch := orchestrator.New(registry, coord, deps.LLM, deps.Embedder, orchestrator.Config{
		Model:         cfg.LLMModel,
		Temperature:   cfg.LLMTemperature,
		EchoThreshold: cfg.EchoSimMax,
		MaxRegenerate: cfg.EchoMaxRetries,
	}, log.Logger)
	orch.WithAnalytics(sink)

	server := httpapi.NewServer(orch, registry, deps.Queue, worker, workerRunning, tokenizer.Default, cfg.LLMModel, log.Logger)
	server.WithTrend(trend)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: server}
	serveErrs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("vicwd listening")
		serveErrs <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serveErrs:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown timed out")
	}
}

func pinnedHeader() string {
	return "You are the assistant for a long-running conversation managed under a bounded token budget. " +
		"Older context may have been summarized into memory and retrieved on demand."
}

// backendDeps bundles the pluggable backends selected by config so main can
// wire them once and pass interfaces everywhere else.
type backendDeps struct {
	Chunks   chunkstore.Store
	Vectors  vectorindex.Store
	Graph    graphstore.Graph
	Embedder embedder.Embedder
	Queue    offloadqueue.Backend
	LLM      llmclient.Provider

	pgPool *pgxpool.Pool
}

func (d *backendDeps) Close() {
	if closer, ok := d.Chunks.(interface{ Close() }); ok {
		closer.Close()
	}
	if closer, ok := d.Graph.(interface{ Close() }); ok {
		closer.Close()
	}
	if d.pgPool != nil {
		d.pgPool.Close()
	}
	if closer, ok := d.Queue.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

func wireBackends(ctx context.Context, cfg config.Config) (*backendDeps, error) {
	deps := &backendDeps{}

	var pgPool *pgxpool.Pool
	needsPostgres := cfg.ChunkStoreKind == "postgres" || cfg.GraphKind == "postgres"
	if needsPostgres {
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres dsn required for chunkstore/graph kind %q/%q", cfg.ChunkStoreKind, cfg.GraphKind)
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pgPool = pool
		deps.pgPool = pool
	}

	switch cfg.ChunkStoreKind {
	case "postgres":
		store := chunkstore.NewPostgres(pgPool)
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("init postgres chunk store: %w", err)
		}
		deps.Chunks = store
	case "s3":
		store, err := chunkstore.NewS3(ctx, chunkstore.S3Config{Bucket: cfg.S3Bucket})
		if err != nil {
			return nil, fmt.Errorf("init s3 chunk store: %w", err)
		}
		deps.Chunks = store
	default:
		deps.Chunks = chunkstore.NewMemory()
	}

	switch cfg.GraphKind {
	case "postgres":
		graph := graphstore.NewPostgres(pgPool)
		if err := graph.Init(ctx); err != nil {
			return nil, fmt.Errorf("init postgres graph: %w", err)
		}
		deps.Graph = graph
	default:
		deps.Graph = graphstore.NewMemory()
	}

	switch cfg.VectorKind {
	case "qdrant":
		vectors, err := vectorindex.NewQdrant(ctx, cfg.QdrantDSN, cfg.QdrantCollection, cfg.EmbeddingDim)
		if err != nil {
			return nil, fmt.Errorf("init qdrant vector index: %w", err)
		}
		deps.Vectors = vectors
	default:
		deps.Vectors = vectorindex.NewMemory(cfg.EmbeddingDim)
	}

	// Config has no dedicated embedding endpoint; reuse the LLM provider's
	// base URL/key since OpenAI-compatible deployments typically serve both
	// chat and embeddings off the same host. Falls back to the
	// dependency-free deterministic embedder when neither is set.
	if cfg.LLMAPIKey != "" || cfg.LLMBaseURL != "" {
		deps.Embedder = embedder.NewHTTP(embedder.HTTPConfig{
			BaseURL: cfg.LLMBaseURL, APIKey: cfg.LLMAPIKey, Timeout: cfg.BackendTimeout,
		}, cfg.EmbeddingDim)
	} else {
		deps.Embedder = embedder.NewDeterministic(cfg.EmbeddingDim, true, 5)
	}

	switch cfg.QueueKind {
	case "redis":
		queue, err := offloadqueue.NewRedis(offloadqueue.RedisConfig{Addr: cfg.RedisAddr, Capacity: cfg.QueueMax})
		if err != nil {
			return nil, fmt.Errorf("init redis offload queue: %w", err)
		}
		deps.Queue = queue
	case "kafka":
		brokers := ""
		for i, a := range cfg.KafkaAddrs {
			if i > 0 {
				brokers += ","
			}
			brokers += a
		}
		queue, err := offloadqueue.NewKafka(offloadqueue.KafkaConfig{
			Brokers: brokers, Topic: cfg.KafkaTopic, GroupID: "vicw-coldworker",
		})
		if err != nil {
			return nil, fmt.Errorf("init kafka offload queue: %w", err)
		}
		deps.Queue = queue
	default:
		deps.Queue = offloadqueue.New(cfg.QueueMax)
	}

	switch cfg.LLMProvider {
	case "anthropic":
		deps.LLM = llmclient.NewAnthropic(llmclient.AnthropicConfig{
			BaseURL: cfg.LLMBaseURL, APIKey: cfg.LLMAPIKey, Timeout: cfg.LLMTimeout, MaxRetries: cfg.LLMMaxRetries,
		}, log.Logger)
	case "gemini":
		llm, err := llmclient.NewGemini(ctx, llmclient.GeminiConfig{
			BaseURL: cfg.LLMBaseURL, APIKey: cfg.LLMAPIKey, Timeout: cfg.LLMTimeout, MaxRetries: cfg.LLMMaxRetries,
		}, log.Logger)
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		deps.LLM = llm
	default:
		deps.LLM = llmclient.NewOpenAI(llmclient.OpenAIConfig{
			BaseURL: cfg.LLMBaseURL, APIKey: cfg.LLMAPIKey, Timeout: cfg.LLMTimeout, MaxRetries: cfg.LLMMaxRetries,
		}, log.Logger)
	}

	return deps, nil
}
