// Agent Bus server - brokers clarification dialogue, task matching, and
// message delivery between requesters and processors.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/agentbus/core/pkg/api"
	"github.com/agentbus/core/pkg/backend"
	"github.com/agentbus/core/pkg/blobstore"
	"github.com/agentbus/core/pkg/broker"
	"github.com/agentbus/core/pkg/busevents"
	"github.com/agentbus/core/pkg/cache"
	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/dialogue"
	"github.com/agentbus/core/pkg/discovery"
	"github.com/agentbus/core/pkg/evaluator"
	"github.com/agentbus/core/pkg/health"
	"github.com/agentbus/core/pkg/httpprober"
	"github.com/agentbus/core/pkg/intake"
	"github.com/agentbus/core/pkg/llm"
	"github.com/agentbus/core/pkg/matching"
	"github.com/agentbus/core/pkg/prompt"
	"github.com/agentbus/core/pkg/queue"
	"github.com/agentbus/core/pkg/store"
	"github.com/agentbus/core/pkg/taskstate"
	"github.com/agentbus/core/pkg/vectorindex"
	"github.com/agentbus/core/pkg/workflow"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	cfg, err := config.Initialize(filepath.Join(*configDir, "agentbus.yaml"))
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	logLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	gin.SetMode(getEnv("GIN_MODE", "release"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeClient, err := store.NewClient(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("Failed to connect to store: %v", err)
	}
	defer storeClient.Close()
	taskStore := store.NewTaskStore(storeClient)
	processorStore := store.NewProcessorStore(storeClient)
	slog.Info("connected to task/processor store")

	vectorClient, err := vectorindex.NewClient(ctx, cfg.VectorIndex)
	if err != nil {
		log.Fatalf("Failed to connect to vector index: %v", err)
	}
	defer vectorClient.Close()
	vectorIndex := vectorindex.NewIndex(vectorClient)

	blobStore, err := blobstore.New(ctx, cfg.BlobStore)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	cacheClient := cache.New(cfg.Cache)
	if err := cacheClient.Ping(ctx); err != nil {
		log.Fatalf("Failed to reach cache: %v", err)
	}
	defer cacheClient.Close()

	queueClient := queue.New(cfg.Queue, hostnameOrDefault())
	if err := queueClient.Ping(ctx); err != nil {
		log.Fatalf("Failed to reach queue: %v", err)
	}
	defer queueClient.Close()

	llmClient := llm.New(cfg.LLM)
	prompts := prompt.NewCatalog(filepath.Join(*configDir, "prompts"))
	prober := httpprober.New()
	backendClient := backend.New(cfg.Backend)

	state := taskstate.NewManager(cacheClient, cfg.Cache.TTL)
	engine := dialogue.NewEngine(llmClient, prompts, state, cfg.Matching.MaxClarificationTurns, cfg.Cache.TTL)
	publisher := busevents.NewPublisher(queueClient, cfg.Queue.TaskEventTopic)
	intakeSvc := intake.New(engine, blobStore, state, backendClient, publisher)
	brokerSvc := broker.New(taskStore, queueClient, cfg.Queue.MessageQueueTopic)

	discoverer := discovery.New(processorStore, llmClient, vectorIndex, cfg.Matching)
	healthChecker := health.New(prober, processorStore, cfg.Matching.HealthCheckTimeout)
	evaluatorSvc := evaluator.New(llmClient, llmClient, prompts, cfg.Matching.DefaultMaxCandidates)
	synthesiser := workflow.New(llmClient, prompts)
	matcher := matching.New(taskStore, blobStore, state, backendClient, discoverer, healthChecker,
		evaluatorSvc, synthesiser, cfg.Matching.DisableMultiStepWorkflow, cfg.Matching.DefaultMaxCandidates)

	consumer := matching.NewConsumer(queueClient, cfg.Queue.TaskEventTopic, matcher)
	consumer.Start(ctx)
	defer consumer.Stop()

	server := api.NewServer(intakeSvc, brokerSvc, state, matcher)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Handler(),
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during http shutdown", "error", err)
	}
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "agentbus-worker"
	}
	return h
}
