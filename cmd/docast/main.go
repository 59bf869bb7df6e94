package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/docast/internal/ai"
	"github.com/xxxsen/docast/internal/config"
	"github.com/xxxsen/docast/internal/db"
	"github.com/xxxsen/docast/internal/embedding"
	"github.com/xxxsen/docast/internal/handler"
	"github.com/xxxsen/docast/internal/job"
	"github.com/xxxsen/docast/internal/middleware"
	"github.com/xxxsen/docast/internal/objstore"
	"github.com/xxxsen/docast/internal/repo"
	"github.com/xxxsen/docast/internal/schedule"
	"github.com/xxxsen/docast/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docast",
		Short: "docast document intelligence server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run docast server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("object_store", cfg.ObjectStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	registryRepo := repo.NewRegistryRepo(database)
	artifactRepo := repo.NewArtifactRepo(database)
	embeddingCacheRepo := repo.NewEmbeddingCacheRepo(database)

	store, err := objstore.New(cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}

	providerArgs := cfg.AI.Data
	aiProvider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	generator := ai.NewGenerator(aiProvider, cfg.AI.ChatModel)
	var speaker ai.ISpeaker
	if cfg.AI.SpeechModel != "" {
		speaker = ai.NewSpeaker(aiProvider, cfg.AI.SpeechModel, cfg.AI.SpeechVoice)
	}

	// Embedding chain, nearest first: process LRU, durable db cache,
	// then the provider itself.
	baseEmbedder := ai.NewEmbedder(aiProvider, cfg.AI.EmbedModel)
	cachedEmbedder := embedding.WrapDBCache(baseEmbedder, embeddingCacheRepo)
	cachedEmbedder = embedding.WrapLRU(cachedEmbedder, cfg.AI.CacheSize, time.Duration(cfg.AI.CacheTTLSec)*time.Second)
	batcher := embedding.NewBatcher(
		cachedEmbedder,
		cfg.Ingest.EmbedBatchSize,
		cfg.Ingest.EmbedRetry,
		time.Duration(cfg.Ingest.EmbedRetryWait)*time.Second,
		time.Duration(cfg.AI.TimeoutSec)*time.Second,
		cfg.Ingest.Concurrency,
		cfg.AI.MaxInputChars,
	)

	ingestService := service.NewIngestService(registryRepo, store, batcher, cfg.Ingest.ChunkMaxChars, cfg.Ingest.Concurrency)
	retrieveService := service.NewRetrieveService(registryRepo, store, batcher, cfg.Ingest.Concurrency)
	queryService := service.NewQueryService(
		retrieveService,
		generator,
		cfg.Synthesis.RetrieveTopK,
		cfg.AI.CacheSize,
		time.Duration(cfg.AI.CacheTTLSec)*time.Second,
	)
	podcastService := service.NewPodcastService(registryRepo, store, retrieveService, artifactRepo, generator, speaker, service.PodcastConfig{
		QuestionCount:  cfg.Synthesis.QuestionCount,
		MinScriptChars: cfg.Synthesis.MinScriptChars,
		JobTimeout:     time.Duration(cfg.Synthesis.JobTimeoutSec) * time.Second,
		RetrieveTopK:   cfg.Synthesis.RetrieveTopK,
		Concurrency:    cfg.Synthesis.Concurrency,
		ContextPreview: cfg.Synthesis.ContextPreview,
	})

	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(ingestService, cfg.UploadLimitByte),
		Queries:   handler.NewQueryHandler(queryService),
		Podcasts:  handler.NewPodcastHandler(podcastService, store),
		Files:     handler.NewFileHandler(store),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	_ = scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(embeddingCacheRepo, 30), "17 3 * * *")
	_ = scheduler.AddJob(job.NewArtifactCleanupJob(artifactRepo, cfg.Synthesis.ArtifactKeepDay), "43 4 * * *")
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
