// Package commands implements the witsync command line.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloo-solutions/witsync/internal/checkpoint"
	"github.com/cloo-solutions/witsync/internal/config"
	"github.com/cloo-solutions/witsync/internal/database"
	"github.com/cloo-solutions/witsync/internal/devops"
	"github.com/cloo-solutions/witsync/internal/normalize"
	"github.com/cloo-solutions/witsync/internal/openai"
	"github.com/cloo-solutions/witsync/internal/repository"
	"github.com/cloo-solutions/witsync/internal/service"
	"github.com/cloo-solutions/witsync/internal/storage"
	"github.com/cloo-solutions/witsync/internal/storage/bolt"
	"github.com/cloo-solutions/witsync/internal/telemetry"
	"github.com/spf13/cobra"
)

// app holds the dependencies shared by commands. Fields are filled lazily by
// the open* methods and released by close.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store    service.VectorStore
	txRunner service.StoreTxRunner
	runs     service.SyncRunRepository

	closers []func()
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := applyGlobalFlags(cmd, cfg); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	return &app{cfg: cfg, logger: logger}, nil
}

func applyGlobalFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store, _ = flags.GetString("store")
	}
	if flags.Changed("bolt-path") {
		cfg.BoltPath, _ = flags.GetString("bolt-path")
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL, _ = flags.GetString("database-url")
	}
	if flags.Changed("mode") {
		cfg.ReconcileMode, _ = flags.GetString("mode")
	}
	return cfg.Validate()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) initTelemetry() {
	sampleRate := 0.1
	if a.cfg.Environment == "development" {
		sampleRate = 1.0
	}
	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              a.cfg.SentryDSN,
		Environment:      a.cfg.Environment,
		TracesSampleRate: sampleRate,
	})
	if err != nil {
		a.logger.Warn("telemetry init failed, continuing without tracing", "error", err)
		return
	}
	a.closers = append(a.closers, shutdown)
}

// openStore connects the configured vector store. With migrate set, pending
// postgres migrations are applied first.
func (a *app) openStore(ctx context.Context, migrate bool) error {
	if a.store != nil {
		return nil
	}

	if !a.cfg.UsePostgres() {
		store, err := bolt.Open(a.cfg.BoltPath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		a.store, a.txRunner, a.runs = store, store, store.Runs()
		a.logger.Debug("opened bolt store", "path", a.cfg.BoltPath)
		return nil
	}

	if migrate {
		if err := database.MigrateUp(a.cfg.DatabaseURL, a.logger); err != nil {
			return err
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: a.cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	a.store = repository.NewChunkRepository(pool)
	a.txRunner = repository.NewTxRunner(pool)
	a.runs = repository.NewSyncRunRepository(pool)
	a.logger.Debug("connected to database")
	return nil
}

// source returns the file replay source when input is set, otherwise the
// Azure DevOps client.
func (a *app) source(input string) (service.ItemSource, error) {
	if input != "" {
		return checkpoint.OpenFileSource(input)
	}
	if !a.cfg.HasDevOps() {
		return nil, fmt.Errorf("devops is not configured: set %s or pass --input", "WITSYNC_DEVOPS_ORG, WITSYNC_DEVOPS_PROJECT and WITSYNC_DEVOPS_PAT")
	}
	return a.devopsClient()
}

func (a *app) devopsClient() (*devops.Client, error) {
	return devops.NewClient(devops.Config{
		BaseURL: a.cfg.DevOpsBaseURL,
		Org:     a.cfg.DevOpsOrg,
		Project: a.cfg.DevOpsProject,
		PAT:     a.cfg.DevOpsPAT,
		Logger:  a.logger,
	})
}

func (a *app) recordBuilder() (*service.RecordBuilder, error) {
	mentions := normalize.DefaultMentionDirectory()
	if a.cfg.MentionsFile != "" {
		loaded, err := normalize.LoadMentionDirectory(a.cfg.MentionsFile)
		if err != nil {
			return nil, err
		}
		mentions = loaded
		a.logger.Debug("loaded mention directory", "path", a.cfg.MentionsFile, "entries", mentions.Len())
	}

	var opts []normalize.Option
	if a.cfg.AttachmentPlaceholders {
		opts = append(opts, normalize.WithAttachmentPlaceholders())
	}

	return service.NewRecordBuilder(normalize.New(mentions, opts...), service.ChunkConfig{
		MainWords:    a.cfg.MainChunkWords,
		CommentWords: a.cfg.CommentChunkWords,
	}), nil
}

// reconciler requires openStore to have succeeded.
func (a *app) reconciler(embed bool) (*service.Reconciler, error) {
	mode, err := service.ParseReconcileMode(a.cfg.ReconcileMode)
	if err != nil {
		return nil, err
	}

	opts := []service.ReconcileOption{
		service.WithMode(mode),
		service.WithStoreTx(a.txRunner),
		service.WithReconcileLogger(a.logger),
	}

	if embed {
		if !a.cfg.HasOpenAI() {
			return nil, fmt.Errorf("embeddings requested but WITSYNC_OPENAI_API_KEY is not set")
		}
		embedder, err := openai.NewClient(openai.Config{
			APIKey:              a.cfg.OpenAIAPIKey,
			EmbeddingModel:      a.cfg.EmbeddingModel,
			EmbeddingDimensions: a.cfg.EmbeddingDimensions,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithEmbedder(embedder))
	}

	return service.NewReconciler(a.store, opts...), nil
}

func (a *app) checkpointSink(ctx context.Context) (service.CheckpointSink, error) {
	if a.cfg.CheckpointDir == "" {
		return nil, nil
	}

	var archiver checkpoint.Archiver
	if a.cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        a.cfg.S3Endpoint,
			Region:          a.cfg.S3Region,
			AccessKeyID:     a.cfg.S3AccessKey,
			SecretAccessKey: a.cfg.S3SecretKey,
			Bucket:          a.cfg.S3Bucket,
			Prefix:          a.cfg.S3Prefix,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		a.logger.Info("checkpoint archive ready", "bucket", a.cfg.S3Bucket)
		archiver = s3Client
	}

	return checkpoint.NewWriter(a.cfg.CheckpointDir, archiver, a.logger), nil
}

// syncService wires a SyncService for source; openStore must have run.
func (a *app) syncService(ctx context.Context, source service.ItemSource, embed bool) (*service.SyncService, error) {
	builder, err := a.recordBuilder()
	if err != nil {
		return nil, err
	}
	reconciler, err := a.reconciler(embed)
	if err != nil {
		return nil, err
	}

	opts := []service.SyncOption{
		service.WithLookback(a.cfg.SyncLookback),
		service.WithInitialSince(a.cfg.InitialSinceTime()),
		service.WithRunRepository(a.runs),
		service.WithSyncLogger(a.logger),
	}

	sink, err := a.checkpointSink(ctx)
	if err != nil {
		return nil, err
	}
	if sink != nil {
		opts = append(opts, service.WithCheckpoint(sink))
	}

	return service.NewSyncService(source, builder, service.NewWatermarkTracker(a.store), reconciler, opts...), nil
}
