package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/witsync/internal/api/handlers"
	"github.com/cloo-solutions/witsync/internal/jobs"
	"github.com/cloo-solutions/witsync/internal/server"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sync API server and scheduler",
		Long: "Serve the watermark, sync trigger and run history endpoints, and run an incremental sync " +
			"every --interval unless --no-worker is set.",
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (default WITSYNC_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Duration("interval", 0, "Sync interval (default WITSYNC_SYNC_INTERVAL)")
	cmd.Flags().Bool("no-worker", false, "Do not schedule syncs; only serve the API")
	cmd.Flags().Bool("embed", false, "Compute embeddings with OpenAI before storing")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	defer a.close()
	a.initTelemetry()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		a.cfg.Port = port
	}
	interval := a.cfg.SyncInterval
	if flagInterval, _ := cmd.Flags().GetDuration("interval"); flagInterval > 0 {
		interval = flagInterval
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if err := a.openStore(ctx, !noMigrate); err != nil {
		return err
	}

	source, err := a.source("")
	if err != nil {
		return err
	}

	embed, _ := cmd.Flags().GetBool("embed")
	svc, err := a.syncService(ctx, source, embed)
	if err != nil {
		return err
	}

	router := server.NewRouter(server.RouterConfig{
		SyncHandler: handlers.NewSyncHandler(svc),
		Logger:      a.logger,
	})

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var worker *jobs.Worker
	if noWorker, _ := cmd.Flags().GetBool("no-worker"); !noWorker {
		worker = jobs.NewWorker(jobs.NewSyncJob(svc, a.logger), interval,
			jobs.WithRunOnStart(),
			jobs.WithWorkerLogger(a.logger),
		)
		go worker.Start(ctx)
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", "port", a.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.logger.Info("server exited")
	return nil
}
