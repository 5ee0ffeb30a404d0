package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ahmethakanbesel/socpanel/internal/config"
	"github.com/ahmethakanbesel/socpanel/internal/job"
	"github.com/ahmethakanbesel/socpanel/internal/platform/sqlite"
	jobrepo "github.com/ahmethakanbesel/socpanel/internal/repository/job"
	"github.com/ahmethakanbesel/socpanel/internal/server"
)

func main() {
	cfg := config.LoadServer()

	// Root context: cancelled on SIGINT/SIGTERM so in-flight exports stop
	// promptly during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	repo := jobrepo.NewRepository(db.DB)
	exportDir := filepath.Join(cfg.StorageDir, "export")

	jobSvc := job.NewService(repo, repo, exportDir)
	materializer := job.NewMaterializer(repo, repo, exportDir,
		job.WithDelay(cfg.MaterializeDelay),
		job.WithFailingPolls(cfg.FailPolls...),
	)

	// Worker pool: materializes queued exports in the background
	pool := job.NewWorkerPool(repo, materializer, cfg.Workers)
	jobSvc.SetNotify(pool.Notify)
	poolDone := make(chan struct{})
	go func() {
		pool.Run(rootCtx)
		close(poolDone)
	}()

	// Re-queue exports interrupted by the last shutdown.
	if err := jobSvc.RecoverStaleJobs(rootCtx); err != nil {
		slog.Error("failed to recover stale jobs", "error", err)
	}
	pool.Notify()

	srv := server.New(rootCtx, cfg.Port, jobSvc, server.AuthConfig{
		Login:     cfg.Login,
		Password:  cfg.Password,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server started", "port", cfg.Port, "storage", exportDir)
	<-done

	// Cancel root context first so in-flight requests and exports begin
	// winding down immediately.
	rootCancel()

	// Wait for worker pool to drain before shutting down HTTP.
	<-poolDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}
