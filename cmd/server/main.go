package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	h "github.com/avoronkov/mediafetch/internal/api/http"
	"github.com/avoronkov/mediafetch/internal/cleanup"
	cfgpkg "github.com/avoronkov/mediafetch/internal/config"
	"github.com/avoronkov/mediafetch/internal/extract"
	"github.com/avoronkov/mediafetch/internal/service"
	"github.com/avoronkov/mediafetch/internal/storage"
	"github.com/avoronkov/mediafetch/internal/transcode"
	"github.com/avoronkov/mediafetch/internal/worker"
)

func main() {

	cfg, err := cfgpkg.Load()
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			slog.Error("failed to prepare working directories", "error", err)
		} else {
			slog.Error("failed to load configuration", "error", err)
		}
		os.Exit(1)
	}

	cfgpkg.SetupLogger(cfg)
	slog.Info("configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	extract.Bootstrap(ctx)

	taskStore, err := storage.NewTaskStore(cfg.StateFile)
	if err != nil {
		slog.Error("failed to initialize task store", "error", err)
		os.Exit(1)
	}
	fileRegistry := storage.NewFileRegistry()

	engine := extract.NewYTDLPEngine(slog.Default())
	infoCache := extract.NewInfoCache(engine, cfg.InfoCacheTTL)
	transcoder := transcode.NewFFmpeg(slog.Default())

	downloadWorker := worker.NewDownloadWorker(
		taskStore,
		fileRegistry,
		engine,
		transcoder,
		cfg.DownloadDir,
		slog.Default(),
	)
	taskService := service.NewTaskService(
		taskStore,
		fileRegistry,
		infoCache,
		engine,
		downloadWorker,
		slog.Default(),
	)

	sweeper := cleanup.NewSweeper(
		taskStore,
		fileRegistry,
		infoCache,
		cfg.SweepInterval,
		cfg.RetentionWindow,
		slog.Default(),
	)
	sweeper.Start()

	router := h.NewRouter(taskService, slog.Default())
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	go func() {
		slog.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sweeper.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	} else {
		slog.Info("server stopped gracefully")
	}

	if err := taskService.Shutdown(shutdownCtx); err != nil {
		slog.Warn("workers still running at exit", "error", err)
	}
}
