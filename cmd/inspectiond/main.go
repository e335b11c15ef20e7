package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/inspection-extractor/internal/api"
	"github.com/joseph-ayodele/inspection-extractor/internal/app"
	"github.com/joseph-ayodele/inspection-extractor/internal/async"
	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/export"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
	"github.com/joseph-ayodele/inspection-extractor/internal/ingest"
	"github.com/joseph-ayodele/inspection-extractor/internal/pipeline"
	"github.com/joseph-ayodele/inspection-extractor/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := app.NewLogger(os.Stdout, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := app.OpenDatabase(ctx, cfg, false, logger)
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}
	defer db.Cleanup()
	if err := db.DB.HealthCheck(ctx, 3*time.Second, logger); err != nil {
		logger.Error("database health failed", "error", err)
		os.Exit(1)
	}

	source, closer, err := app.NewPageSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("ocr init failed", "engine", cfg.OCR.Engine, "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	validator, err := extract.NewRecordValidator(nil)
	if err != nil {
		logger.Error("record schema failed to compile", "error", err)
		os.Exit(1)
	}
	proc := pipeline.NewProcessor(logger, source, nil, validator, db.Runs, db.Records)
	exporter := export.NewService(db.Runs, db.Records, nil, logger)

	// gRPC
	grpcServer, hs := server.NewGRPCServer(server.NewExtractorService(proc, logger), logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("grpc listen failed", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("gRPC serving", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve", "error", err)
			stop()
		}
	}()

	// HTTP
	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: api.NewServer(proc, exporter, logger, api.Config{
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
			SheetName:      cfg.Export.SheetName,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP serving", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	// Background queue, fed by the directory watcher when one is configured.
	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)
	if cfg.Queue.WatchDir != "" {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Queue.WatchDir},
			InitialScan: true,
			SkipHidden:  true,
			Debounce:    cfg.Queue.WatchDebounce,
		}, logger)
		if err != nil {
			logger.Error("watcher start failed", "dir", cfg.Queue.WatchDir, "error", err)
			os.Exit(1)
		}
		go func() {
			for err := range errs {
				logger.Warn("watcher error", "error", err)
			}
		}()
		go ingest.Feed(ctx, events, queue, logger)
		logger.Info("watching directory", "dir", cfg.Queue.WatchDir)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	hs.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
