package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uitchat/admissions-rag/internal/bootstrap"
	"github.com/uitchat/admissions-rag/internal/config"
	"github.com/uitchat/admissions-rag/internal/core/domain"
	"github.com/uitchat/admissions-rag/internal/observability/logging"
	"github.com/uitchat/admissions-rag/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", workerMetrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		addr := ":" + cfg.WorkerMetricsPort
		logger.Info("worker metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server error", "error", err)
		}
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIngestJobs(ctx, func(handlerCtx context.Context, job domain.IngestJob) error {
		jobCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Minute)
		defer cancel()

		workerMetrics.StartIngest()
		start := time.Now()
		report, err := app.IngestUC.IngestFile(jobCtx, job)

		indexed := 0
		if report != nil {
			indexed = report.Indexed
		}
		workerMetrics.FinishIngest("worker", time.Since(start), indexed, err)

		if err != nil {
			logger.Error("ingest job failed", "path", job.Path, "error", err)
			return err
		}
		logger.Info("ingest job done",
			"path", job.Path,
			"total", report.Total,
			"indexed", report.Indexed,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
