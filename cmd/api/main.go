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

	httpadapter "github.com/uitchat/admissions-rag/internal/adapters/http"
	"github.com/uitchat/admissions-rag/internal/bootstrap"
	"github.com/uitchat/admissions-rag/internal/config"
	"github.com/uitchat/admissions-rag/internal/observability/logging"
	"github.com/uitchat/admissions-rag/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(
		app.ChatUC,
		app.RetrievalUC,
		app.Queue,
		map[string]httpadapter.Pinger{
			"postgres": app.Store,
			"elastic":  app.Index,
		},
		serverMetrics,
		httpadapter.RouterConfig{
			Service:           "api",
			RateLimitEnabled:  cfg.RateLimitEnabled,
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   time.Duration(cfg.RateLimitWindowS) * time.Second,
		},
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
}
