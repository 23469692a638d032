// Command ingest loads a QA dataset file into the search index directly,
// without going through the queue. Useful for initial seeding.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/uitchat/admissions-rag/internal/config"
	"github.com/uitchat/admissions-rag/internal/core/domain"
	"github.com/uitchat/admissions-rag/internal/core/ports"
	"github.com/uitchat/admissions-rag/internal/core/usecase"
	"github.com/uitchat/admissions-rag/internal/infrastructure/dataset"
	openaillm "github.com/uitchat/admissions-rag/internal/infrastructure/llm/openai"
	"github.com/uitchat/admissions-rag/internal/infrastructure/search/elastic"
	"github.com/uitchat/admissions-rag/internal/observability/logging"
)

func main() {
	path := flag.String("file", "data/train.csv", "dataset file to ingest")
	recreate := flag.Bool("recreate", false, "drop and recreate the index first")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("ingest", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := openaillm.NewEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel)
	if err != nil {
		log.Fatalf("init embedder: %v", err)
	}
	index := elastic.New(cfg.ElasticURL, cfg.ElasticIndex,
		cfg.RetrievalLexicalBoost, cfg.RetrievalVectorBoost, cfg.EmbeddingDimension)

	readers := map[string]ports.DatasetReader{
		".csv":  dataset.NewCSVReader(),
		".xlsx": dataset.NewXLSXReader(),
	}
	ingestUC := usecase.NewIngestUseCase(readers, embedder, index, cfg.EmbeddingBatchSize, logger)

	report, err := ingestUC.IngestFile(ctx, domain.IngestJob{Path: *path, Recreate: *recreate})
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}
	logger.Info("ingest finished",
		"path", *path,
		"total", report.Total,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
}
