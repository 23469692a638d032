package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/uitchat/admissions-rag/internal/core/domain"
	"github.com/uitchat/admissions-rag/internal/core/ports"
)

var errNoReaderForExtension = errors.New("no dataset reader for file extension")

// IngestUseCase loads a QA dataset file, embeds the questions in batches and
// bulk-indexes the records. Records without a question are skipped; a failed
// batch is counted and skipped so one bad batch cannot sink a whole file.
type IngestUseCase struct {
	readers   map[string]ports.DatasetReader
	encoder   ports.QueryEncoder
	index     ports.SearchIndex
	batchSize int
	logger    *slog.Logger
}

func NewIngestUseCase(readers map[string]ports.DatasetReader, encoder ports.QueryEncoder, index ports.SearchIndex, batchSize int, logger *slog.Logger) *IngestUseCase {
	if batchSize <= 0 {
		batchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{readers: readers, encoder: encoder, index: index, batchSize: batchSize, logger: logger}
}

func (uc *IngestUseCase) IngestFile(ctx context.Context, job domain.IngestJob) (*domain.IngestReport, error) {
	ext := strings.ToLower(filepath.Ext(job.Path))
	reader, ok := uc.readers[ext]
	if !ok {
		return nil, domain.WrapError(domain.ErrValidation, "ingest file",
			fmt.Errorf("%w: %q", errNoReaderForExtension, ext))
	}

	records, err := reader.Read(job.Path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "read dataset", err)
	}

	if err := uc.index.EnsureIndex(ctx, job.Recreate); err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "ensure index", err)
	}

	report := &domain.IngestReport{Total: len(records)}
	valid := records[:0:0]
	for _, rec := range records {
		if strings.TrimSpace(rec.Question) == "" {
			report.Skipped++
			continue
		}
		valid = append(valid, rec)
	}

	for start := 0; start < len(valid); start += uc.batchSize {
		end := min(start+uc.batchSize, len(valid))
		batch := valid[start:end]

		if err := ctx.Err(); err != nil {
			return report, err
		}
		indexed, err := uc.ingestBatch(ctx, batch)
		if err != nil {
			uc.logger.Error("batch ingest failed", "offset", start, "size", len(batch), "error", err)
			report.Failed += len(batch)
			continue
		}
		report.Indexed += indexed
		report.Failed += len(batch) - indexed
	}

	uc.logger.Info("dataset ingested",
		"path", job.Path,
		"total", report.Total,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (uc *IngestUseCase) ingestBatch(ctx context.Context, batch []domain.QARecord) (int, error) {
	texts := make([]string, len(batch))
	for i, rec := range batch {
		texts[i] = rec.Question
	}
	vectors, err := uc.encoder.Encode(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("encode batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return 0, fmt.Errorf("got %d vectors for %d records", len(vectors), len(batch))
	}
	return uc.index.BulkIndex(ctx, batch, vectors)
}
