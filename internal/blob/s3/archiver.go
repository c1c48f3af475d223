package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

const (
	defaultBatchSize = 5000

	// Batches larger than this go through the multipart uploader.
	multipartThreshold = 8 << 20
	multipartPartSize  = 8 << 20

	jsonlContentType = "application/x-ndjson"
)

// TradeLogArchiver implements domain.Archiver. It drains trade logs older
// than the cutoff in id order, uploads each batch as one JSONL object and
// deletes the batch only after the upload succeeded.
type TradeLogArchiver struct {
	writer    domain.BlobWriter
	source    domain.TradeLogArchiveSource
	batchSize int
	logger    *slog.Logger
}

// NewTradeLogArchiver creates a TradeLogArchiver. batchSize <= 0 uses the
// default.
func NewTradeLogArchiver(writer domain.BlobWriter, source domain.TradeLogArchiveSource, batchSize int, logger *slog.Logger) *TradeLogArchiver {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &TradeLogArchiver{
		writer:    writer,
		source:    source,
		batchSize: batchSize,
		logger:    logger.With(slog.String("component", "s3_archiver")),
	}
}

// ArchiveTradeLogs moves every trade log received before the cutoff to
// object storage and returns how many were moved. On error the count covers
// the batches already uploaded and deleted.
func (a *TradeLogArchiver) ArchiveTradeLogs(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for {
		batch, err := a.source.ListReceivedBefore(ctx, before, a.batchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive trade logs query: %w", err)
		}
		if len(batch) == 0 {
			return total, nil
		}

		path := archivePath(batch[0])
		if err := a.upload(ctx, path, batch); err != nil {
			return total, err
		}

		ids := make([]int64, len(batch))
		for i, l := range batch {
			ids[i] = l.ID
		}
		deleted, err := a.source.DeleteByIDs(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive trade logs delete after upload to %s: %w", path, err)
		}
		total += deleted

		a.logger.Info("trade log batch archived",
			slog.String("path", path),
			slog.Int("records", len(batch)),
		)

		if len(batch) < a.batchSize {
			return total, nil
		}
	}
}

func (a *TradeLogArchiver) upload(ctx context.Context, path string, batch []domain.TradeLog) error {
	buf, err := marshalJSONL(batch)
	if err != nil {
		return fmt.Errorf("s3blob: archive trade logs marshal: %w", err)
	}
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), multipartPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return fmt.Errorf("s3blob: archive trade logs upload: %w", err)
	}
	return nil
}

// archivePath partitions objects by the UTC day the first record of the
// batch was received:
//
//	trade-logs/2026/01/02/1767323045-42.jsonl
func archivePath(first domain.TradeLog) string {
	t := first.ReceivedAt.UTC()
	return fmt.Sprintf("trade-logs/%s/%d-%d.jsonl", t.Format("2006/01/02"), t.Unix(), first.ID)
}

// marshalJSONL encodes one compact JSON value per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*TradeLogArchiver)(nil)
