package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

type memWriter struct {
	objects   map[string][]byte
	multipart int
	failPut   error
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.failPut != nil {
		return w.failPut
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = b
	return nil
}

func (w *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	w.multipart++
	return w.Put(ctx, path, data, "")
}

type memSource struct {
	logs    []domain.TradeLog
	deletes [][]int64
}

func (s *memSource) ListReceivedBefore(_ context.Context, before time.Time, limit int) ([]domain.TradeLog, error) {
	var out []domain.TradeLog
	for _, l := range s.logs {
		if l.ReceivedAt.Before(before) && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memSource) DeleteByIDs(_ context.Context, ids []int64) (int64, error) {
	s.deletes = append(s.deletes, ids)
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.logs[:0]
	for _, l := range s.logs {
		if !drop[l.ID] {
			kept = append(kept, l)
		}
	}
	n := int64(len(s.logs) - len(kept))
	s.logs = kept
	return n, nil
}

func seed(n int, at time.Time) []domain.TradeLog {
	logs := make([]domain.TradeLog, n)
	for i := range logs {
		logs[i] = domain.TradeLog{
			ID:           int64(i + 1),
			Venue:        "uniswap",
			BlockNumber:  uint64(100 + i),
			SqrtPriceX96: "1",
			Amount0:      "2",
			Amount1:      "3",
			ReceivedAt:   at.Add(time.Duration(i) * time.Second),
		}
	}
	return logs
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func countLines(t *testing.T, b []byte) int {
	t.Helper()
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var l domain.TradeLog
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
		n++
	}
	return n
}

func TestArchiveTradeLogs_Batches(t *testing.T) {
	received := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	src := &memSource{logs: seed(5, received)}
	w := &memWriter{objects: map[string][]byte{}}
	a := NewTradeLogArchiver(w, src, 2, discard())

	n, err := a.ArchiveTradeLogs(context.Background(), received.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Empty(t, src.logs)
	assert.Len(t, src.deletes, 3)

	require.Len(t, w.objects, 3)
	first, ok := w.objects["trade-logs/2026/01/02/1767323045-1.jsonl"]
	require.True(t, ok)
	assert.Equal(t, 2, countLines(t, first))
	assert.Zero(t, w.multipart)
}

func TestArchiveTradeLogs_RespectsCutoff(t *testing.T) {
	received := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	src := &memSource{logs: seed(3, received)}
	w := &memWriter{objects: map[string][]byte{}}
	a := NewTradeLogArchiver(w, src, 10, discard())

	n, err := a.ArchiveTradeLogs(context.Background(), received.Add(1500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.Len(t, src.logs, 1)
	assert.Equal(t, int64(3), src.logs[0].ID)
}

func TestArchiveTradeLogs_NothingToDo(t *testing.T) {
	w := &memWriter{objects: map[string][]byte{}}
	a := NewTradeLogArchiver(w, &memSource{}, 10, discard())

	n, err := a.ArchiveTradeLogs(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.objects)
}

func TestArchiveTradeLogs_UploadFailureKeepsRecords(t *testing.T) {
	received := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	src := &memSource{logs: seed(3, received)}
	w := &memWriter{objects: map[string][]byte{}, failPut: errors.New("bucket gone")}
	a := NewTradeLogArchiver(w, src, 10, discard())

	n, err := a.ArchiveTradeLogs(context.Background(), received.Add(time.Hour))
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Len(t, src.logs, 3)
	assert.Empty(t, src.deletes)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example", normaliseEndpoint("https://s3.example", false))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("localhost:9000", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
}
