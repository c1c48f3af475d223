// Package memory holds the sink's default trade-log storage: a process-local
// list that is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// TradeLogStore implements domain.TradeLogStore in memory.
type TradeLogStore struct {
	mu     sync.RWMutex
	logs   []domain.TradeLog
	nextID int64
	now    func() time.Time
}

// NewTradeLogStore creates an empty TradeLogStore.
func NewTradeLogStore() *TradeLogStore {
	return &TradeLogStore{
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Insert stores log and returns it with its ID and receive time set.
func (s *TradeLogStore) Insert(_ context.Context, log domain.TradeLog) (domain.TradeLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.ID = s.nextID
	log.ReceivedAt = s.now()
	s.nextID++
	s.logs = append(s.logs, log)
	return log, nil
}

// List returns stored logs newest first, filtered by venue when set.
func (s *TradeLogStore) List(_ context.Context, opts domain.ListOpts) ([]domain.TradeLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TradeLog, 0, min(len(s.logs), max(opts.Limit, 0)))
	skipped := 0
	for i := len(s.logs) - 1; i >= 0; i-- {
		l := s.logs[i]
		if opts.Venue != "" && l.Venue != opts.Venue {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		out = append(out, l)
	}
	return out, nil
}

// Count returns the number of stored logs.
func (s *TradeLogStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.logs)), nil
}

var _ domain.TradeLogStore = (*TradeLogStore)(nil)
