package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Venue  string
}

// TradeLogStore persists swap logs received by the sink.
type TradeLogStore interface {
	Insert(ctx context.Context, log TradeLog) (TradeLog, error)
	List(ctx context.Context, opts ListOpts) ([]TradeLog, error)
	Count(ctx context.Context) (int64, error)
}

// TradeLogArchiveSource is the side of a trade-log store the archiver
// drains: oldest records received before a cutoff, then their deletion.
type TradeLogArchiveSource interface {
	ListReceivedBefore(ctx context.Context, before time.Time, limit int) ([]TradeLog, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
}

// ExecutionStore persists settlement attempts for audit.
type ExecutionStore interface {
	Create(ctx context.Context, exec Execution) error
	GetByID(ctx context.Context, id string) (Execution, error)
	ListRecent(ctx context.Context, limit int) ([]Execution, error)
}
