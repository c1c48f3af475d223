package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// TradeLogStore implements domain.TradeLogStore and
// domain.TradeLogArchiveSource using PostgreSQL.
type TradeLogStore struct {
	pool *pgxpool.Pool
}

// NewTradeLogStore creates a TradeLogStore backed by pool.
func NewTradeLogStore(pool *pgxpool.Pool) *TradeLogStore {
	return &TradeLogStore{pool: pool}
}

const tradeLogSelectCols = `id, venue, block_number, block_time,
	sqrt_price_x96::text, amount0::text, amount1::text, received_at`

func scanTradeLogRows(rows pgx.Rows) ([]domain.TradeLog, error) {
	var logs []domain.TradeLog
	for rows.Next() {
		var (
			l            domain.TradeLog
			block, btime int64
		)
		if err := rows.Scan(
			&l.ID, &l.Venue, &block, &btime,
			&l.SqrtPriceX96, &l.Amount0, &l.Amount1, &l.ReceivedAt,
		); err != nil {
			return nil, err
		}
		l.BlockNumber = uint64(block)
		l.Timestamp = uint64(btime)
		l.ReceivedAt = l.ReceivedAt.UTC()
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Insert stores log and returns it with the generated ID and receive time.
// The record must already be validated; the integer strings are cast to
// NUMERIC by the database.
func (s *TradeLogStore) Insert(ctx context.Context, log domain.TradeLog) (domain.TradeLog, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO trade_logs (venue, block_number, block_time, sqrt_price_x96, amount0, amount1)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric)
		RETURNING id, received_at`,
		log.Venue, int64(log.BlockNumber), int64(log.Timestamp),
		log.SqrtPriceX96, log.Amount0, log.Amount1,
	).Scan(&log.ID, &log.ReceivedAt)
	if err != nil {
		return domain.TradeLog{}, fmt.Errorf("postgres: insert trade_log: %w", err)
	}
	log.ReceivedAt = log.ReceivedAt.UTC()
	return log, nil
}

// List returns trade logs newest first with optional venue filtering.
func (s *TradeLogStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.TradeLog, error) {
	query := `SELECT ` + tradeLogSelectCols + ` FROM trade_logs`
	var args []any
	argIdx := 1

	if opts.Venue != "" {
		query += fmt.Sprintf(" WHERE venue = $%d", argIdx)
		args = append(args, opts.Venue)
		argIdx++
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trade_logs: %w", err)
	}
	defer rows.Close()

	logs, err := scanTradeLogRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trade_logs: %w", err)
	}
	return logs, nil
}

// Count returns the number of stored trade logs.
func (s *TradeLogStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trade_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count trade_logs: %w", err)
	}
	return n, nil
}

// ListReceivedBefore returns up to limit of the oldest trade logs received
// before the cutoff.
func (s *TradeLogStore) ListReceivedBefore(ctx context.Context, before time.Time, limit int) ([]domain.TradeLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeLogSelectCols+` FROM trade_logs WHERE received_at < $1 ORDER BY id ASC LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trade_logs before: %w", err)
	}
	defer rows.Close()
	return scanTradeLogRows(rows)
}

// DeleteByIDs removes the given trade logs and returns how many went.
func (s *TradeLogStore) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM trade_logs WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trade_logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

var (
	_ domain.TradeLogStore         = (*TradeLogStore)(nil)
	_ domain.TradeLogArchiveSource = (*TradeLogStore)(nil)
)
