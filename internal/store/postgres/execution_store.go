package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore backed by pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const executionSelectCols = `id, buy_venue, sell_venue, input_amount::text, dry_run, tx_hash, status,
	native_before::text, native_after::text, token0_before::text, token0_after::text,
	gas_used, error, started_at, completed_at`

// Create inserts one execution record.
func (s *ExecutionStore) Create(ctx context.Context, exec domain.Execution) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO executions (id, buy_venue, sell_venue, input_amount, dry_run, tx_hash, status,
			native_before, native_after, token0_before, token0_after, gas_used, error, started_at, completed_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8::numeric, $9::numeric, $10::numeric, $11::numeric, $12, $13, $14, $15)`,
		exec.ID, exec.BuyVenue, exec.SellVenue, numericArg(exec.InputAmount), exec.DryRun,
		exec.TxHash, string(exec.Status),
		numericArg(exec.NativeBefore), numericArg(exec.NativeAfter),
		numericArg(exec.Token0Before), numericArg(exec.Token0After),
		int64(exec.GasUsed), exec.Error, exec.StartedAt, exec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", exec.ID, err)
	}
	return nil
}

// GetByID returns one execution or domain.ErrNotFound.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.Execution, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+executionSelectCols+` FROM executions WHERE id = $1`, id)
	exec, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Execution{}, domain.ErrNotFound
		}
		return domain.Execution{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	return exec, nil
}

// ListRecent returns the most recent executions, newest first.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+executionSelectCols+` FROM executions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var list []domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		list = append(list, exec)
	}
	return list, rows.Err()
}

func scanExecution(row pgx.Row) (domain.Execution, error) {
	var (
		exec                             domain.Execution
		input, nativeBefore, nativeAfter *string
		token0Before, token0After        *string
		status                           string
		gasUsed                          int64
		completedAt                      *time.Time
	)
	if err := row.Scan(
		&exec.ID, &exec.BuyVenue, &exec.SellVenue, &input, &exec.DryRun, &exec.TxHash, &status,
		&nativeBefore, &nativeAfter, &token0Before, &token0After,
		&gasUsed, &exec.Error, &exec.StartedAt, &completedAt,
	); err != nil {
		return domain.Execution{}, err
	}
	exec.Status = domain.ExecutionStatus(status)
	exec.GasUsed = uint64(gasUsed)
	exec.StartedAt = exec.StartedAt.UTC()
	if completedAt != nil {
		t := completedAt.UTC()
		exec.CompletedAt = &t
	}

	var err error
	for _, f := range []struct {
		dst **big.Int
		src *string
	}{
		{&exec.InputAmount, input},
		{&exec.NativeBefore, nativeBefore},
		{&exec.NativeAfter, nativeAfter},
		{&exec.Token0Before, token0Before},
		{&exec.Token0After, token0After},
	} {
		if *f.dst, err = parseNumeric(f.src); err != nil {
			return domain.Execution{}, err
		}
	}
	return exec, nil
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)
