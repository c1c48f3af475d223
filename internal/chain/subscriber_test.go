package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

type fakeLogSource struct {
	logs      []types.Log
	subErr    error
	dialErr   error
	headerErr error
	query     ethereum.FilterQuery
}

func (f *fakeLogSource) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	f.query = q
	return event.NewSubscription(func(quit <-chan struct{}) error {
		for _, lg := range f.logs {
			select {
			case ch <- lg:
			case <-quit:
				return nil
			}
		}
		if f.subErr != nil {
			return f.subErr
		}
		<-quit
		return nil
	}), nil
}

func (f *fakeLogSource) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	if f.headerErr != nil {
		return nil, f.headerErr
	}
	return &types.Header{Number: number, Time: 1_700_000_000 + number.Uint64()}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func swapLog(t *testing.T, block uint64, tx string, amount0, amount1, sqrt int64) types.Log {
	t.Helper()
	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(amount0), big.NewInt(amount1), big.NewInt(sqrt), big.NewInt(1_000_000), big.NewInt(-12),
	)
	require.NoError(t, err)
	return types.Log{
		Address:     poolA,
		Topics:      []common.Hash{SwapTopic, common.Hash{}, common.Hash{}},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash(tx),
	}
}

func TestDecodeSwap(t *testing.T) {
	obs, err := DecodeSwap("Uniswap", swapLog(t, 42, "0x01", -500, 1000, 79228162514264337))
	require.NoError(t, err)
	assert.Equal(t, "Uniswap", obs.Venue)
	assert.Equal(t, uint64(42), obs.BlockNumber)
	assert.Equal(t, int64(-500), obs.Amount0.Int64())
	assert.Equal(t, int64(1000), obs.Amount1.Int64())
	assert.Equal(t, int64(79228162514264337), obs.SqrtPriceX96.Int64())

	_, err = DecodeSwap("Uniswap", types.Log{Topics: []common.Hash{{0x01}}})
	assert.Error(t, err)
}

func TestSubscriber_DeliversInOrderAndSkipsRemoved(t *testing.T) {
	removed := swapLog(t, 9, "0x09", 1, 1, 1)
	removed.Removed = true
	src := &fakeLogSource{logs: []types.Log{
		removed,
		swapLog(t, 10, "0x0a", 1, 2, 3),
		swapLog(t, 11, "0x0b", 4, 5, 6),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domain.SwapObservation, 4)
	done := make(chan error, 1)
	go func() {
		done <- NewSubscriber(src, discardLogger()).Subscribe(ctx, testPool(), func(_ context.Context, obs domain.SwapObservation) {
			got <- obs
		})
	}()

	first := <-got
	second := <-got
	assert.Equal(t, uint64(10), first.BlockNumber)
	assert.Equal(t, uint64(1_700_000_010), first.BlockTimestamp)
	assert.Equal(t, uint64(11), second.BlockNumber)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop on cancel")
	}

	assert.Equal(t, []common.Address{poolA}, src.query.Addresses)
	assert.Equal(t, SwapTopic, src.query.Topics[0][0])
}

func TestSubscriber_HeaderFailureKeepsObservation(t *testing.T) {
	src := &fakeLogSource{
		logs:      []types.Log{swapLog(t, 10, "0x0a", 1, 2, 3)},
		headerErr: errors.New("header not found"),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domain.SwapObservation, 1)
	go func() {
		_ = NewSubscriber(src, discardLogger()).Subscribe(ctx, testPool(), func(_ context.Context, obs domain.SwapObservation) {
			got <- obs
		})
	}()

	select {
	case obs := <-got:
		assert.Equal(t, uint64(0), obs.BlockTimestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("no observation delivered")
	}
}

func TestSubscriber_LostSubscriptionIsFatal(t *testing.T) {
	src := &fakeLogSource{subErr: errors.New("websocket closed")}

	err := NewSubscriber(src, discardLogger()).Subscribe(context.Background(), testPool(), func(context.Context, domain.SwapObservation) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSubscriptionLost)
}

func TestSubscriber_SubscribeFailure(t *testing.T) {
	src := &fakeLogSource{dialErr: errors.New("notifications not supported")}

	err := NewSubscriber(src, discardLogger()).Subscribe(context.Background(), testPool(), func(context.Context, domain.SwapObservation) {})
	assert.ErrorIs(t, err, domain.ErrSubscriptionLost)
}
