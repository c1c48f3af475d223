package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// LogSource is the subset of ethclient.Client used for Swap subscriptions.
type LogSource interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// SwapHandler receives each decoded Swap observation.
type SwapHandler func(ctx context.Context, obs domain.SwapObservation)

// Subscriber streams Swap events from one pool.
type Subscriber struct {
	src    LogSource
	logger *slog.Logger
}

// NewSubscriber creates a Subscriber.
func NewSubscriber(src LogSource, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		src:    src,
		logger: logger.With(slog.String("component", "subscriber")),
	}
}

type swapEvent struct {
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         *big.Int
}

// Subscribe blocks, delivering every Swap on pool to handle in arrival order.
// It returns nil when ctx is cancelled and an error wrapping
// domain.ErrSubscriptionLost when the node drops the subscription. There is
// no reconnect.
func (s *Subscriber) Subscribe(ctx context.Context, pool domain.Pool, handle SwapHandler) error {
	venue := pool.Venue.Name
	query := ethereum.FilterQuery{
		Addresses: []common.Address{pool.Address()},
		Topics:    [][]common.Hash{{SwapTopic}},
	}

	logs := make(chan types.Log, 64)
	sub, err := s.src.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("chain: subscribe %s: %w: %v", venue, domain.ErrSubscriptionLost, err)
	}
	defer sub.Unsubscribe()

	s.logger.Info("subscribed to swaps",
		slog.String("venue", venue),
		slog.String("pool", pool.Address().Hex()),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Err():
			if ctx.Err() != nil {
				return nil
			}
			if !ok || err == nil {
				err = errors.New("subscription closed")
			}
			return fmt.Errorf("chain: %s swaps: %w: %v", venue, domain.ErrSubscriptionLost, err)
		case lg := <-logs:
			if lg.Removed {
				s.logger.Debug("skipping removed log",
					slog.String("venue", venue),
					slog.String("tx", lg.TxHash.Hex()),
				)
				continue
			}
			obs, err := s.decode(ctx, venue, lg)
			if err != nil {
				s.logger.Warn("undecodable swap log",
					slog.String("venue", venue),
					slog.String("tx", lg.TxHash.Hex()),
					slog.String("error", err.Error()),
				)
				continue
			}
			handle(ctx, obs)
		}
	}
}

func (s *Subscriber) decode(ctx context.Context, venue string, lg types.Log) (domain.SwapObservation, error) {
	obs, err := DecodeSwap(venue, lg)
	if err != nil {
		return obs, err
	}

	header, err := s.src.HeaderByNumber(ctx, new(big.Int).SetUint64(lg.BlockNumber))
	if err != nil {
		s.logger.Warn("block header lookup failed",
			slog.String("venue", venue),
			slog.Uint64("block", lg.BlockNumber),
			slog.String("error", err.Error()),
		)
		return obs, nil
	}
	obs.BlockTimestamp = header.Time
	return obs, nil
}

// DecodeSwap decodes a raw Swap log into an observation without a timestamp.
func DecodeSwap(venue string, lg types.Log) (domain.SwapObservation, error) {
	if len(lg.Topics) == 0 || lg.Topics[0] != SwapTopic {
		return domain.SwapObservation{}, errors.New("chain: log is not a Swap event")
	}
	var ev swapEvent
	if err := poolABI.UnpackIntoInterface(&ev, "Swap", lg.Data); err != nil {
		return domain.SwapObservation{}, fmt.Errorf("chain: decode swap: %w", err)
	}
	return domain.SwapObservation{
		Venue:        venue,
		BlockNumber:  lg.BlockNumber,
		SqrtPriceX96: ev.SqrtPriceX96,
		Amount0:      ev.Amount0,
		Amount1:      ev.Amount1,
		TxHash:       lg.TxHash,
	}, nil
}
