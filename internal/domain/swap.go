package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SwapObservation is a single Swap event observed on one venue's pool.
type SwapObservation struct {
	Venue          string
	BlockNumber    uint64
	BlockTimestamp uint64
	SqrtPriceX96   *big.Int
	Amount0        *big.Int
	Amount1        *big.Int
	TxHash         common.Hash
}

// TradeLog is the record shipped to the trade-log sink. Large integers are
// carried as decimal strings so no precision is lost in JSON.
type TradeLog struct {
	ID           int64  `json:"id,omitempty"`
	Venue        string `json:"venue"`
	BlockNumber  uint64 `json:"blockNumber"`
	Timestamp    uint64 `json:"timestamp"`
	SqrtPriceX96 string `json:"sqrtPriceX96"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	// ReceivedAt is set by the sink when the record is stored.
	ReceivedAt time.Time `json:"receivedAt,omitzero"`
}

// TradeLogFromObservation converts a SwapObservation into its wire form.
func TradeLogFromObservation(obs SwapObservation) TradeLog {
	return TradeLog{
		Venue:        obs.Venue,
		BlockNumber:  obs.BlockNumber,
		Timestamp:    obs.BlockTimestamp,
		SqrtPriceX96: bigString(obs.SqrtPriceX96),
		Amount0:      bigString(obs.Amount0),
		Amount1:      bigString(obs.Amount1),
	}
}

// Validate checks that the record carries a venue and parseable integers.
func (l TradeLog) Validate() error {
	if strings.TrimSpace(l.Venue) == "" {
		return fmt.Errorf("%w: venue is required", ErrInvalidTradeLog)
	}
	if _, ok := new(big.Int).SetString(l.SqrtPriceX96, 10); !ok {
		return fmt.Errorf("%w: sqrtPriceX96 %q is not a decimal integer", ErrInvalidTradeLog, l.SqrtPriceX96)
	}
	if _, ok := new(big.Int).SetString(l.Amount0, 10); !ok {
		return fmt.Errorf("%w: amount0 %q is not a decimal integer", ErrInvalidTradeLog, l.Amount0)
	}
	if _, ok := new(big.Int).SetString(l.Amount1, 10); !ok {
		return fmt.Errorf("%w: amount1 %q is not a decimal integer", ErrInvalidTradeLog, l.Amount1)
	}
	return nil
}

func bigString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
