package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Venue is one of the two trading venues holding a pool for the arbitraged
// pair. All addresses are fixed for the lifetime of the process.
type Venue struct {
	Name    string
	Pool    common.Address
	Quoter  common.Address
	Router  common.Address
	Factory common.Address
}

// Token is an ERC-20 token participating in the pair.
type Token struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// Pool is a venue's liquidity pool for token0/token1 at a given fee tier.
// It is only ever read, never mutated by this process.
type Pool struct {
	Venue  Venue
	Token0 Token
	Token1 Token
	Fee    uint32
}

// Address returns the pool contract address.
func (p Pool) Address() common.Address {
	return p.Venue.Pool
}

// Pair returns the display name of the pair, e.g. "USDC/WETH".
func (p Pool) Pair() string {
	return fmt.Sprintf("%s/%s", p.Token1.Symbol, p.Token0.Symbol)
}
