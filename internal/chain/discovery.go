package chain

import (
	"context"
	"fmt"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Discovery resolves token metadata and pool addresses at startup.
type Discovery struct {
	c caller
}

// NewDiscovery creates a Discovery. A zero timeout uses DefaultCallTimeout.
func NewDiscovery(backend ethereum.ContractCaller, timeout time.Duration) *Discovery {
	return &Discovery{c: newCaller(backend, timeout)}
}

// Token reads the symbol and decimals of an ERC-20 token.
func (d *Discovery) Token(ctx context.Context, address common.Address) (domain.Token, error) {
	sym, err := d.c.call(ctx, erc20ABI, address, "symbol")
	if err != nil {
		return domain.Token{}, fmt.Errorf("chain: token %s symbol: %w", address.Hex(), err)
	}
	symbol, ok := sym[0].(string)
	if !ok {
		return domain.Token{}, fmt.Errorf("chain: token %s symbol is %T", address.Hex(), sym[0])
	}

	dec, err := d.c.call(ctx, erc20ABI, address, "decimals")
	if err != nil {
		return domain.Token{}, fmt.Errorf("chain: token %s decimals: %w", address.Hex(), err)
	}
	decimals, ok := dec[0].(uint8)
	if !ok {
		return domain.Token{}, fmt.Errorf("chain: token %s decimals is %T", address.Hex(), dec[0])
	}

	return domain.Token{Address: address, Symbol: symbol, Decimals: decimals}, nil
}

// PoolAddress asks the venue factory for the token0/token1 pool at fee.
// A zero address means the factory has no such pool.
func (d *Discovery) PoolAddress(ctx context.Context, factory, token0, token1 common.Address, fee uint32) (common.Address, error) {
	values, err := d.c.call(ctx, factoryABI, factory, "getPool", token0, token1, feeArg(fee))
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: getPool: %w", err)
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: getPool output is %T", values[0])
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("chain: factory %s has no pool for fee %d: %w", factory.Hex(), fee, domain.ErrNotFound)
	}
	return addr, nil
}

// ResolvePools builds one Pool per venue. Venues that already carry a pool
// address keep it; the rest are looked up through their factory.
func (d *Discovery) ResolvePools(ctx context.Context, venues []domain.Venue, token0, token1 common.Address, fee uint32) ([]domain.Pool, error) {
	t0, err := d.Token(ctx, token0)
	if err != nil {
		return nil, err
	}
	t1, err := d.Token(ctx, token1)
	if err != nil {
		return nil, err
	}

	pools := make([]domain.Pool, 0, len(venues))
	for _, v := range venues {
		if v.Pool == (common.Address{}) {
			addr, err := d.PoolAddress(ctx, v.Factory, token0, token1, fee)
			if err != nil {
				return nil, fmt.Errorf("chain: resolve %s pool: %w", v.Name, err)
			}
			v.Pool = addr
		}
		pools = append(pools, domain.Pool{Venue: v, Token0: t0, Token1: t1, Fee: fee})
	}
	return pools, nil
}
