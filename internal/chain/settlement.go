package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// SettlementBackend is what the settlement transactor needs from the node:
// contract transact/call plus receipt lookup for confirmation.
type SettlementBackend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Settlement submits executeTrade to the flash-loan settlement contract.
type Settlement struct {
	backend  SettlementBackend
	contract *bind.BoundContract
	address  common.Address
	key      *ecdsa.PrivateKey
	account  common.Address
	chainID  *big.Int
	gasLimit uint64
	gasPrice *big.Int
	logger   *slog.Logger
}

// SettlementConfig holds the static transaction parameters.
type SettlementConfig struct {
	Address  common.Address
	ChainID  *big.Int
	GasLimit uint64
	GasPrice *big.Int // wei
}

// NewSettlement binds the settlement contract for the trading account key.
func NewSettlement(backend SettlementBackend, key *ecdsa.PrivateKey, cfg SettlementConfig, logger *slog.Logger) *Settlement {
	return &Settlement{
		backend:  backend,
		contract: bind.NewBoundContract(cfg.Address, settlementABI, backend, backend, backend),
		address:  cfg.Address,
		key:      key,
		account:  ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID:  cfg.ChainID,
		gasLimit: cfg.GasLimit,
		gasPrice: cfg.GasPrice,
		logger:   logger.With(slog.String("component", "settlement")),
	}
}

// Account returns the address that signs settlement transactions.
func (s *Settlement) Account() common.Address {
	return s.account
}

// ExecuteTrade sends executeTrade(routerPath, tokenPath, fee, amount) and
// waits for the receipt. A mined receipt with a failed status is returned
// together with an error wrapping domain.ErrSettlementReverted.
func (s *Settlement) ExecuteTrade(ctx context.Context, routerPath, tokenPath [2]common.Address, fee uint32, amount *big.Int) (*types.Receipt, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("chain: settlement transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = s.gasLimit
	opts.GasPrice = s.gasPrice

	tx, err := s.contract.Transact(opts, "executeTrade",
		[]common.Address{routerPath[0], routerPath[1]},
		[]common.Address{tokenPath[0], tokenPath[1]},
		feeArg(fee),
		amount,
	)
	if err != nil {
		return nil, fmt.Errorf("chain: send executeTrade: %w", err)
	}
	s.logger.Info("settlement submitted",
		slog.String("tx", tx.Hash().Hex()),
		slog.String("contract", s.address.Hex()),
		slog.String("amount", amount.String()),
	)

	receipt, err := bind.WaitMined(ctx, s.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("chain: wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("chain: tx %s: %w", tx.Hash().Hex(), domain.ErrSettlementReverted)
	}
	return receipt, nil
}

// GweiToWei converts a gas price in gwei to wei, dropping sub-wei digits.
func GweiToWei(gwei decimal.Decimal) *big.Int {
	return gwei.Shift(9).Floor().BigInt()
}
