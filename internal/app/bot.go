package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dexarb/internal/arbitrage"
	"github.com/alanyoungcy/dexarb/internal/chain"
	"github.com/alanyoungcy/dexarb/internal/config"
	"github.com/alanyoungcy/dexarb/internal/crypto"
	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/executor"
	"github.com/alanyoungcy/dexarb/internal/gate"
	"github.com/alanyoungcy/dexarb/internal/pipeline"
	"github.com/alanyoungcy/dexarb/internal/pricing"
	"github.com/alanyoungcy/dexarb/internal/publisher"
)

// buildOrchestrator dials the node, resolves both pools and assembles the
// decision pipeline. The returned func closes the node connection.
func (a *App) buildOrchestrator(ctx context.Context, deps *Dependencies) (*pipeline.Orchestrator, func(), error) {
	cfg := a.cfg

	policy, err := gate.ParsePolicy(cfg.Project.BusyPolicy)
	if err != nil {
		return nil, nil, fmt.Errorf("app: %w", err)
	}

	key, account, err := crypto.LoadTradingKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("app: trading key: %w", err)
	}

	client, err := chain.Dial(ctx, cfg.Chain.WSURL, cfg.Chain.ChainID)
	if err != nil {
		return nil, nil, fmt.Errorf("app: %w", err)
	}
	closeChain := client.Close

	timeout := cfg.Chain.CallTimeout.Duration
	token0 := common.HexToAddress(cfg.Tokens.ArbFor)
	token1 := common.HexToAddress(cfg.Tokens.ArbAgainst)
	fee := uint32(cfg.Tokens.PoolFee)

	venues := make([]domain.Venue, 0, len(cfg.Venues))
	for _, v := range cfg.Venues {
		venues = append(venues, venueFromConfig(v))
	}
	if len(venues) != 2 {
		closeChain()
		return nil, nil, fmt.Errorf("app: exactly two venues are required, got %d", len(venues))
	}

	discovery := chain.NewDiscovery(client, timeout)
	resolved, err := discovery.ResolvePools(ctx, venues, token0, token1, fee)
	if err != nil {
		closeChain()
		return nil, nil, fmt.Errorf("app: %w", err)
	}
	pools := [2]domain.Pool{resolved[0], resolved[1]}

	poolReader := chain.NewPoolReader(client, timeout)
	quoter := chain.NewQuoter(client, timeout)
	balances := chain.NewBalanceReader(client, poolReader)
	gasPrice := chain.GweiToWei(decimal.NewFromFloat(cfg.Project.GasPriceGwei))

	engine := arbitrage.NewEngine(arbitrage.EngineConfig{
		VenueA:        pools[0].Venue,
		VenueB:        pools[1].Venue,
		Token0:        pools[0].Token0,
		Token1:        pools[0].Token1,
		Fee:           fee,
		Threshold:     decimal.NewFromFloat(cfg.Project.PriceDifference),
		TradeFraction: decimal.NewFromFloat(cfg.Project.TradeFraction),
		GasLimit:      cfg.Project.GasLimit,
		GasPrice:      gasPrice,
		Account:       account,
		Reserves:      poolReader,
		Quotes:        quoter,
		Balances:      balances,
		Report:        os.Stdout,
		Logger:        a.logger,
	})

	var settlement executor.Settlement
	if cfg.Project.Deployed {
		settlement = chain.NewSettlement(client, key, chain.SettlementConfig{
			Address:  common.HexToAddress(cfg.Project.SettlementAddress),
			ChainID:  big.NewInt(cfg.Chain.ChainID),
			GasLimit: cfg.Project.GasLimit,
			GasPrice: gasPrice,
		}, a.logger)
	}

	exec, err := executor.New(executor.Config{
		Token0:     pools[0].Token0,
		Token1:     pools[0].Token1,
		Fee:        fee,
		Account:    account,
		Deployed:   cfg.Project.Deployed,
		Settlement: settlement,
		Balances:   balances,
		Store:      deps.ExecutionStore,
		Notifier:   deps.Notifier,
		Report:     os.Stdout,
		Logger:     a.logger,
	})
	if err != nil {
		closeChain()
		return nil, nil, fmt.Errorf("app: %w", err)
	}

	var pub pipeline.Publisher
	if strings.TrimSpace(cfg.Sink.URL) != "" {
		pub = publisher.New(publisher.Config{
			SinkURL:   cfg.Sink.URL,
			APIKey:    cfg.Sink.APIKey,
			QueueSize: cfg.Sink.QueueSize,
			Timeout:   cfg.Sink.Timeout.Duration,
			Bus:       deps.SignalBus,
			Logger:    a.logger,
		})
	}

	var guard *gate.Guard
	if deps.LockManager != nil {
		guard = gate.NewGuard(&gate.Gate{}, gate.NewLease(deps.LockManager, cfg.Redis.LeaseKey, cfg.Redis.LeaseTTL.Duration))
	}

	a.logger.InfoContext(ctx, "trading account loaded",
		slog.String("account", account.Hex()),
		slog.Bool("deployed", cfg.Project.Deployed),
		slog.Bool("shared_lease", guard != nil),
	)

	orch := pipeline.NewOrchestrator(pipeline.Config{
		Pools:     pools,
		Swaps:     chain.NewSubscriber(client, a.logger),
		Publisher: pub,
		Prices:    pricing.NewOracle(poolReader, int32(cfg.Project.PriceUnits)),
		Engine:    engine,
		Trader:    exec,
		Guard:     guard,
		Policy:    policy,
		Logger:    a.logger,
	})
	return orch, closeChain, nil
}

// venueFromConfig converts a configured venue. Empty addresses stay zero;
// a zero pool is resolved through the factory.
func venueFromConfig(v config.VenueConfig) domain.Venue {
	return domain.Venue{
		Name:    v.Name,
		Pool:    optionalAddress(v.Pool),
		Quoter:  optionalAddress(v.Quoter),
		Router:  optionalAddress(v.Router),
		Factory: optionalAddress(v.Factory),
	}
}

func optionalAddress(s string) common.Address {
	if strings.TrimSpace(s) == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}
