package main

import (
	"context"
	"fmt"
	"time"

	"YieldRouter/internal/allocator"
	"YieldRouter/internal/chain/evm"
	"YieldRouter/internal/config"
	"YieldRouter/internal/model"
	"YieldRouter/internal/sim"
	"YieldRouter/internal/strategy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Addresses used by the sim backend when the config leaves them empty.
var simDefaults = map[string]common.Address{
	"strategy":   common.HexToAddress("0x00000000000000000000000000000000000000a1"),
	"want":       common.HexToAddress("0x0000000000000000000000000000000000000b01"),
	"investment": common.HexToAddress("0x0000000000000000000000000000000000000b02"),
	"vault":      common.HexToAddress("0x0000000000000000000000000000000000000b03"),
	"pool":       common.HexToAddress("0x0000000000000000000000000000000000000b04"),
	"allocator":  common.HexToAddress("0x0000000000000000000000000000000000000b05"),
}

type backend struct {
	env      strategy.Env
	book     allocator.Book
	decimals uint8
	close    func()
}

func buildBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	if cfg.Backend == config.BackendEVM {
		return buildEVM(ctx, cfg, log)
	}
	return buildSim(cfg, log)
}

func addressOr(v string, key string) common.Address {
	if common.IsHexAddress(v) {
		return common.HexToAddress(v)
	}
	return simDefaults[key]
}

// buildSim seeds an in-memory world: the allocator holds the configured
// funds and the strategy is registered with the configured debt limit.
func buildSim(cfg *config.Config, log zerolog.Logger) (*backend, error) {
	sc := cfg.Strategy
	self := addressOr(sc.Address, "strategy")
	want := addressOr(sc.Want, "want")
	invest := addressOr(sc.Investment, "investment")
	vault := addressOr(sc.Vault, "vault")
	pool := addressOr(sc.Pool, "pool")
	alloc := addressOr(sc.Allocator, "allocator")

	w := sim.NewWorld()
	w.DeployToken(want, cfg.Sim.Decimals)
	w.DeployToken(invest, cfg.Sim.Decimals)
	if err := w.DeployVault(vault, invest); err != nil {
		return nil, err
	}
	coins := make([]common.Address, max(sc.WantIndex, sc.InvestmentIndex)+1)
	for i := range coins {
		coins[i] = want
	}
	coins[sc.InvestmentIndex] = invest
	if err := w.DeployPool(pool, coins, cfg.Sim.PoolOutputBps); err != nil {
		return nil, err
	}

	funds, err := model.ParseUnits(cfg.Sim.AllocatorFunds, cfg.Sim.Decimals)
	if err != nil {
		return nil, fmt.Errorf("sim allocator funds: %w", err)
	}
	limit, err := model.ParseUnits(cfg.Sim.DebtLimit, cfg.Sim.Decimals)
	if err != nil {
		return nil, fmt.Errorf("sim debt limit: %w", err)
	}
	if err := w.Mint(want, alloc, funds); err != nil {
		return nil, err
	}
	ledger := allocator.NewLedger(alloc, want, w)
	if err := ledger.AddStrategy(self, limit); err != nil {
		return nil, err
	}

	log.Info().
		Str("funds", cfg.Sim.AllocatorFunds).
		Str("debt_limit", cfg.Sim.DebtLimit).
		Uint64("pool_output_bps", cfg.Sim.PoolOutputBps).
		Msg("Sim world seeded")

	return &backend{
		env: strategy.Env{
			Self:         self,
			Want:         w.Token(want, self),
			Investment:   w.Token(invest, self),
			Vault:        w.Vault(vault, self),
			Pool:         w.Pool(pool, self),
			Debt:         ledger,
			Checkpointer: w,
		},
		book:     ledger,
		decimals: cfg.Sim.Decimals,
		close:    func() {},
	}, nil
}

// buildEVM binds to live contracts. The signing key must belong to the
// strategy account registered with the allocator.
func buildEVM(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	sc := cfg.Strategy
	client, err := evm.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.PrivateKey, cfg.Chain.ChainID,
		time.Duration(cfg.Chain.TimeoutSec)*time.Second, log)
	if err != nil {
		return nil, err
	}
	self := common.HexToAddress(sc.Address)
	if client.From() != self {
		return nil, fmt.Errorf("private key controls %s, strategy.address is %s", client.From().Hex(), self.Hex())
	}

	want := client.ERC20(common.HexToAddress(sc.Want))
	decimals, err := want.Decimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("read want decimals: %w", err)
	}
	vault := client.Vault(common.HexToAddress(sc.Vault))
	book := client.Allocator(common.HexToAddress(sc.Allocator), want.Address())

	return &backend{
		env: strategy.Env{
			Self:       self,
			Want:       want,
			Investment: client.ERC20(common.HexToAddress(sc.Investment)),
			Vault:      vault,
			Pool:       client.Pool(common.HexToAddress(sc.Pool)),
			Debt:       book,
		},
		book:     book,
		decimals: decimals,
		close:    client.Close,
	}, nil
}
