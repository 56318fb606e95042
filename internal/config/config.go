package config

import (
	"fmt"
	"os"
	"strconv"

	"YieldRouter/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Basis-point defaults. They are set before the YAML is read so an explicit
// 0 in the file is kept.
const (
	DefaultMinExpectedSwapBps uint64 = 9900
	DefaultMaxLossBps         uint64 = 100
)

// Backends the engine can run against.
const (
	BackendSim = "sim"
	BackendEVM = "evm"
)

// Config holds all application configuration.
type Config struct {
	Backend string `yaml:"backend"`
	Log     struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Chain struct {
		RPCURL     string `yaml:"rpc_url"`
		PrivateKey string `yaml:"private_key"`
		ChainID    int64  `yaml:"chain_id"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"chain"`
	Strategy struct {
		Name               string   `yaml:"name"`
		Address            string   `yaml:"address"`
		Want               string   `yaml:"want"`
		Investment         string   `yaml:"investment"`
		Vault              string   `yaml:"vault"`
		Pool               string   `yaml:"pool"`
		Allocator          string   `yaml:"allocator"`
		WantIndex          int      `yaml:"want_index"`
		InvestmentIndex    int      `yaml:"investment_index"`
		MinExpectedSwapBps uint64   `yaml:"min_expected_swap_bps"`
		MaxLossBps         uint64   `yaml:"max_loss_bps"`
		Governors          []string `yaml:"governors"`
	} `yaml:"strategy"`
	Sim struct {
		Decimals       uint8  `yaml:"decimals"`
		AllocatorFunds string `yaml:"allocator_funds"`
		DebtLimit      string `yaml:"debt_limit"`
		PoolOutputBps  uint64 `yaml:"pool_output_bps"`
	} `yaml:"sim"`
	Schedule struct {
		HarvestCron string `yaml:"harvest_cron"`
		TendCron    string `yaml:"tend_cron"`
	} `yaml:"schedule"`
	Store struct {
		ParamsFile string `yaml:"params_file"`
	} `yaml:"store"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads .env and the YAML file, then applies environment variable
// overrides and defaults. Missing files are not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	cfg := &Config{}
	cfg.Strategy.MinExpectedSwapBps = DefaultMinExpectedSwapBps
	cfg.Strategy.MaxLossBps = DefaultMaxLossBps
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		c.Chain.RPCURL = v
	}
	if v := os.Getenv("PRIVATE_KEY"); v != "" {
		c.Chain.PrivateKey = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Chain.ChainID = id
		}
	}
	if v := os.Getenv("HARVEST_CRON"); v != "" {
		c.Schedule.HarvestCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSim
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Chain.TimeoutSec == 0 {
		c.Chain.TimeoutSec = 120
	}
	if c.Strategy.Name == "" {
		c.Strategy.Name = "StrategyCurveVault"
	}
	if c.Strategy.WantIndex == c.Strategy.InvestmentIndex && c.Strategy.WantIndex == 0 {
		c.Strategy.InvestmentIndex = 1
	}
	if c.Sim.Decimals == 0 {
		c.Sim.Decimals = 6
	}
	if c.Sim.AllocatorFunds == "" {
		c.Sim.AllocatorFunds = "100000"
	}
	if c.Sim.DebtLimit == "" {
		c.Sim.DebtLimit = "50000"
	}
	if c.Sim.PoolOutputBps == 0 {
		c.Sim.PoolOutputBps = 9990
	}
	if c.Schedule.HarvestCron == "" {
		c.Schedule.HarvestCron = "0 0 */6 * * *"
	}
	if c.Schedule.TendCron == "" {
		c.Schedule.TendCron = "0 30 * * * *"
	}
	if c.Store.ParamsFile == "" {
		c.Store.ParamsFile = "data/params.json"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/yieldrouter.db"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Backend != BackendSim && c.Backend != BackendEVM {
		return fmt.Errorf("backend must be %q or %q, got %q", BackendSim, BackendEVM, c.Backend)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when bot_token is set")
	}
	if err := model.ValidateBps("strategy.min_expected_swap_bps", c.Strategy.MinExpectedSwapBps); err != nil {
		return err
	}
	if err := model.ValidateBps("strategy.max_loss_bps", c.Strategy.MaxLossBps); err != nil {
		return err
	}
	if c.Strategy.WantIndex < 0 || c.Strategy.InvestmentIndex < 0 || c.Strategy.WantIndex == c.Strategy.InvestmentIndex {
		return fmt.Errorf("strategy.want_index and strategy.investment_index must be distinct and non-negative")
	}
	for _, g := range c.Strategy.Governors {
		if !common.IsHexAddress(g) {
			return fmt.Errorf("strategy.governors: %q is not an address", g)
		}
	}

	if c.Backend == BackendSim {
		if err := model.ValidateBps("sim.pool_output_bps", c.Sim.PoolOutputBps); err != nil {
			return err
		}
		if _, err := model.ParseUnits(c.Sim.AllocatorFunds, c.Sim.Decimals); err != nil {
			return fmt.Errorf("sim.allocator_funds: %w", err)
		}
		if _, err := model.ParseUnits(c.Sim.DebtLimit, c.Sim.Decimals); err != nil {
			return fmt.Errorf("sim.debt_limit: %w", err)
		}
		return nil
	}

	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required for the evm backend")
	}
	if c.Chain.PrivateKey == "" {
		return fmt.Errorf("chain.private_key is required for the evm backend")
	}
	addrs := map[string]string{
		"strategy.address":    c.Strategy.Address,
		"strategy.want":       c.Strategy.Want,
		"strategy.investment": c.Strategy.Investment,
		"strategy.vault":      c.Strategy.Vault,
		"strategy.pool":       c.Strategy.Pool,
		"strategy.allocator":  c.Strategy.Allocator,
	}
	for name, v := range addrs {
		if !common.IsHexAddress(v) {
			return fmt.Errorf("%s is required for the evm backend and must be an address", name)
		}
	}
	return nil
}

// GovernorAddresses returns the accounts allowed to change parameters.
func (c *Config) GovernorAddresses() []common.Address {
	out := make([]common.Address, 0, len(c.Strategy.Governors))
	for _, g := range c.Strategy.Governors {
		out = append(out, common.HexToAddress(g))
	}
	return out
}
