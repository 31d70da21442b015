// Package config defines all configuration for the auction house.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// overrides via AUCTION_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Market    MarketConfig    `mapstructure:"market"`
	Traders   TradersConfig   `mapstructure:"traders"`
	Fabric    FabricConfig    `mapstructure:"fabric"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// MarketConfig tunes the order book, matcher, and settlement (spec §6).
//
//   - TickPeriod: fixed nominal period of the Auction House's tick loop.
//   - SalesTax: fraction of trade value retained by the house on every trade.
//   - BrokerFee: fraction of order value charged on entry of non-immediate orders.
//   - MinPrice: floor on any offer price.
//   - NLookback: count-windowed "recent" aggregate size (ticks).
//
// The time-windowed "recent" aggregates have no setting of their own: the
// house fixes their window at 100 * TickPeriod.
type MarketConfig struct {
	TickPeriod time.Duration `mapstructure:"tick_period"`
	SalesTax   float64       `mapstructure:"sales_tax"`
	BrokerFee  float64       `mapstructure:"broker_fee"`
	MinPrice   float64       `mapstructure:"min_price"`
	NLookback  int           `mapstructure:"n_lookback"`
}

// TradersConfig tunes role assignment and the trader agent belief model
// (spec §4.5.1, §4.6).
//
//   - Gamma: role-weighting exponent (negative net supply biases toward
//     the undersupplied producer).
//   - Alpha: EWMA factor for cost beliefs.
//   - MinCost: floor on per-unit tracked cost.
//   - InternalLookback: trader's observed trading-range window, in trade samples.
//   - RegistrationStageTimeout: per-stage timeout during the reserve/create/
//     delegate registration handshake.
//   - FleetSize: number of AI trader agents the bundled in-memory demo
//     fleet spawns at startup (ignored when Fabric points at a real gateway).
type TradersConfig struct {
	Gamma                    float64       `mapstructure:"gamma"`
	Alpha                    float64       `mapstructure:"alpha"`
	MinCost                  float64       `mapstructure:"min_cost"`
	InternalLookback         int           `mapstructure:"internal_lookback"`
	RegistrationStageTimeout time.Duration `mapstructure:"registration_stage_timeout"`
	FleetSize                int           `mapstructure:"fleet_size"`
}

// FabricConfig points at the replication/RPC substrate the house and traders
// talk through. BaseURL is the httpfabric adapter's REST endpoint, WSURL its
// inbound command stream. Leaving BaseURL empty selects the bundled
// in-memory Fabric instead (demo/dry-run mode).
type FabricConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	WSURL      string        `mapstructure:"ws_url"`
	RPCTimeout time.Duration `mapstructure:"rpc_timeout"`
	DryRun     bool          `mapstructure:"dry_run"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the market-snapshot broadcast server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("market.tick_period", "100ms")
	v.SetDefault("market.sales_tax", 0.08)
	v.SetDefault("market.broker_fee", 0.03)
	v.SetDefault("market.min_price", 0.10)
	v.SetDefault("market.n_lookback", 50)

	v.SetDefault("traders.gamma", -0.02)
	v.SetDefault("traders.alpha", 0.2)
	v.SetDefault("traders.min_cost", 10.0)
	v.SetDefault("traders.internal_lookback", 50)
	v.SetDefault("traders.registration_stage_timeout", "500ms")
	v.SetDefault("traders.fleet_size", 30)

	v.SetDefault("fabric.rpc_timeout", "2s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8090)
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Market.TickPeriod <= 0 {
		return fmt.Errorf("market.tick_period must be > 0")
	}
	if c.Market.SalesTax < 0 || c.Market.SalesTax >= 1 {
		return fmt.Errorf("market.sales_tax must be in [0, 1)")
	}
	if c.Market.BrokerFee < 0 || c.Market.BrokerFee >= 1 {
		return fmt.Errorf("market.broker_fee must be in [0, 1)")
	}
	if c.Market.MinPrice <= 0 {
		return fmt.Errorf("market.min_price must be > 0")
	}
	if c.Market.NLookback <= 0 {
		return fmt.Errorf("market.n_lookback must be > 0")
	}
	if c.Traders.Alpha <= 0 || c.Traders.Alpha > 1 {
		return fmt.Errorf("traders.alpha must be in (0, 1]")
	}
	if c.Traders.MinCost < 0 {
		return fmt.Errorf("traders.min_cost must be >= 0")
	}
	if c.Traders.InternalLookback <= 0 {
		return fmt.Errorf("traders.internal_lookback must be > 0")
	}
	if c.Fabric.RPCTimeout <= 0 {
		return fmt.Errorf("fabric.rpc_timeout must be > 0")
	}
	return nil
}
