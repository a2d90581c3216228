// Package config defines the engine configuration: named, validated fields
// with explicit defaults, loadable from YAML or JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Engine    EngineConfig    `json:"engine" yaml:"engine"`
	Risk      RiskConfig      `json:"risk" yaml:"risk"`
	Health    HealthConfig    `json:"health" yaml:"health"`
	Drawdown  DrawdownConfig  `json:"drawdown" yaml:"drawdown"`
	DataQ     DataQConfig     `json:"data_quality" yaml:"data_quality"`
	Entry     EntryConfig     `json:"entry" yaml:"entry"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
	Pyramid   PyramidConfig   `json:"pyramid" yaml:"pyramid"`
	Sim       SimConfig       `json:"simulation" yaml:"simulation"`
	Regime    RegimeConfig    `json:"regime" yaml:"regime"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// EngineConfig holds process-wide trading parameters.
type EngineConfig struct {
	Simulation      bool     `json:"simulation" yaml:"simulation"`
	DryRunOrders    bool     `json:"dry_run_orders" yaml:"dry_run_orders"`
	MaxLeverage     int      `json:"max_leverage" yaml:"max_leverage"`
	ReadinessHours  float64  `json:"readiness_hours" yaml:"readiness_hours"`
	ParkFlagPath    string   `json:"park_flag_path" yaml:"park_flag_path"`
	TradeBalanceCap float64  `json:"trade_balance_cap" yaml:"trade_balance_cap"` // 0 = uncapped
	MonitorInterval Duration `json:"monitor_interval" yaml:"monitor_interval"`
	SafeAssets      []string `json:"safe_assets" yaml:"safe_assets"`
}

// RiskConfig holds sleeve risk percentages and the hybrid split parameters.
type RiskConfig struct {
	NuclearPct     float64 `json:"nuclear_pct" yaml:"nuclear_pct"`
	SafePct        float64 `json:"safe_pct" yaml:"safe_pct"`
	SplitThreshold float64 `json:"split_threshold" yaml:"split_threshold"`
	AggressivePct  float64 `json:"aggressive_pct" yaml:"aggressive_pct"`
	MinAggressive  float64 `json:"min_aggressive" yaml:"min_aggressive"`
}

// HealthConfig tunes the exchange-health state machine.
type HealthConfig struct {
	DegradedFailures int      `json:"degraded_failures" yaml:"degraded_failures"`
	OutageFailures   int      `json:"outage_failures" yaml:"outage_failures"`
	RecoverStreak    int      `json:"recover_streak" yaml:"recover_streak"`
	OutageFlatten    Duration `json:"outage_flatten" yaml:"outage_flatten"`
	BlockRecovering  bool     `json:"block_recovering" yaml:"block_recovering"`
	CheckInterval    Duration `json:"check_interval" yaml:"check_interval"`
}

// DrawdownConfig tunes the equity drawdown circuit breaker.
type DrawdownConfig struct {
	DailyLimitPct  float64  `json:"daily_limit_pct" yaml:"daily_limit_pct"`
	WeeklyLimitPct float64  `json:"weekly_limit_pct" yaml:"weekly_limit_pct"`
	ATHLimitPct    float64  `json:"ath_limit_pct" yaml:"ath_limit_pct"`
	CheckInterval  Duration `json:"check_interval" yaml:"check_interval"`
	AutoFlatten    bool     `json:"auto_flatten" yaml:"auto_flatten"`
	AutoPark       bool     `json:"auto_park" yaml:"auto_park"`
}

// DataQConfig tunes the pre-decision data quality gate.
type DataQConfig struct {
	MaxPriceAge         Duration `json:"max_price_age" yaml:"max_price_age"`
	MinBasketSize       int      `json:"min_basket_size" yaml:"min_basket_size"`
	MinFreshRatio       float64  `json:"min_fresh_ratio" yaml:"min_fresh_ratio"`
	MinATRCoverageRatio float64  `json:"min_atr_coverage_ratio" yaml:"min_atr_coverage_ratio"`
}

// EntryConfig tunes the per-trade entry quality gate.
type EntryConfig struct {
	MinPumpScore    int     `json:"min_pump_score" yaml:"min_pump_score"`
	MinVolSpike     float64 `json:"min_vol_spike" yaml:"min_vol_spike"`
	MinRRAggressive float64 `json:"min_rr_aggressive" yaml:"min_rr_aggressive"`
	MinRRSafe       float64 `json:"min_rr_safe" yaml:"min_rr_safe"`
}

// ExecutionConfig tunes the order router escalation and the market guard.
type ExecutionConfig struct {
	PostOnlyEnabled       bool    `json:"post_only_enabled" yaml:"post_only_enabled"`
	PostOnlyOffsetPct     float64 `json:"post_only_offset_pct" yaml:"post_only_offset_pct"`
	IOCEnabled            bool    `json:"ioc_enabled" yaml:"ioc_enabled"`
	IOCSlippagePct        float64 `json:"ioc_slippage_pct" yaml:"ioc_slippage_pct"`
	MarketEnabled         bool    `json:"market_enabled" yaml:"market_enabled"`
	GuardMaxSpreadPct     float64 `json:"guard_max_spread_pct" yaml:"guard_max_spread_pct"`
	GuardMaxSizeToVol1m   float64 `json:"guard_max_size_to_vol1m_pct" yaml:"guard_max_size_to_vol1m_pct"`
	GuardLimitRetry       bool    `json:"guard_limit_retry" yaml:"guard_limit_retry"`
	GuardRetrySlippagePct float64 `json:"guard_retry_slippage_pct" yaml:"guard_retry_slippage_pct"`
}

// PyramidConfig tunes position adds into profitable trades.
type PyramidConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	RRTrigger      float64 `json:"rr_trigger" yaml:"rr_trigger"`
	AddFraction    float64 `json:"add_fraction" yaml:"add_fraction"`
	MaxAdds        int     `json:"max_adds" yaml:"max_adds"`
	MinConviction  int     `json:"min_conviction" yaml:"min_conviction"`
	MaxExposurePct float64 `json:"max_exposure_pct" yaml:"max_exposure_pct"`
}

// SimConfig tunes the paper-fill accounting model.
type SimConfig struct {
	TakerFeeRate     float64 `json:"taker_fee_rate" yaml:"taker_fee_rate"`
	FundingRatePer8h float64 `json:"funding_rate_per_8h" yaml:"funding_rate_per_8h"`
	SlippageMinPct   float64 `json:"slippage_min_pct" yaml:"slippage_min_pct"`
	SlippageMaxPct   float64 `json:"slippage_max_pct" yaml:"slippage_max_pct"`
	SlippageATRMult  float64 `json:"slippage_atr_mult" yaml:"slippage_atr_mult"`
}

// RegimeConfig tunes the market regime classifier and its risk profiles.
type RegimeConfig struct {
	Asset           string   `json:"asset" yaml:"asset"`
	LookbackPoints  int      `json:"lookback_points" yaml:"lookback_points"`
	TrendReturnPct  float64  `json:"trend_return_pct" yaml:"trend_return_pct"`
	HighVolATRPct   float64  `json:"high_vol_atr_pct" yaml:"high_vol_atr_pct"`
	TrendNoiseRatio float64  `json:"trend_noise_ratio" yaml:"trend_noise_ratio"`
	CheckInterval   Duration `json:"check_interval" yaml:"check_interval"`

	Trend   RegimeProfileConfig `json:"trend" yaml:"trend"`
	Chop    RegimeProfileConfig `json:"chop" yaml:"chop"`
	HighVol RegimeProfileConfig `json:"high_vol" yaml:"high_vol"`
}

// RegimeProfileConfig is the sizing triple attached to one regime.
type RegimeProfileConfig struct {
	RiskMult    float64 `json:"risk_mult" yaml:"risk_mult"`
	LeverageCap int     `json:"leverage_cap" yaml:"leverage_cap"`
	MinRRAdd    float64 `json:"min_rr_add" yaml:"min_rr_add"`
}

// StoreConfig locates the durable SQLite store.
type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

// LogConfig tunes logging output.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// Default returns a configuration with the stock thresholds.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Simulation:      true,
			DryRunOrders:    true,
			MaxLeverage:     10,
			ReadinessHours:  12,
			ParkFlagPath:    "parked.flag",
			MonitorInterval: Duration(5 * time.Second),
			SafeAssets:      []string{"BTC-PERP-INTX", "ETH-PERP-INTX", "SOL-PERP-INTX"},
		},
		Risk: RiskConfig{
			NuclearPct:     0.12,
			SafePct:        0.015,
			SplitThreshold: 10000,
			AggressivePct:  0.10,
			MinAggressive:  1000,
		},
		Health: HealthConfig{
			DegradedFailures: 2,
			OutageFailures:   5,
			RecoverStreak:    2,
			OutageFlatten:    Duration(5 * time.Minute),
			BlockRecovering:  true,
			CheckInterval:    Duration(5 * time.Second),
		},
		Drawdown: DrawdownConfig{
			DailyLimitPct:  5.0,
			WeeklyLimitPct: 17.5,
			ATHLimitPct:    30.0,
			CheckInterval:  Duration(time.Minute),
			AutoFlatten:    true,
			AutoPark:       true,
		},
		DataQ: DataQConfig{
			MaxPriceAge:         Duration(20 * time.Second),
			MinBasketSize:       10,
			MinFreshRatio:       0.60,
			MinATRCoverageRatio: 0.50,
		},
		Entry: EntryConfig{
			MinPumpScore:    15,
			MinVolSpike:     1.0,
			MinRRAggressive: 1.5,
			MinRRSafe:       2.0,
		},
		Execution: ExecutionConfig{
			PostOnlyEnabled:       true,
			PostOnlyOffsetPct:     0.02,
			IOCEnabled:            true,
			IOCSlippagePct:        0.05,
			MarketEnabled:         true,
			GuardMaxSpreadPct:     0.35,
			GuardMaxSizeToVol1m:   0.5,
			GuardLimitRetry:       true,
			GuardRetrySlippagePct: 0.08,
		},
		Pyramid: PyramidConfig{
			Enabled:        true,
			RRTrigger:      1.5,
			AddFraction:    0.30,
			MaxAdds:        2,
			MinConviction:  80,
			MaxExposurePct: 0.18,
		},
		Sim: SimConfig{
			TakerFeeRate:     0.0006,
			FundingRatePer8h: 0.0003,
			SlippageMinPct:   0.10,
			SlippageMaxPct:   0.50,
			SlippageATRMult:  0.50,
		},
		Regime: RegimeConfig{
			Asset:           "BTC-PERP-INTX",
			LookbackPoints:  60,
			TrendReturnPct:  0.8,
			HighVolATRPct:   2.5,
			TrendNoiseRatio: 1.5,
			CheckInterval:   Duration(30 * time.Second),
			Trend:           RegimeProfileConfig{RiskMult: 1.0, LeverageCap: 8, MinRRAdd: 0.0},
			Chop:            RegimeProfileConfig{RiskMult: 0.7, LeverageCap: 5, MinRRAdd: 0.2},
			HighVol:         RegimeProfileConfig{RiskMult: 0.5, LeverageCap: 3, MinRRAdd: 0.3},
		},
		Store: StoreConfig{Path: "pitrader.db"},
		Log:   LogConfig{Level: "info"},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file, applied on top
// of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency. It mirrors the clamping the
// original thresholds carried: limits must stay ordered and ratios in range.
func (c *Config) Validate() error {
	if c.Engine.MaxLeverage < 1 {
		return fmt.Errorf("engine.max_leverage must be >= 1")
	}
	if c.Engine.MonitorInterval <= 0 {
		return fmt.Errorf("engine.monitor_interval must be positive")
	}
	if c.Risk.NuclearPct <= 0 || c.Risk.NuclearPct > 1 {
		return fmt.Errorf("risk.nuclear_pct must be in (0, 1]")
	}
	if c.Risk.SafePct <= 0 || c.Risk.SafePct > 1 {
		return fmt.Errorf("risk.safe_pct must be in (0, 1]")
	}
	if c.Health.DegradedFailures < 1 {
		return fmt.Errorf("health.degraded_failures must be >= 1")
	}
	if c.Health.OutageFailures <= c.Health.DegradedFailures {
		return fmt.Errorf("health.outage_failures must exceed degraded_failures")
	}
	if c.Health.RecoverStreak < 1 {
		return fmt.Errorf("health.recover_streak must be >= 1")
	}
	if c.Health.OutageFlatten.Std() < 30*time.Second {
		return fmt.Errorf("health.outage_flatten must be at least 30s")
	}
	if c.Drawdown.DailyLimitPct <= 0 || c.Drawdown.WeeklyLimitPct <= 0 || c.Drawdown.ATHLimitPct <= 0 {
		return fmt.Errorf("drawdown limits must be positive")
	}
	if c.DataQ.MinBasketSize < 1 {
		return fmt.Errorf("data_quality.min_basket_size must be >= 1")
	}
	if c.DataQ.MinFreshRatio < 0 || c.DataQ.MinFreshRatio > 1 {
		return fmt.Errorf("data_quality.min_fresh_ratio must be in [0, 1]")
	}
	if c.DataQ.MinATRCoverageRatio < 0 || c.DataQ.MinATRCoverageRatio > 1 {
		return fmt.Errorf("data_quality.min_atr_coverage_ratio must be in [0, 1]")
	}
	if c.Pyramid.AddFraction <= 0 || c.Pyramid.AddFraction > 1 {
		return fmt.Errorf("pyramid.add_fraction must be in (0, 1]")
	}
	if c.Pyramid.MaxExposurePct <= 0 || c.Pyramid.MaxExposurePct > 1 {
		return fmt.Errorf("pyramid.max_exposure_pct must be in (0, 1]")
	}
	if c.Sim.SlippageMaxPct < c.Sim.SlippageMinPct {
		return fmt.Errorf("simulation.slippage_max_pct must be >= slippage_min_pct")
	}
	if c.Regime.LookbackPoints < 20 {
		return fmt.Errorf("regime.lookback_points must be >= 20")
	}
	if strings.TrimSpace(c.Regime.Asset) == "" {
		return fmt.Errorf("regime.asset is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	return nil
}

// IsSafeAsset reports whether an asset is on the safe-sleeve allowlist.
// The allowlist is matched by base symbol, so a BTC-PERP-INTX entry also
// admits BTC-USD and BTC-USDC.
func (c *Config) IsSafeAsset(asset string) bool {
	base := baseSymbol(asset)
	for _, a := range c.Engine.SafeAssets {
		if a == asset || baseSymbol(a) == base {
			return true
		}
	}
	return false
}

// baseSymbol strips the venue suffix from an asset symbol.
func baseSymbol(asset string) string {
	for _, suffix := range []string{"-PERP-INTX", "-USDC", "-USD"} {
		if strings.HasSuffix(asset, suffix) {
			return strings.TrimSuffix(asset, suffix)
		}
	}
	return asset
}
