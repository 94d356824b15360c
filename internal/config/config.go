// Package config loads the exchange's runtime configuration from
// environment variables, with sane defaults so the process starts with
// no configuration at all.
package config

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the process-wide runtime configuration.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`

	OracleStartPrice decimal.Decimal
	OracleTick       time.Duration `mapstructure:"oracle_tick"`
	OracleSeed       int64         `mapstructure:"oracle_seed"`

	FundingIntervalTicks int `mapstructure:"funding_interval_ticks"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

const envPrefix = "PERPION"

// Load reads configuration from PERPION_* environment variables,
// falling back to defaults for anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", "0.0.0.0:8000")
	v.SetDefault("oracle_tick", "500ms")
	v.SetDefault("oracle_seed", int64(0))
	v.SetDefault("funding_interval_ticks", 57600) // ~8h of oracle ticks at the default 500ms cadence
	v.SetDefault("metrics_addr", "0.0.0.0:9090")

	cfg := &Config{
		ListenAddr:           v.GetString("listen_addr"),
		OracleStartPrice:     decimal.NewFromInt(50000),
		OracleTick:           v.GetDuration("oracle_tick"),
		OracleSeed:           v.GetInt64("oracle_seed"),
		FundingIntervalTicks: v.GetInt("funding_interval_ticks"),
		MetricsAddr:          v.GetString("metrics_addr"),
	}

	if start := v.GetString("oracle_start_price"); start != "" {
		if price, err := decimal.NewFromString(start); err == nil {
			cfg.OracleStartPrice = price
		}
	}

	return cfg, nil
}
