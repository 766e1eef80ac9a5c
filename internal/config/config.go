// Package config layers CLI flags over an optional JSON config file over
// built-in defaults, via viper, per §6 (CLI flags override file, file
// overrides defaults). Unknown keys are ignored; out-of-range numbers fall
// back to defaults.
package config

import (
	"fmt"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully-resolved runtime configuration.
type Config struct {
	Root                 string   `mapstructure:"root"`
	DBPath               string   `mapstructure:"dbPath"`
	BatchSize            int      `mapstructure:"batchSize"`
	IncludePaths         []string `mapstructure:"includePaths"`
	Collector            string   `mapstructure:"collector"`
	Exchange             string   `mapstructure:"exchange"`
	Symbol               string   `mapstructure:"symbol"`
	OutDir               string   `mapstructure:"outDir"`
	Force                bool     `mapstructure:"force"`
	Timeframe            string   `mapstructure:"timeframe"`
	SparseOutput         bool     `mapstructure:"sparseOutput"`
	Workers              int      `mapstructure:"workers"`
	FlushIntervalSeconds int      `mapstructure:"flushIntervalSeconds"`
}

// Defaults are applied before the config file and flags are layered on.
var Defaults = Config{
	DBPath:               "~/.aggr-ingest/catalog.db",
	BatchSize:            1000,
	Timeframe:            "1m",
	Workers:              1,
	FlushIntervalSeconds: 10,
}

// Load resolves a Config from defaults, an optional JSON config file, and
// CLI flags (in that precedence order, flags winning).
func Load(flags *pflag.FlagSet, configPath string, noConfig bool) (Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	v.SetDefault("dbPath", Defaults.DBPath)
	v.SetDefault("batchSize", Defaults.BatchSize)
	v.SetDefault("timeframe", Defaults.Timeframe)
	v.SetDefault("workers", Defaults.Workers)
	v.SetDefault("flushIntervalSeconds", Defaults.FlushIntervalSeconds)

	if !noConfig && configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg = applyOutOfRangeFallbacks(cfg)

	expanded, err := homedir.Expand(cfg.DBPath)
	if err == nil {
		cfg.DBPath = expanded
	}

	return cfg, nil
}

// applyOutOfRangeFallbacks resets numeric fields to their default when a
// config file or flag supplied a non-positive value, per §9's "out-of-range
// numbers fall back to defaults" design note.
func applyOutOfRangeFallbacks(cfg Config) Config {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = Defaults.BatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = Defaults.Workers
	}
	if cfg.FlushIntervalSeconds <= 0 {
		cfg.FlushIntervalSeconds = Defaults.FlushIntervalSeconds
	}
	if strings.TrimSpace(cfg.Timeframe) == "" {
		cfg.Timeframe = Defaults.Timeframe
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = Defaults.DBPath
	}
	return cfg
}

// flagToKey maps cobra/pflag names (hyphenated CLI convention) onto the
// viper/mapstructure keys used by the JSON config file, since the two
// naming conventions differ (e.g. --flush-interval vs flushIntervalSeconds).
var flagToKey = map[string]string{
	"root":           "root",
	"db":             "dbPath",
	"batch":          "batchSize",
	"include":        "includePaths",
	"collector":      "collector",
	"exchange":       "exchange",
	"symbol":         "symbol",
	"outdir":         "outDir",
	"force":          "force",
	"timeframe":      "timeframe",
	"sparse-output":  "sparseOutput",
	"flush-interval": "flushIntervalSeconds",
}

// bindFlags binds every recognized, explicitly-set flag in flags to its
// viper key so that CLI values override the config file and defaults.
// Flags the caller never set are left alone, so viper falls through to the
// file/default layers beneath.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagToKey[f.Name]
		if !ok || !f.Changed {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("config: bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// TimeframeMs canonicalizes a "<n><s|m|h|d>" timeframe string into
// milliseconds.
func TimeframeMs(timeframe string) (int64, error) {
	timeframe = strings.TrimSpace(timeframe)
	if timeframe == "" {
		return 0, fmt.Errorf("config: empty timeframe")
	}

	unit := timeframe[len(timeframe)-1]
	numPart := timeframe[:len(timeframe)-1]

	var n int64
	if _, err := fmt.Sscanf(numPart, "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("config: invalid timeframe %q", timeframe)
	}

	switch unit {
	case 's':
		return n * 1_000, nil
	case 'm':
		return n * 60_000, nil
	case 'h':
		return n * 3_600_000, nil
	case 'd':
		return n * 86_400_000, nil
	default:
		return 0, fmt.Errorf("config: unknown timeframe unit in %q", timeframe)
	}
}
