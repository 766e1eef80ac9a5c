package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFileOrFlags(t *testing.T) {
	cfg, err := Load(nil, "", true)
	require.NoError(t, err)
	assert.Equal(t, Defaults.BatchSize, cfg.BatchSize)
	assert.Equal(t, Defaults.Timeframe, cfg.Timeframe)
	assert.Equal(t, Defaults.Workers, cfg.Workers)
}

func TestLoadFileOverridesDefaultsAndFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"batchSize": 500, "collector": "RAM"}`), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("collector", "", "")
	require.NoError(t, flags.Set("collector", "PI"))

	cfg, err := Load(flags, path, false)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, "PI", cfg.Collector)
}

func TestLoadIgnoresFileWhenNoConfigSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"batchSize": 9999}`), 0o644))

	cfg, err := Load(nil, path, true)
	require.NoError(t, err)
	assert.Equal(t, Defaults.BatchSize, cfg.BatchSize)
}

func TestLoadFallsBackOnOutOfRangeNumbers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"batchSize": -5, "workers": 0}`), 0o644))

	cfg, err := Load(nil, path, false)
	require.NoError(t, err)
	assert.Equal(t, Defaults.BatchSize, cfg.BatchSize)
	assert.Equal(t, Defaults.Workers, cfg.Workers)
}

func TestTimeframeMsParsesUnits(t *testing.T) {
	ms, err := TimeframeMs("1m")
	require.NoError(t, err)
	assert.Equal(t, int64(60_000), ms)

	ms, err = TimeframeMs("1h")
	require.NoError(t, err)
	assert.Equal(t, int64(3_600_000), ms)

	_, err = TimeframeMs("bogus")
	assert.Error(t, err)
}
