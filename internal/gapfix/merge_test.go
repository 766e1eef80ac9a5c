package gapfix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tucsky/aggr-ingest/internal/adapters"
)

func TestAppendMergeAppendsNewTradesInLogicalFormat(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trades.log"), []byte("1000 100 1 1 0\n"), 0o644))

	n, err := AppendMerge(dir, "trades.log", "BINANCE", "BTCUSDT", []adapters.RecoveredTrade{
		{TS: 2000, Price: 101, Size: 0.5, Side: adapters.SideSell},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(filepath.Join(dir, "trades.log"))
	require.NoError(t, err)
	assert.Equal(t, "1000 100 1 1 0\n2000 101 0.5 0 0\n", string(data))
}

func TestAppendMergeDeduplicatesExactMatches(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trades.log"), []byte("1000 100 1 1 0\n"), 0o644))

	n, err := AppendMerge(dir, "trades.log", "BINANCE", "BTCUSDT", []adapters.RecoveredTrade{
		{TS: 1000, Price: 100, Size: 1, Side: adapters.SideBuy},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	data, err := os.ReadFile(filepath.Join(dir, "trades.log"))
	require.NoError(t, err)
	assert.Equal(t, "1000 100 1 1 0\n", string(data))
}
