package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyLogicalUTC(t *testing.T) {
	f, err := Classify("binance/BTC-USDT/2024/03/15-08/trades.log", "RAM")
	require.NoError(t, err)
	assert.Equal(t, EraLogical, f.Era)
	assert.Equal(t, "BINANCE", f.Exchange)
	assert.Equal(t, "BTC-USDT", f.Symbol)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC).UnixMilli(), f.StartTS)
	assert.Equal(t, ".log", f.Ext)
}

func TestClassifyLegacyParisDST(t *testing.T) {
	// 2024-10-27 is the last Sunday of October; hour 03 local is UTC+1 (post
	// fallback), i.e. 02:00 UTC.
	f, err := Classify("kraken/ETH-EUR/2024-10-27-03/trades.log", "PI")
	require.NoError(t, err)
	assert.Equal(t, EraLegacy, f.Era)
	assert.Equal(t, Collector("PI"), f.Collector)
	assert.Equal(t, "KRAKEN", f.Exchange)
	assert.Equal(t, "ETH-EUR", f.Symbol)
	assert.Equal(t, time.Date(2024, 10, 27, 2, 0, 0, 0, time.UTC).UnixMilli(), f.StartTS)
}

func TestClassifyLegacyParisSpringForward(t *testing.T) {
	// 2024-03-31 is the last Sunday of March; hour 02 local never legally
	// exists. Per convention this resolves to UTC+2 (00:00 UTC).
	f, err := Classify("RAM/kraken/ETH-EUR/2024-03-31-02/trades.log", "RAM")
	require.NoError(t, err)
	assert.Equal(t, Collector("RAM"), f.Collector)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC).UnixMilli(), f.StartTS)
}

func TestClassifyUnrecognized(t *testing.T) {
	_, err := Classify("misc/readme.txt", "RAM")
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestClassifyCollectorHintFromRootWhenPathAmbiguous(t *testing.T) {
	f, err := Classify("okx/BTC-USDT/2024/01/02/trades.log", "PI")
	require.NoError(t, err)
	assert.Equal(t, CollectorPI, f.Collector)
}
