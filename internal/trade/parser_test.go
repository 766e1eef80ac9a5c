package trade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseValidLine(t *testing.T) {
	var res ParseResult
	ok := Parse([]byte("\t1704067200100   123.45\t0.5\t1"), DefaultNotionalCeiling, &res)
	assert.True(t, ok)
	assert.Equal(t, Trade{TS: 1704067200100, Price: 123.45, Size: 0.5, Side: SideBuy, Liquidation: false}, res.Trade)
}

func TestParseNotionalTooLarge(t *testing.T) {
	var res ParseResult
	ok := Parse([]byte("1704067200200 60000 20000 0 1"), DefaultNotionalCeiling, &res)
	assert.False(t, ok)
	assert.Equal(t, ReasonNotionalTooLarge, res.Reason)
}

func TestParsePartsShort(t *testing.T) {
	var res ParseResult
	ok := Parse([]byte("1704067200200 60000 20000"), DefaultNotionalCeiling, &res)
	assert.False(t, ok)
	assert.Equal(t, ReasonPartsShort, res.Reason)
}

func TestParseNonFinite(t *testing.T) {
	var res ParseResult
	ok := Parse([]byte("1704067200200 NaN 20000 1"), DefaultNotionalCeiling, &res)
	assert.False(t, ok)
	assert.Equal(t, ReasonNonFinite, res.Reason)
}

func TestParseSellAndLiquidationDefaults(t *testing.T) {
	var res ParseResult
	ok := Parse([]byte("1704067200200 100 1 0"), DefaultNotionalCeiling, &res)
	assert.True(t, ok)
	assert.Equal(t, SideSell, res.Trade.Side)
	assert.False(t, res.Trade.Liquidation)
}
