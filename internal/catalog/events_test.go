package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFile(t *testing.T, db *DB, rootID int64, relPath string) {
	t.Helper()
	_, err := db.InsertFiles([]File{{RootID: rootID, RelativePath: relPath, Collector: "RAM", Era: "logical", Exchange: "BINANCE", Symbol: "BTC-USDT", CreatedAt: 1}}, 1)
	require.NoError(t, err)
}

func TestInsertEventsThenIterateGapEventsForFix(t *testing.T) {
	db := setupTestDB(t)
	rootID, err := db.EnsureRoot("/data/exports")
	require.NoError(t, err)
	seedFile(t, db, rootID, "binance/BTC-USDT/trades.log")

	evs := []Event{
		{Collector: "RAM", Exchange: "BINANCE", Symbol: "BTC-USDT", Type: "gap", StartLine: 10, EndLine: 10, GapMs: 5000, GapMiss: 2},
		{Collector: "RAM", Exchange: "BINANCE", Symbol: "BTC-USDT", Type: "parse_error", StartLine: 20, EndLine: 21},
	}
	require.NoError(t, db.InsertEvents(rootID, "binance/BTC-USDT/trades.log", evs))

	gapEvents, err := db.IterateGapEventsForFix(GapEventFilter{Symbol: "BTC-USDT"})
	require.NoError(t, err)
	require.Len(t, gapEvents, 1)
	assert.Equal(t, "gap", gapEvents[0].Type)
	assert.Equal(t, int64(5000), gapEvents[0].GapMs)
	assert.Equal(t, GapFixStatusNew, gapEvents[0].GapFixStatus)
}

func TestUpdateGapFixStatusTransitionsForward(t *testing.T) {
	db := setupTestDB(t)
	rootID, err := db.EnsureRoot("/data/exports")
	require.NoError(t, err)
	seedFile(t, db, rootID, "a.log")

	require.NoError(t, db.InsertEvents(rootID, "a.log", []Event{
		{Collector: "RAM", Exchange: "BINANCE", Symbol: "BTC-USDT", Type: "gap", StartLine: 1, EndLine: 1},
	}))

	pending, err := db.IterateGapEventsForFix(GapEventFilter{Symbol: "BTC-USDT"})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, db.UpdateGapFixStatus(pending[0].ID, GapFixStatusPending, true))

	none, err := db.IterateGapEventsForFix(GapEventFilter{Symbol: "BTC-USDT"})
	require.NoError(t, err)
	assert.Empty(t, none)

	pendingAgain, err := db.IterateGapEventsForFix(GapEventFilter{Symbol: "BTC-USDT", RetryStatuses: []string{"pending"}})
	require.NoError(t, err)
	require.Len(t, pendingAgain, 1)
	assert.Equal(t, GapFixStatusPending, pendingAgain[0].GapFixStatus)
	assert.Equal(t, 1, pendingAgain[0].GapFixAttempts)
}

func TestIterateGapEventsForFixOrdersBySymbolThenTSThenID(t *testing.T) {
	db := setupTestDB(t)
	rootID, err := db.EnsureRoot("/data/exports")
	require.NoError(t, err)
	seedFile(t, db, rootID, "a.log")

	require.NoError(t, db.InsertEvents(rootID, "a.log", []Event{
		{Collector: "RAM", Symbol: "ETH-USDT", Type: "gap", StartLine: 5, EndLine: 5, TS: 500},
		{Collector: "RAM", Symbol: "BTC-USDT", Type: "gap", StartLine: 10, EndLine: 10, TS: 1000},
		{Collector: "RAM", Symbol: "BTC-USDT", Type: "gap", StartLine: 2, EndLine: 2, TS: 200},
	}))

	rows, err := db.IterateGapEventsForFix(GapEventFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "BTC-USDT", rows[0].Symbol)
	assert.Equal(t, int64(200), rows[0].TS)
	assert.Equal(t, "BTC-USDT", rows[1].Symbol)
	assert.Equal(t, int64(1000), rows[1].TS)
	assert.Equal(t, "ETH-USDT", rows[2].Symbol)
}
