package process

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tucsky/aggr-ingest/internal/candle"
	"github.com/tucsky/aggr-ingest/internal/catalog"
)

func newTestDB(t *testing.T) *catalog.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunProcessesFileAndMarksProcessed(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/data/trades.log", []byte(
		"1704067200000 100 1 1\n"+
			"1704067201000 101 0.5 0\n"+
			"garbage line\n",
	), 0o644))

	db := newTestDB(t)
	rootID, err := db.EnsureRoot("/data")
	require.NoError(t, err)
	_, err = db.InsertFiles([]catalog.File{
		{RootID: rootID, RelativePath: "trades.log", Collector: "RAM", Era: "logical", Exchange: "BINANCE", Symbol: "BTC-USDT", CreatedAt: 1},
	}, 1)
	require.NoError(t, err)

	opts := Options{
		Timeframe:            "1m",
		TimeframeMs:          60_000,
		NotionalCeiling:      1e9,
		FlushIntervalSeconds: 10,
		OutputDir:            "/out",
		RootPathByID:         map[int64]string{rootID: "/data"},
		NowMs:                func() int64 { return 42 },
	}

	res, err := Run(fsys, db, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesProcessed)
	assert.Equal(t, 2, res.TradesAccepted)
	assert.Equal(t, 1, res.TradesRejected)

	remaining, err := db.ProcessableFiles(catalog.FileFilter{})
	require.NoError(t, err)
	assert.Empty(t, remaining)

	exists, err := afero.Exists(fsys, "/out/RAM_BINANCE_BTC-USDT_1m_1704067200000.bin")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunMarksFailedFileWithoutStoppingBatch(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/data/good.log", []byte("1704067200000 100 1 1\n"), 0o644))

	db := newTestDB(t)
	rootID, err := db.EnsureRoot("/data")
	require.NoError(t, err)
	_, err = db.InsertFiles([]catalog.File{
		{RootID: rootID, RelativePath: "missing.log", Collector: "RAM", Era: "logical", CreatedAt: 1},
		{RootID: rootID, RelativePath: "good.log", Collector: "RAM", Era: "logical", CreatedAt: 1},
	}, 1)
	require.NoError(t, err)

	opts := Options{
		TimeframeMs:  60_000,
		RootPathByID: map[int64]string{rootID: "/data"},
		NowMs:        func() int64 { return 1 },
	}

	res, err := Run(fsys, db, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesFailed)
	assert.Equal(t, 1, res.FilesProcessed)
}

func TestReasonToKindMapsRejectionReasons(t *testing.T) {
	assert.Equal(t, "non_finite", string(reasonToKind(2)))
}

func TestWriteCandlesSkipsWhenNoOutputDir(t *testing.T) {
	fsys := afero.NewMemMapFs()
	acc := candle.NewAccumulator(1000)
	require.NoError(t, writeCandles(fsys, catalog.File{}, acc, Options{}))
}
