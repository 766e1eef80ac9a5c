package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesSchema(t *testing.T) {
	db := setupTestDB(t)
	var name string
	require.NoError(t, db.sql.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='files'").Scan(&name))
	assert.Equal(t, "files", name)
}

func TestEnsureRootIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	id1, err := db.EnsureRoot("/data/exports")
	require.NoError(t, err)

	id2, err := db.EnsureRoot("/data/exports")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
}

func TestInsertFilesCountsExistingOnRerun(t *testing.T) {
	db := setupTestDB(t)
	rootID, err := db.EnsureRoot("/data/exports")
	require.NoError(t, err)

	batch := []File{
		{RootID: rootID, RelativePath: "binance/BTC-USDT/2024/01/02/trades.log", Collector: "RAM", Era: "logical", Exchange: "BINANCE", Symbol: "BTC-USDT", StartTS: 1704153600000, HasStartTS: true, CreatedAt: 1},
	}

	res1, err := db.InsertFiles(batch, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res1.Inserted)
	assert.Zero(t, res1.Existing)

	res2, err := db.InsertFiles(batch, 3)
	require.NoError(t, err)
	assert.Zero(t, res2.Inserted)
	assert.Equal(t, 1, res2.Existing)
	assert.Zero(t, res2.Conflicts)
}

func TestInsertFilesDetectsConflictWithoutOverwriting(t *testing.T) {
	db := setupTestDB(t)
	rootID, err := db.EnsureRoot("/data/exports")
	require.NoError(t, err)

	first := []File{{RootID: rootID, RelativePath: "binance/BTC-USDT/2024/01/02/trades.log", Collector: "RAM", Era: "logical", Exchange: "BINANCE", Symbol: "BTC-USDT", StartTS: 1, HasStartTS: true, CreatedAt: 1}}
	_, err = db.InsertFiles(first, 1)
	require.NoError(t, err)

	conflicting := []File{{RootID: rootID, RelativePath: "binance/BTC-USDT/2024/01/02/trades.log", Collector: "PI", Era: "logical", Exchange: "BINANCE", Symbol: "BTC-USDT", StartTS: 1, HasStartTS: true, CreatedAt: 1}}
	res, err := db.InsertFiles(conflicting, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Existing)
	assert.Equal(t, 1, res.Conflicts)

	files, err := db.ProcessableFiles(FileFilter{Force: true})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, Collector("RAM"), files[0].Collector)
}

func TestMarkProcessedExcludesFromNonForceFilter(t *testing.T) {
	db := setupTestDB(t)
	rootID, err := db.EnsureRoot("/data/exports")
	require.NoError(t, err)

	batch := []File{{RootID: rootID, RelativePath: "a.log", Collector: "RAM", Era: "logical", CreatedAt: 1}}
	_, err = db.InsertFiles(batch, 1)
	require.NoError(t, err)

	require.NoError(t, db.MarkProcessed(rootID, "a.log", 42))

	files, err := db.ProcessableFiles(FileFilter{})
	require.NoError(t, err)
	assert.Empty(t, files)

	all, err := db.ProcessableFiles(FileFilter{Force: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(42), all[0].ProcessedAt)
}

func TestMarkFailedRecordsReason(t *testing.T) {
	db := setupTestDB(t)
	rootID, err := db.EnsureRoot("/data/exports")
	require.NoError(t, err)

	batch := []File{{RootID: rootID, RelativePath: "a.log", Collector: "RAM", Era: "logical", CreatedAt: 1}}
	_, err = db.InsertFiles(batch, 1)
	require.NoError(t, err)

	require.NoError(t, db.MarkFailed(rootID, "a.log", "permission denied"))

	files, err := db.ProcessableFiles(FileFilter{Force: true})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].Failed)
	assert.Equal(t, "permission denied", files[0].FailedReason)
}
