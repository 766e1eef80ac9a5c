package candle

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDenseFillsGapsWithZeroRecords(t *testing.T) {
	fsys := afero.NewMemMapFs()
	acc := NewAccumulator(1000)
	acc.Add(0, 100, 1, SideBuy, false)
	acc.Add(2000, 200, 1, SideBuy, false)

	require.NoError(t, WriteDense(fsys, "/out/candles.bin", acc))

	data, err := afero.ReadFile(fsys, "/out/candles.bin")
	require.NoError(t, err)
	assert.Len(t, data, RecordBytes*3)

	first, err := DecodeRecord(data[0:RecordBytes])
	require.NoError(t, err)
	assert.Equal(t, int32(1_000_000), first.Open)

	middle, err := DecodeRecord(data[RecordBytes : RecordBytes*2])
	require.NoError(t, err)
	assert.Zero(t, middle)

	last, err := DecodeRecord(data[RecordBytes*2:])
	require.NoError(t, err)
	assert.Equal(t, int32(2_000_000), last.Open)
}

func TestWriteSparseOnlyPopulatedSlots(t *testing.T) {
	fsys := afero.NewMemMapFs()
	acc := NewAccumulator(1000)
	acc.Add(0, 100, 1, SideBuy, false)
	acc.Add(5000, 200, 1, SideBuy, false)

	require.NoError(t, WriteSparse(fsys, "/out/candles.sparse", acc))

	data, err := afero.ReadFile(fsys, "/out/candles.sparse")
	require.NoError(t, err)
	assert.Len(t, data, (8+RecordBytes)*2)
}

func TestWriteAtomicLeavesNoTempFileBehind(t *testing.T) {
	fsys := afero.NewMemMapFs()
	acc := NewAccumulator(1000)
	acc.Add(0, 100, 1, SideBuy, false)

	require.NoError(t, WriteDense(fsys, "/out/candles.bin", acc))

	exists, err := afero.Exists(fsys, "/out/candles.bin.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDecodeRecordRejectsWrongSize(t *testing.T) {
	_, err := DecodeRecord([]byte{1, 2, 3})
	assert.Error(t, err)
}
