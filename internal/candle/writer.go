package candle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteDense emits one RecordBytes record for every slot in [minSlot,
// maxSlot] (inclusive, stepping by timeframeMs); missing slots are
// all-zero records (gap markers). The file is written to a temp sibling
// and atomically renamed into place, following the teacher's SafeCopy
// write-then-rename idiom (sync/fileops.go).
func WriteDense(fsys afero.Fs, path string, acc *Accumulator) error {
	slots := acc.Slots()
	if len(slots) == 0 {
		return writeAtomic(fsys, path, nil)
	}

	minSlot, maxSlot := slots[0], slots[len(slots)-1]
	var buf bytes.Buffer
	for slot := minSlot; slot <= maxSlot; slot += acc.TimeframeMs {
		c, ok := acc.At(slot)
		if !ok {
			buf.Write(make([]byte, RecordBytes))
			continue
		}
		rec := encodeRecord(c)
		buf.Write(rec[:])
	}
	return writeAtomic(fsys, path, buf.Bytes())
}

// WriteSparse emits one (int64 slot, RecordBytes record) tuple per
// populated slot, in ascending slot order.
func WriteSparse(fsys afero.Fs, path string, acc *Accumulator) error {
	slots := acc.Slots()
	var buf bytes.Buffer
	for _, slot := range slots {
		c, _ := acc.At(slot)
		var slotBytes [8]byte
		binary.LittleEndian.PutUint64(slotBytes[:], uint64(slot))
		buf.Write(slotBytes[:])
		rec := encodeRecord(c)
		buf.Write(rec[:])
	}
	return writeAtomic(fsys, path, buf.Bytes())
}

// encodeRecord serializes c into the frozen 56-byte little-endian layout:
// open, high, low, close (i32 each), buyVol, sellVol (i64 each), buyCount,
// sellCount (i32 each), liqBuy, liqSell (i64 each).
func encodeRecord(c Candle) [RecordBytes]byte {
	var rec [RecordBytes]byte
	binary.LittleEndian.PutUint32(rec[0:4], uint32(c.Open))
	binary.LittleEndian.PutUint32(rec[4:8], uint32(c.High))
	binary.LittleEndian.PutUint32(rec[8:12], uint32(c.Low))
	binary.LittleEndian.PutUint32(rec[12:16], uint32(c.Close))
	binary.LittleEndian.PutUint64(rec[16:24], uint64(c.BuyVol))
	binary.LittleEndian.PutUint64(rec[24:32], uint64(c.SellVol))
	binary.LittleEndian.PutUint32(rec[32:36], uint32(c.BuyCount))
	binary.LittleEndian.PutUint32(rec[36:40], uint32(c.SellCount))
	binary.LittleEndian.PutUint64(rec[40:48], uint64(c.LiqBuy))
	binary.LittleEndian.PutUint64(rec[48:56], uint64(c.LiqSell))
	return rec
}

// DecodeRecord parses one RecordBytes-sized slice back into a Candle, for
// tests and tooling that need to read artifacts back.
func DecodeRecord(b []byte) (Candle, error) {
	if len(b) != RecordBytes {
		return Candle{}, fmt.Errorf("candle: record must be %d bytes, got %d", RecordBytes, len(b))
	}
	return Candle{
		Open:      int32(binary.LittleEndian.Uint32(b[0:4])),
		High:      int32(binary.LittleEndian.Uint32(b[4:8])),
		Low:       int32(binary.LittleEndian.Uint32(b[8:12])),
		Close:     int32(binary.LittleEndian.Uint32(b[12:16])),
		BuyVol:    int64(binary.LittleEndian.Uint64(b[16:24])),
		SellVol:   int64(binary.LittleEndian.Uint64(b[24:32])),
		BuyCount:  int32(binary.LittleEndian.Uint32(b[32:36])),
		SellCount: int32(binary.LittleEndian.Uint32(b[36:40])),
		LiqBuy:    int64(binary.LittleEndian.Uint64(b[40:48])),
		LiqSell:   int64(binary.LittleEndian.Uint64(b[48:56])),
	}, nil
}

// writeAtomic writes data to a temp sibling of path, fsyncs it, and renames
// it into place, so a reader never observes a partial file.
func writeAtomic(fsys afero.Fs, path string, data []byte) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("candle: mkdir parent: %w", err)
	}

	tmpPath := path + ".tmp"
	tmp, err := fsys.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("candle: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("candle: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("candle: fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("candle: close temp: %w", err)
	}

	if err := fsys.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("candle: rename temp to final: %w", err)
	}
	return nil
}
