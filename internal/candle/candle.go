// Package candle bucketizes parsed trades into fixed-layout OHLCV records
// and writes them to dense or sparse binary artifacts. The accumulator
// follows the bucket-merge idiom of the reference candle aggregator
// (other_examples: yitech-candles aggregator.go, "merge" / pendingCandle),
// adapted from a multi-exchange real-time merge to a single-pass,
// single-exchange offline accumulation keyed by time slot.
package candle

import (
	"math"
	"sort"
)

// PriceScale and VolumeScale convert floating-point price/notional into the
// fixed-point integers stored on disk.
const (
	PriceScale  = 1e4
	VolumeScale = 1e6
)

// RecordBytes is the fixed on-disk size of one candle record, excluding the
// 8-byte slot prefix used by sparse files.
const RecordBytes = 56

// Side mirrors internal/trade.Side without importing it, so this package has
// no dependency on the parser.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

// Candle is one in-memory OHLCV bucket. Volumes are accumulated as int64
// quote-micro-units; see Overflowed for the saturation note in §4.8.
type Candle struct {
	Open, High, Low, Close int32
	BuyVol, SellVol        int64
	LiqBuy, LiqSell        int64
	BuyCount, SellCount    int32

	set        bool
	Overflowed bool
}

// Accumulator maps slot (floor(ts/timeframeMs) * timeframeMs) to Candle.
type Accumulator struct {
	TimeframeMs int64
	buckets     map[int64]*Candle
}

// NewAccumulator creates an Accumulator for the given timeframe, in
// milliseconds.
func NewAccumulator(timeframeMs int64) *Accumulator {
	return &Accumulator{TimeframeMs: timeframeMs, buckets: make(map[int64]*Candle)}
}

// Slot returns the bucket start for ts under this Accumulator's timeframe.
func (a *Accumulator) Slot(ts int64) int64 {
	return Slot(ts, a.TimeframeMs)
}

// Slot computes floor(ts/timeframeMs) * timeframeMs.
func Slot(ts, timeframeMs int64) int64 {
	if timeframeMs <= 0 {
		return ts
	}
	q := ts / timeframeMs
	if ts%timeframeMs != 0 && ts < 0 {
		q--
	}
	return q * timeframeMs
}

// Add folds one trade into the bucket for ts. Liquidation trades contribute
// only to LiqBuy/LiqSell and never move OHLC or BuyCount/SellCount.
func (a *Accumulator) Add(ts int64, price, size float64, side Side, liquidation bool) {
	slot := a.Slot(ts)
	c, ok := a.buckets[slot]
	if !ok {
		c = &Candle{}
		a.buckets[slot] = c
	}

	scaledPrice := int32(math.Round(price * PriceScale))
	notional := int64(math.Round(price * size * VolumeScale))

	if liquidation {
		if side == SideBuy {
			c.addLiq(&c.LiqBuy, notional)
		} else {
			c.addLiq(&c.LiqSell, notional)
		}
		return
	}

	if !c.set {
		c.Open = scaledPrice
		c.High = scaledPrice
		c.Low = scaledPrice
		c.set = true
	} else {
		if scaledPrice > c.High {
			c.High = scaledPrice
		}
		if scaledPrice < c.Low {
			c.Low = scaledPrice
		}
	}
	c.Close = scaledPrice

	if side == SideBuy {
		c.addLiq(&c.BuyVol, notional)
		c.BuyCount++
	} else {
		c.addLiq(&c.SellVol, notional)
		c.SellCount++
	}
}

// addLiq saturates dst+delta at MaxInt64, flagging Overflowed if it clamps.
func (c *Candle) addLiq(dst *int64, delta int64) {
	sum := *dst + delta
	if delta > 0 && sum < *dst {
		*dst = math.MaxInt64
		c.Overflowed = true
		return
	}
	*dst = sum
}

// Slots returns the populated slot keys, ascending.
func (a *Accumulator) Slots() []int64 {
	out := make([]int64, 0, len(a.buckets))
	for s := range a.buckets {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// At returns the Candle for slot, if populated.
func (a *Accumulator) At(slot int64) (Candle, bool) {
	c, ok := a.buckets[slot]
	if !ok {
		return Candle{}, false
	}
	return *c, true
}

// sparseDensityThreshold is the populated/total slot ratio below which
// ShouldUseSparse prefers sparse layout over dense, to avoid pathologically
// large all-zero dense files for thinly-traded symbols.
const sparseDensityThreshold = 0.15

// ShouldUseSparse reports whether acc's populated-slot density over its
// [minSlot, maxSlot] span falls below sparseDensityThreshold.
func ShouldUseSparse(acc *Accumulator) bool {
	slots := acc.Slots()
	if len(slots) < 2 {
		return false
	}
	span := (slots[len(slots)-1]-slots[0])/acc.TimeframeMs + 1
	if span <= 0 {
		return false
	}
	return float64(len(slots))/float64(span) < sparseDensityThreshold
}

// Reset clears the Accumulator for reuse without reallocating its map.
func (a *Accumulator) Reset() {
	for k := range a.buckets {
		delete(a.buckets, k)
	}
}
