// Package gaptracker maintains a time-weighted moving average of
// inter-trade deltas and flags deltas that exceed an adaptive threshold as
// gaps. No suitable third-party gap/EMA library exists in the retrieved
// corpus; this is built on the standard library, following the teacher's
// small mutex-guarded accumulator idiom (sync/pathcache.go, sync/eventbus.go)
// generalized from a path→value map to a single running average.
package gaptracker

// Default calibration constants: k controls how many multiples of the
// running average constitute a gap; MinThresholdMs floors the threshold so
// a near-zero average (bursty start-of-stream) doesn't trigger spurious
// gaps.
const (
	DefaultK              = 10.0
	DefaultMinThresholdMs = 500.0
	// maxBlendWeight caps the influence any single gap sample has on the
	// running average, so one enormous outage can't pin the average at a
	// huge value forever.
	maxBlendWeight = 0.5
)

// Gap describes a detected gap.
type Gap struct {
	GapMs   int64
	GapMiss int64
}

// Tracker holds the running state for one (collector,exchange,symbol,timeframe)
// processing stream.
type Tracker struct {
	K              float64
	MinThresholdMs float64

	avgGapMs    float64
	samples     int64
	lastTradeTs int64
	hasLast     bool
}

// New creates a Tracker with default calibration.
func New() *Tracker {
	return &Tracker{K: DefaultK, MinThresholdMs: DefaultMinThresholdMs}
}

// Snapshot is the serializable state of a Tracker, used to resume
// processing across runs without re-deriving the average from scratch.
type Snapshot struct {
	GapAvgMs    float64
	GapSamples  int64
	LastTradeTs int64
}

// Snapshot captures the current state.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{GapAvgMs: t.avgGapMs, GapSamples: t.samples, LastTradeTs: t.lastTradeTs}
}

// Restore resumes a Tracker from a prior Snapshot.
func (t *Tracker) Restore(s Snapshot) {
	t.avgGapMs = s.GapAvgMs
	t.samples = s.GapSamples
	t.lastTradeTs = s.LastTradeTs
	t.hasLast = s.LastTradeTs != 0 || s.GapSamples != 0
}

// RecordGap ingests a trade timestamp and returns a Gap when the
// inter-trade delta reaches or exceeds the adaptive threshold.
//
// windowMs is the aggregation window (e.g. the candle timeframe in ms)
// used to time-weight how aggressively normal deltas move the average: a
// short window makes tight trades move the average faster.
func (t *Tracker) RecordGap(ts int64, windowMs int64) (Gap, bool) {
	if t.hasLast && ts < t.lastTradeTs {
		// Out-of-order: track the new position but never mutate the average.
		t.lastTradeTs = ts
		return Gap{}, false
	}

	var delta int64
	if t.hasLast {
		delta = ts - t.lastTradeTs
		if delta < 0 {
			delta = 0
		}
	}
	t.lastTradeTs = ts
	t.hasLast = true

	threshold := t.MinThresholdMs
	if t.K*t.avgGapMs > threshold {
		threshold = t.K * t.avgGapMs
	}

	d := float64(delta)

	if d >= threshold && threshold > 0 {
		gapMiss := int64(0)
		if t.avgGapMs > 0 {
			gapMiss = int64((d - t.avgGapMs) / t.avgGapMs)
		}
		t.blend(d, maxBlendWeight)
		t.samples++
		return Gap{GapMs: delta, GapMiss: gapMiss}, true
	}

	weight := 1.0
	if windowMs > 0 {
		weight = d / float64(windowMs)
		if weight > 1 {
			weight = 1
		}
	}
	t.blend(d, weight)
	t.samples++
	return Gap{}, false
}

// blend folds delta into the running average with the given weight in
// [0,1]. A weight of 0 leaves the average unchanged (identity update),
// satisfying the same-timestamp-trade invariant.
func (t *Tracker) blend(delta, weight float64) {
	t.avgGapMs = t.avgGapMs + weight*(delta-t.avgGapMs)
}
