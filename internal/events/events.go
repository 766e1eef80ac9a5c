// Package events coalesces per-line anomalies (gaps, parse failures) into
// widened-range rows, mirroring the teacher's EventBus (sync/eventbus.go)
// as a single-subscriber accumulator instead of a pub/sub fan-out: one open
// record at a time, closed and re-opened as the anomaly kind changes.
package events

// Kind identifies the type of an Event row.
type Kind string

const (
	KindGap             Kind = "gap"
	KindParseError      Kind = "parse_error"
	KindAdapterError    Kind = "adapter_error"
	KindMissingAdapter  Kind = "missing_adapter"
	KindPartsShort      Kind = "parts_short"
	KindNonFinite       Kind = "non_finite"
	KindNotionalTooLarge Kind = "notional_too_large"
)

// Event is one (possibly coalesced) anomaly row.
type Event struct {
	Type      Kind
	StartLine int64
	EndLine   int64
	TS        int64
	GapMs     int64
	GapMiss   int64
	GapEndTS  int64
}

// Accumulator holds at most one open Event, closing and emitting it as soon
// as a differently-typed record arrives.
type Accumulator struct {
	open    *Event
	flushed []Event
}

// New creates an empty Accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// GapFields carries the optional gap-specific payload for a KindGap record.
type GapFields struct {
	GapMs   int64
	GapMiss int64
	EndTS   int64
}

// Record ingests one anomaly at the given line. For gap events, fields
// supplies gapMs/gapMiss/gapEndTs; it is ignored for other kinds.
func (a *Accumulator) Record(kind Kind, line int64, ts int64, fields GapFields) {
	if a.open == nil || a.open.Type != kind {
		a.closeOpen()
		a.open = &Event{Type: kind, StartLine: line, EndLine: line, TS: ts}
		if kind == KindGap {
			a.open.GapMs = fields.GapMs
			a.open.GapMiss = fields.GapMiss
			a.open.GapEndTS = fields.EndTS
		}
		return
	}

	a.open.EndLine = line
	if kind == KindGap {
		if fields.GapMs > a.open.GapMs {
			a.open.GapMs = fields.GapMs
		}
		a.open.GapEndTS = fields.EndTS
		a.open.GapMiss = fields.GapMiss
	}
}

// Finish flushes any open event and returns the complete coalesced list,
// resetting the Accumulator for reuse.
func (a *Accumulator) Finish() []Event {
	a.closeOpen()
	out := a.flushed
	a.flushed = nil
	return out
}

func (a *Accumulator) closeOpen() {
	if a.open == nil {
		return
	}
	a.flushed = append(a.flushed, *a.open)
	a.open = nil
}
