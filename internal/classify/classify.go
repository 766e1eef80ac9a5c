// Package classify maps a relative trade-log file path to its collector,
// era, exchange, symbol and start timestamp, or rejects it.
//
// Recognition is dispatch-by-pattern: an ordered list of token matchers is
// tried against the path, the first match wins, and an unrecognized path
// falls through to ErrUnrecognized. This mirrors the teacher's ClassifyType
// dispatch (extension → mime family → subtype), generalized to directory
// tokens instead of file extensions.
package classify

import (
	"errors"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Collector identifies the upstream data producer.
type Collector string

// Era identifies the directory-layout convention used to encode time.
type Era string

const (
	CollectorRAM Collector = "RAM"
	CollectorPI  Collector = "PI"

	EraLegacy  Era = "legacy"
	EraLogical Era = "logical"
)

// ErrUnrecognized is returned when no token matcher recognizes the path.
var ErrUnrecognized = errors.New("classify: unrecognized path")

// File is the classification result for a single relative path.
type File struct {
	Collector Collector
	Era       Era
	Exchange  string
	Symbol    string
	StartTS   int64 // UTC milliseconds at the start of the matched token
	Ext       string
}

var (
	// legacy: .../YYYY-MM-DD(-HH)?/... — Europe/Paris wall clock.
	legacyToken = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:-(\d{2}))?$`)
	// logical: .../YYYY/MM/DD(-HH)?/... — UTC.
	logicalDateDir = regexp.MustCompile(`^(\d{2})(?:-(\d{2}))?$`)

	upper = cases.Upper(language.Und)
)


// Classify classifies a POSIX-style relative path (no leading separator).
// rootHint is the basename of the root directory ("RAM" or "PI"), used to
// disambiguate collector when the path itself does not.
func Classify(relPath string, rootHint string) (File, error) {
	relPath = strings.TrimPrefix(relPath, "/")
	segments := strings.Split(relPath, "/")

	if f, ok := tryLegacy(segments); ok {
		f.Ext = path.Ext(relPath)
		f.Collector = resolveCollector(segments, rootHint)
		return f, nil
	}

	if f, ok := tryLogical(segments); ok {
		f.Ext = path.Ext(relPath)
		f.Collector = resolveCollector(segments, rootHint)
		return f, nil
	}

	return File{}, ErrUnrecognized
}

// tryLegacy looks for a YYYY-MM-DD(-HH)? segment anywhere in the path and
// derives exchange/symbol from its siblings: .../EXCHANGE/SYMBOL/DATE/file.
func tryLegacy(segments []string) (File, bool) {
	for i, seg := range segments {
		m := legacyToken.FindStringSubmatch(seg)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour := 0
		if m[4] != "" {
			hour, _ = strconv.Atoi(m[4])
		}

		ts := parisWallClockToUTC(year, month, day, hour)

		exch, sym := siblingExchangeSymbol(segments, i)
		return File{
			Era:      EraLegacy,
			Exchange: upper.String(exch),
			Symbol:   upper.String(sym),
			StartTS:  ts,
		}, true
	}
	return File{}, false
}

// tryLogical looks for a YYYY/MM/DD(-HH)? run of segments (three consecutive
// numeric directory segments, UTC) and derives exchange/symbol from the
// segments preceding the year.
func tryLogical(segments []string) (File, bool) {
	for i := 0; i+2 < len(segments); i++ {
		yr, err := strconv.Atoi(segments[i])
		if err != nil || len(segments[i]) != 4 || yr < 2000 || yr > 2100 {
			continue
		}
		mm := logicalDateDir.FindStringSubmatch(segments[i+1])
		if mm == nil {
			continue
		}
		dd := logicalDateDir.FindStringSubmatch(segments[i+2])
		if dd == nil {
			continue
		}
		month, _ := strconv.Atoi(mm[1])
		day, _ := strconv.Atoi(dd[1])
		hour := 0
		if dd[2] != "" {
			hour, _ = strconv.Atoi(dd[2])
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}

		ts := time.Date(yr, time.Month(month), day, hour, 0, 0, 0, time.UTC).UnixMilli()

		exch, sym := siblingExchangeSymbol(segments, i)
		return File{
			Era:      EraLogical,
			Exchange: upper.String(exch),
			Symbol:   upper.String(sym),
			StartTS:  ts,
		}, true
	}
	return File{}, false
}

// siblingExchangeSymbol takes the two path segments immediately preceding
// the date token as (exchange, symbol), when available.
func siblingExchangeSymbol(segments []string, dateIdx int) (exchange, symbol string) {
	if dateIdx >= 2 {
		return segments[dateIdx-2], segments[dateIdx-1]
	}
	if dateIdx == 1 {
		return "", segments[0]
	}
	return "", ""
}

func resolveCollector(segments []string, rootHint string) Collector {
	for _, seg := range segments {
		switch strings.ToUpper(seg) {
		case string(CollectorRAM):
			return CollectorRAM
		case string(CollectorPI):
			return CollectorPI
		}
	}
	switch strings.ToUpper(rootHint) {
	case string(CollectorPI):
		return CollectorPI
	default:
		return CollectorRAM
	}
}

// parisWallClockToUTC converts an Europe/Paris wall-clock hour to UTC
// milliseconds, applying the last-Sunday-of-March/October DST rule by hand
// rather than relying on tzdata: DST starts at 02:00 local on the last
// Sunday of March (UTC+2 from 02:00 inclusive) and ends at 03:00 local on
// the last Sunday of October (UTC+1 from 03:00 inclusive).
//
// The spring-forward hour (02:00 local on the last Sunday of March) never
// legally occurs; per spec this ambiguous input is mapped to UTC+2 by
// convention, matching the source system's behavior (documented, not
// inferred).
func parisWallClockToUTC(year, month, day, hour int) int64 {
	local := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
	offsetHours := parisOffsetHours(year, month, day, hour)
	return local.Add(-time.Duration(offsetHours) * time.Hour).UnixMilli()
}

// parisOffsetHours returns the UTC offset (1 or 2) in effect for the given
// Europe/Paris wall-clock date/hour.
func parisOffsetHours(year, month, day, hour int) int {
	marchSunday := lastSundayOfMonth(year, time.March)
	octSunday := lastSundayOfMonth(year, time.October)

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)

	switch {
	case date.Before(marchSunday):
		return 1
	case date.Equal(marchSunday):
		if hour < 2 {
			return 1
		}
		return 2
	case date.After(marchSunday) && date.Before(octSunday):
		return 2
	case date.Equal(octSunday):
		if hour < 3 {
			return 2
		}
		return 1
	default:
		return 1
	}
}

// lastSundayOfMonth returns the last Sunday of the given month/year at
// midnight UTC.
func lastSundayOfMonth(year int, month time.Month) time.Time {
	// First day of the following month, then walk back to the last Sunday.
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	last := firstOfNext.AddDate(0, 0, -1)
	for last.Weekday() != time.Sunday {
		last = last.AddDate(0, 0, -1)
	}
	return last
}
