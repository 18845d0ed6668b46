// Package timeutil implements the date-key and filename-timestamp
// arithmetic shared by the query normalizer, the local discoverer, and the
// remote discoverer: YYYYMMDD<->YYYYJJJ conversion, the non-ISO week-of-year
// used by the archive directory layout, HH:MM time-range parsing, and
// extraction of the embedded YYYYJJJHHMM timestamp from archive/object
// filenames.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// YMDToJulian converts a YYYYMMDD date string to YYYYJJJ (Julian day-of-year).
func YMDToJulian(ymd string) (string, error) {
	t, err := time.Parse("20060102", ymd)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", ymd, err)
	}
	return fmt.Sprintf("%04d%03d", t.Year(), t.YearDay()), nil
}

// JulianToYMD converts a YYYYJJJ string back to YYYYMMDD.
func JulianToYMD(yjjj string) (string, error) {
	t, err := ParseJulian(yjjj)
	if err != nil {
		return "", err
	}
	return t.Format("20060102"), nil
}

// ParseJulian parses a YYYYJJJ day key into a time.Time (UTC midnight).
func ParseJulian(yjjj string) (time.Time, error) {
	if len(yjjj) != 7 {
		return time.Time{}, fmt.Errorf("invalid day key %q: expected YYYYJJJ", yjjj)
	}
	year, err := strconv.Atoi(yjjj[:4])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", yjjj, err)
	}
	doy, err := strconv.Atoi(yjjj[4:])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", yjjj, err)
	}
	if doy < 1 || doy > 366 {
		return time.Time{}, fmt.Errorf("invalid day key %q: day-of-year %d out of range", yjjj, doy)
	}
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1), nil
}

// ExpandDateKey expands a request date key ("YYYYMMDD" or
// "YYYYMMDD-YYYYMMDD") into the list of individual YYYYMMDD days it covers,
// inclusive on both ends.
func ExpandDateKey(key string) ([]string, error) {
	parts := strings.SplitN(key, "-", 2)
	start, err := time.Parse("20060102", parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	end := start
	if len(parts) == 2 {
		end, err = time.Parse("20060102", parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid date key %q: %w", key, err)
		}
	}
	if end.Before(start) {
		return nil, fmt.Errorf("invalid date range %q: end before start", key)
	}

	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("20060102"))
	}
	return days, nil
}

// LastDayOfKey returns the latest YYYYMMDD day in a (possibly ranged) date
// key, used to validate that a request does not reach into the future.
func LastDayOfKey(key string) (time.Time, error) {
	parts := strings.SplitN(key, "-", 2)
	last := parts[0]
	if len(parts) == 2 {
		last = parts[1]
	}
	return time.Parse("20060102", last)
}

// WeekOfYear computes the (non-ISO) one-based week index used by the
// archive storage layout: ((dayOfYear-1)/7)+1. This intentionally yields
// up to 53 weeks in common years and does not follow ISO-8601 week
// numbering; it mirrors the physical directory layout of the archive.
func WeekOfYear(dayOfYear int) int {
	return (dayOfYear-1)/7 + 1
}

// TimeRange is an inclusive [Start, End] minute-of-day interval.
type TimeRange struct {
	StartMin int
	EndMin   int
}

// ParseTimeRange parses "HH:MM" (a single instant, Start==End) or
// "HH:MM-HH:MM" (inclusive range, Start<=End) into minute-of-day offsets.
func ParseTimeRange(s string) (TimeRange, error) {
	parts := strings.SplitN(s, "-", 2)
	start, err := parseHHMM(parts[0])
	if err != nil {
		return TimeRange{}, fmt.Errorf("invalid time range %q: %w", s, err)
	}
	end := start
	if len(parts) == 2 {
		end, err = parseHHMM(parts[1])
		if err != nil {
			return TimeRange{}, fmt.Errorf("invalid time range %q: %w", s, err)
		}
	}
	if end < start {
		return TimeRange{}, fmt.Errorf("invalid time range %q: end before start", s)
	}
	return TimeRange{StartMin: start, EndMin: end}, nil
}

func parseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// DurationHours returns the range's length in hours as the plain minute
// difference (End-Start)/60, so a single-instant range has duration zero.
func (r TimeRange) DurationHours() float64 {
	return float64(r.EndMin-r.StartMin) / 60.0
}

// StartHour and EndHour return the hour-of-day component of each endpoint.
func (r TimeRange) StartHour() int { return r.StartMin / 60 }
func (r TimeRange) EndHour() int   { return r.EndMin / 60 }

// ContainsMinute reports whether the given minute-of-day falls within the
// range, both endpoints inclusive. Used for exact remote-object filtering.
func (r TimeRange) ContainsMinute(minuteOfDay int) bool {
	return minuteOfDay >= r.StartMin && minuteOfDay <= r.EndMin
}

// ContainsHour reports whether hour falls within [StartHour, EndHour],
// i.e. whether the range, widened to whole covering hours
// ([StartHour:00, EndHour:59]), contains hour. This is the coarse filter
// the local discoverer uses against archive-filename timestamps.
func (r TimeRange) ContainsHour(hour int) bool {
	return hour >= r.StartHour() && hour <= r.EndHour()
}

// String renders the range back to "HH:MM" or "HH:MM-HH:MM".
func (r TimeRange) String() string {
	start := fmt.Sprintf("%02d:%02d", r.StartMin/60, r.StartMin%60)
	if r.StartMin == r.EndMin {
		return start
	}
	end := fmt.Sprintf("%02d:%02d", r.EndMin/60, r.EndMin%60)
	return start + "-" + end
}

// Timestamp is a parsed YYYYJJJHHMM filename timestamp.
type Timestamp struct {
	Year      int
	DayOfYear int
	Hour      int
	Minute    int
}

// DayKey returns the YYYYJJJ day key for the timestamp.
func (ts Timestamp) DayKey() string {
	return fmt.Sprintf("%04d%03d", ts.Year, ts.DayOfYear)
}

// MinuteOfDay returns hour*60+minute.
func (ts Timestamp) MinuteOfDay() int { return ts.Hour*60 + ts.Minute }

// ParseEmbeddedTimestamp parses an 11-character YYYYJJJHHMM string.
func ParseEmbeddedTimestamp(raw string) (Timestamp, bool) {
	if len(raw) != 11 {
		return Timestamp{}, false
	}
	year, err1 := strconv.Atoi(raw[0:4])
	doy, err2 := strconv.Atoi(raw[4:7])
	hour, err3 := strconv.Atoi(raw[7:9])
	minute, err4 := strconv.Atoi(raw[9:11])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return Timestamp{}, false
	}
	if doy < 1 || doy > 366 || hour > 23 || minute > 59 {
		return Timestamp{}, false
	}
	return Timestamp{Year: year, DayOfYear: doy, Hour: hour, Minute: minute}, true
}

// ExtractLocalTimestamp extracts the 11-character YYYYJJJHHMM timestamp
// embedded after the first "-s" substring of a local archive filename, per
// the "-s<YYYYJJJHHMM>..." naming convention.
func ExtractLocalTimestamp(name string) (Timestamp, bool) {
	idx := strings.Index(name, "-s")
	if idx == -1 || idx+2+11 > len(name) {
		return Timestamp{}, false
	}
	return ParseEmbeddedTimestamp(name[idx+2 : idx+2+11])
}

// ExtractMemberTimestamp extracts the 11-character YYYYJJJHHMM timestamp
// embedded after the first "_s" substring of an extracted archive member
// filename (the NetCDF naming convention used by selectively-extracted
// products, e.g. "OR_ABI-L1b-RadF-M6C13_G16_s20232991200215.nc"). Unlike
// ExtractRemoteTimestamp it does not require a trailing "_e" bound, since a
// lone extracted member need not carry one.
func ExtractMemberTimestamp(name string) (Timestamp, bool) {
	idx := strings.Index(name, "_s")
	if idx == -1 || idx+2+11 > len(name) {
		return Timestamp{}, false
	}
	return ParseEmbeddedTimestamp(name[idx+2 : idx+2+11])
}

// ExtractRemoteTimestamp extracts the 11-character YYYYJJJHHMM start
// timestamp embedded between "_s" and "_e" in a remote object filename.
func ExtractRemoteTimestamp(name string) (Timestamp, bool) {
	sIdx := strings.Index(name, "_s")
	eIdx := strings.Index(name, "_e")
	if sIdx == -1 || eIdx == -1 || eIdx <= sIdx+2 {
		return Timestamp{}, false
	}
	raw := name[sIdx+2 : eIdx]
	if len(raw) < 11 {
		return Timestamp{}, false
	}
	return ParseEmbeddedTimestamp(raw[:11])
}
