// Package timestamp parses dates out of filenames and metadata strings into
// timezone-aware instants, normalized to UTC.
package timestamp

import (
	"regexp"
	"time"
)

const (
	minValidYear = 2000
	maxValidYear = 2100
)

var (
	// (19|20)YY[-_.]?MM[-_.]?DD
	dateRe = regexp.MustCompile(`(19|20)\d{2}[-_.]?(0[1-9]|1[0-2])[-_.]?([0-2]\d|3[01])`)
	// HH MM SS, 24-hour, immediately following (optionally separated) in the tail.
	timeRe = regexp.MustCompile(`([01]\d|2[0-3])[0-5]\d[0-5]\d`)
)

// ParseFilename scans name for a date pattern and, if found, a trailing time
// pattern. A missing time defaults to 23:59:00. Returns false if no valid
// date was found or the year falls outside [2000, 2100].
func ParseFilename(name string, defaultTZ *time.Location) (time.Time, bool) {
	loc := dateRe.FindString(name)
	if loc == "" {
		return time.Time{}, false
	}
	digits := onlyDigits(loc)
	if len(digits) != 8 {
		return time.Time{}, false
	}
	year := atoi(digits[0:4])
	month := atoi(digits[4:6])
	day := atoi(digits[6:8])
	if year < minValidYear || year > maxValidYear {
		return time.Time{}, false
	}

	hour, minute, second := 23, 59, 0
	idx := dateRe.FindStringIndex(name)
	tail := name[idx[1]:]
	if tloc := timeRe.FindString(tail); tloc != "" {
		tdigits := onlyDigits(tloc)
		hour = atoi(tdigits[0:2])
		minute = atoi(tdigits[2:4])
		second = atoi(tdigits[4:6])
	}

	if defaultTZ == nil {
		defaultTZ = time.UTC
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, defaultTZ)
	if !validCalendarDate(t, year, month, day) {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// HasTimeComponent reports whether name's matched date is followed by a
// parsable time component, distinguishing the "filename_datetime" source
// from "filename_date" per the Confidence Engine's source weights.
func HasTimeComponent(name string) bool {
	idx := dateRe.FindStringIndex(name)
	if idx == nil {
		return false
	}
	return timeRe.FindString(name[idx[1]:]) != ""
}

// layouts recognized by ParseString, in priority order. Each is a reference
// time in Go's layout format. Layouts that encode an explicit offset are
// tried before those that don't.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
}

var localLayouts = []string{
	"2006:01:02 15:04:05", // EXIF
	"20060102_150405",     // common camera export naming
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseString parses a metadata date string in one of the common writer
// formats (EXIF "YYYY:MM:DD HH:MM:SS", "YYYYMMDD_HHMMSS", ISO-8601 with or
// without an offset). A string carrying an explicit offset uses that offset;
// otherwise defaultTZ applies. Returns false if the string is unparseable or
// the year falls outside [2000, 2100].
func ParseString(s string, defaultTZ *time.Location) (time.Time, bool) {
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return finish(t, true)
		}
	}
	if defaultTZ == nil {
		defaultTZ = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, defaultTZ); err == nil {
			return finish(t, false)
		}
	}
	return time.Time{}, false
}

// ParseQuickTime parses a QuickTime/MOV container timestamp, which the
// format always encodes in UTC regardless of any caller-supplied default
// timezone.
func ParseQuickTime(s string) (time.Time, bool) {
	return ParseString(s, time.UTC)
}

func finish(t time.Time, hadOffset bool) (time.Time, bool) {
	if t.Year() < minValidYear || t.Year() > maxValidYear {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func validCalendarDate(t time.Time, year, month, day int) bool {
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}

func onlyDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
