// Package dates provides deadline extraction and display formatting for
// message timestamps.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Pattern order is significant: ISO-like numeric dates first, then the
// Chinese same-year month-day form, then day/month/year, then English
// month names in both orders. The first successful parse wins.
var (
	isoPattern     = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	chinesePattern = regexp.MustCompile(`(\d{1,2})月(\d{1,2})日`)
	dmyPattern     = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)

	monthNames = `january|february|march|april|may|june|july|august|` +
		`september|october|november|december|` +
		`jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec`

	mdyPattern    = regexp.MustCompile(`(` + monthNames + `)\s+(\d{1,2}),?\s+(\d{4})`)
	dmyEngPattern = regexp.MustCompile(`(\d{1,2})\s+(` + monthNames + `)(?:\s+(\d{4}))?`)
)

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "jun": time.June, "jul": time.July,
	"aug": time.August, "sep": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

// ExtractDeadline scans text for a deadline date. Patterns that lack an
// explicit year assume the current year; this is lossy by design and
// callers must not "correct" it. Returns the zero time and false when no
// pattern parses.
func ExtractDeadline(text string, now time.Time) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}

	if m := isoPattern.FindStringSubmatch(text); m != nil {
		if t, ok := makeDate(m[1], m[2], m[3]); ok {
			return t, true
		}
	}

	if m := chinesePattern.FindStringSubmatch(text); m != nil {
		year := strconv.Itoa(now.Year())
		if t, ok := makeDate(year, m[1], m[2]); ok {
			return t, true
		}
	}

	if m := dmyPattern.FindStringSubmatch(text); m != nil {
		if t, ok := makeDate(m[3], m[2], m[1]); ok {
			return t, true
		}
	}

	lower := strings.ToLower(text)

	if m := mdyPattern.FindStringSubmatch(lower); m != nil {
		if month, ok := months[m[1]]; ok {
			if t, ok := makeDateNumeric(m[3], int(month), m[2]); ok {
				return t, true
			}
		}
	}

	if m := dmyEngPattern.FindStringSubmatch(lower); m != nil {
		if month, ok := months[m[2]]; ok {
			year := m[3]
			if year == "" {
				year = strconv.Itoa(now.Year())
			}
			if t, ok := makeDateNumeric(year, int(month), m[1]); ok {
				return t, true
			}
		}
	}

	return time.Time{}, false
}

// makeDate builds a date from string year/month/day, rejecting values
// that do not form a real calendar date.
func makeDate(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return time.Time{}, false
	}
	return makeDateNumeric(strconv.Itoa(y), m, day)
}

func makeDateNumeric(year string, month int, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(month), d, 0, 0, 0, 0, time.Local)
	// time.Date normalizes overflow (e.g. Feb 30 -> Mar 2); reject those.
	if t.Day() != d || t.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return t, true
}
