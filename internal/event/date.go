package event

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// M/D/Y or M/D/YY anywhere in free text, e.g. "1/17/26", "01/17/2026"
	shortDatePattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{2,4})`)

	// "(MM/DD/YY)" or "(MM/DD/YYYY)" annotation in a list title
	titleDatePattern = regexp.MustCompile(`\((\d{2})/(\d{2})/(\d{2,4})\)`)

	// trailing "(M/D/Y)" annotation removed from summaries
	trailingDatePattern = regexp.MustCompile(`\s*\(\d{1,2}/\d{1,2}/\d{2,4}\)\s*$`)

	// 12-hour clock, e.g. "7:00 PM", "10:30am"
	clockPattern = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(AM|PM)`)
)

// FindShortDate returns the calendar date of the first M/D/Y token in text,
// read month-first. Only the first token is considered; if it is not a real
// date (e.g. "13/40/26") ok is false.
func FindShortDate(text string, loc *time.Location) (time.Time, bool) {
	m := shortDatePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	return buildDate(m[1], m[2], m[3], loc)
}

// FindTitleDate returns the date of a parenthesized "(MM/DD/YY)" annotation in title.
func FindTitleDate(title string, loc *time.Location) (time.Time, bool) {
	m := titleDatePattern.FindStringSubmatch(title)
	if m == nil {
		return time.Time{}, false
	}
	return buildDate(m[1], m[2], m[3], loc)
}

// FindClock returns the hour (0-23) and minute of the first "H:MM AM|PM" token in text.
func FindClock(text string) (hour, minute int, ok bool) {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil || h < 1 || h > 12 {
		return 0, 0, false
	}
	mins, err := strconv.Atoi(m[2])
	if err != nil || mins > 59 {
		return 0, 0, false
	}

	h %= 12
	if strings.EqualFold(m[3], "PM") {
		h += 12
	}
	return h, mins, true
}

// StripTitleDate removes a trailing "(M/D/Y)" annotation and trims the result.
func StripTitleDate(title string) string {
	return strings.TrimSpace(trailingDatePattern.ReplaceAllString(title, ""))
}

// ExpandYear maps two-digit years to 2000+YY. Three-digit years are rejected.
func ExpandYear(year int, digits int) (int, bool) {
	switch digits {
	case 2:
		return 2000 + year, true
	case 4:
		return year, true
	default:
		return 0, false
	}
}

// buildDate validates month/day/year groups and returns local midnight.
func buildDate(month, day, year string, loc *time.Location) (time.Time, bool) {
	mm, err := strconv.Atoi(month)
	if err != nil {
		return time.Time{}, false
	}
	dd, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	yy, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	yy, ok := ExpandYear(yy, len(year))
	if !ok || mm < 1 || mm > 12 || dd < 1 {
		return time.Time{}, false
	}

	t := time.Date(yy, time.Month(mm), dd, 0, 0, 0, 0, loc)
	// time.Date normalizes Feb 30 into March; reject instead
	if t.Day() != dd || int(t.Month()) != mm {
		return time.Time{}, false
	}
	return t, true
}
