package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TZVanuatu is the upstream site's local timezone (UTC+11, no DST).
var TZVanuatu = time.FixedZone("VUT", 11*60*60)

const (
	issuedAtLayoutLong  = "Monday 2 January, 2006 at 15:04"
	issuedAtLayoutShort = "Mon 2 January, 2006 at 15:04"
	warningDateLayout   = "Monday 2 January, 2006"
	mediaIssuedAtLayout = "15:04 PM,Monday January 2 2006"
)

// ParseIssuedAt extracts an issue timestamp from page text such as
//
//	"Forecast Issue Date: Mon 27th March, 2023 at 15:02 (UTC Time:04:02)"
//
// given the delimiter preceding the date. The weekday may be abbreviated or
// spelled out depending on the page. The result is normalized to UTC.
func ParseIssuedAt(text, delimStart string) (time.Time, error) {
	lower := strings.ToLower(text)
	_, after, found := strings.Cut(lower, strings.ToLower(delimStart))
	if !found {
		return time.Time{}, fmt.Errorf("issued-at delimiter %q not found", delimStart)
	}
	datePart, _, _ := strings.Cut(after, "(utc time")

	tokens := strings.Fields(strings.TrimSpace(datePart))
	if len(tokens) < 2 {
		return time.Time{}, fmt.Errorf("issued-at text too short: %q", datePart)
	}
	tokens[1] = stripOrdinal(tokens[1])

	layout := issuedAtLayoutShort
	if strings.Contains(tokens[0], "day") {
		layout = issuedAtLayoutLong
	}
	t, err := time.ParseInLocation(layout, strings.Join(tokens, " "), TZVanuatu)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse issued-at %q: %w", datePart, err)
	}
	return t.UTC(), nil
}

// ParseMediaIssuedAt parses the forecast-media timestamp, which uses its own
// format: "18:00 PM,Thursday March 30 2023". The hour is 24-hour despite the
// decorative AM/PM marker. The result is normalized to UTC.
func ParseMediaIssuedAt(text string) (time.Time, error) {
	t, err := time.ParseInLocation(mediaIssuedAtLayout, strings.TrimSpace(text), TZVanuatu)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse media issued-at %q: %w", text, err)
	}
	return t.UTC(), nil
}

// ParseWarningDate parses a full warning date such as
// "Friday 24th March, 2023" into a UTC timestamp.
func ParseWarningDate(text string) (time.Time, error) {
	tokens := strings.Fields(strings.TrimSpace(text))
	if len(tokens) < 2 {
		return time.Time{}, fmt.Errorf("warning date too short: %q", text)
	}
	tokens[1] = stripOrdinal(tokens[1])
	t, err := time.ParseInLocation(warningDateLayout, strings.Join(tokens, " "), TZVanuatu)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse warning date %q: %w", text, err)
	}
	return t.UTC(), nil
}

// ResolveDay converts a bare forecast day label like "Friday 24" or "Fri 24"
// into a UTC date, anchored on the page's issue timestamp. Forecasts never
// reach a month ahead, so a day number below the issue day means the series
// has wrapped into the next month.
func ResolveDay(label string, issuedAt time.Time) (time.Time, error) {
	tokens := strings.Fields(strings.TrimSpace(label))
	if len(tokens) < 2 {
		return time.Time{}, fmt.Errorf("day label too short: %q", label)
	}
	day, err := strconv.Atoi(stripOrdinal(tokens[1]))
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("day label %q has no day number", label)
	}

	anchor := issuedAt.In(TZVanuatu)
	year, month := anchor.Year(), anchor.Month()
	if day < anchor.Day() {
		next := anchor.AddDate(0, 1, 0)
		year, month = next.Year(), next.Month()
	}
	return time.Date(year, month, day, 0, 0, 0, 0, TZVanuatu).UTC(), nil
}

// stripOrdinal removes an English ordinal suffix: "27th" -> "27".
func stripOrdinal(s string) string {
	for _, suffix := range []string{"st", "nd", "rd", "th"} {
		if trimmed, ok := strings.CutSuffix(s, suffix); ok && trimmed != "" {
			if _, err := strconv.Atoi(trimmed); err == nil {
				return trimmed
			}
		}
	}
	return s
}
