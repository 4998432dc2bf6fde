package importer

// normalize.go handles the messy reality of field-collected data:
// phone numbers in a dozen spellings, postal codes with stray whitespace,
// and dates in locale-dependent day-first formats with 2-digit years.

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DefaultCountry is assumed when address fields are present but the country
// column is absent or empty. The dominant source locale exports German data.
var DefaultCountry = "DE"

// TwoDigitYearPivot controls how 2-digit years are interpreted: parsed years
// more than this many years in the future roll back a century.
var TwoDigitYearPivot = 20

// unambiguousLayouts parse without any day/month ambiguity.
var unambiguousLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"20060102",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// NormalizePhone strips formatting characters from a phone number, keeping
// digits and a single leading +. An international 00 prefix becomes +.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)

	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}

	out := b.String()
	if strings.HasPrefix(out, "00") {
		out = "+" + out[2:]
	}
	return out
}

// NormalizePostalCode removes all whitespace from a postal code.
func NormalizePostalCode(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ParseDate parses a date in one of the accepted formats.
//
// ISO-style layouts are tried first. Failing those, numeric dates separated
// by '.', '/' or '-' are read day-first (the source locale convention);
// when both the day and month parts are 12 or less the reading is a
// heuristic, and ambiguous is returned true so the caller can attach a
// warning. 2-digit years are resolved with TwoDigitYearPivot.
func ParseDate(s string) (t time.Time, ambiguous bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}

	for _, layout := range unambiguousLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, false, true
		}
	}

	parts := splitDateParts(s)
	if len(parts) != 3 {
		return time.Time{}, false, false
	}

	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false, false
	}

	if len(parts[2]) <= 2 {
		year += 2000
		if year > time.Now().Year()+TwoDigitYearPivot {
			year -= 100
		}
	}

	// Day-first is the locale default. When the day slot exceeds 12 the
	// reading is forced; otherwise both readings are plausible.
	if month > 12 && day <= 12 {
		day, month = month, day
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false, false
	}

	parsed := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if parsed.Day() != day || parsed.Month() != time.Month(month) {
		// Normalization moved the date (e.g. 31.02.), so it was invalid.
		return time.Time{}, false, false
	}

	ambiguous = day <= 12 && month <= 12 && day != month
	return parsed, ambiguous, true
}

func splitDateParts(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '/' || r == '-'
	})
}

// foldKey builds a case-insensitive natural key from its parts.
func foldKey(parts ...string) string {
	folded := make([]string, len(parts))
	for i, p := range parts {
		folded[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(folded, "\x1f")
}
