package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
)

var (
	// Regex for parsing OData v2 legacy date format: /Date(milliseconds[+/-offset])/
	odataLegacyDateRegex = regexp.MustCompile(`^/Date\((-?\d+)([\+\-]\d{4})?\)/$`)

	isoLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
)

// ParseODataLegacyDate extracts milliseconds and offset from OData legacy date
func ParseODataLegacyDate(s string) (milliseconds int64, offset string, ok bool) {
	matches := odataLegacyDateRegex.FindStringSubmatch(s)
	if len(matches) < 2 {
		return 0, "", false
	}

	ms, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, "", false
	}

	if len(matches) > 2 && matches[2] != "" {
		offset = matches[2]
	}

	return ms, offset, true
}

// ParseDateValue parses a legacy or ISO 8601 date literal.
func ParseDateValue(s string) (time.Time, bool) {
	if ms, _, ok := ParseODataLegacyDate(s); ok {
		return time.UnixMilli(ms).UTC(), true
	}
	if !IsISODateTime(s) {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsISODateTime checks if a string appears to be an ISO 8601 datetime
func IsISODateTime(s string) bool {
	if len(s) < 10 {
		return false
	}

	// Check for YYYY-MM-DD pattern
	if s[4] == '-' && s[7] == '-' {
		// Could be date only or datetime
		if len(s) == 10 {
			return true // Date only
		}
		if s[10] == 'T' || s[10] == ' ' {
			return true // DateTime
		}
	}

	return false
}

// NormalizeDateValue rewrites a date literal into the canonical text of
// edmType. Values that do not parse are returned unchanged.
func NormalizeDateValue(value, edmType string) string {
	t, ok := ParseDateValue(value)
	if !ok {
		return value
	}
	return FormatDateForOData(t, edmType, false)
}

// FormatDateForOData formats a time.Time for OData based on the type
func FormatDateForOData(t time.Time, edmType string, useLegacyFormat bool) string {
	switch edmType {
	case constants.EdmDateTime:
		if useLegacyFormat {
			return fmt.Sprintf("/Date(%d)/", t.UnixMilli())
		}
		return t.Format("2006-01-02T15:04:05")

	case constants.EdmDateTimeOffset:
		if useLegacyFormat {
			// Include timezone offset in legacy format
			_, offset := t.Zone()
			offsetHours := offset / 3600
			offsetMinutes := (offset % 3600) / 60
			sign := "+"
			if offset < 0 {
				sign = "-"
				offsetHours = -offsetHours
				offsetMinutes = -offsetMinutes
			}
			return fmt.Sprintf("/Date(%d%s%02d%02d)/", t.UnixMilli(), sign, offsetHours, offsetMinutes)
		}
		return t.Format(time.RFC3339)

	case constants.EdmDate:
		return t.Format("2006-01-02")

	case constants.EdmTimeOfDay:
		return t.Format("15:04:05")

	case constants.EdmTime:
		// OData v2 uses ISO 8601 duration format for time
		return fmt.Sprintf("PT%dH%dM%dS", t.Hour(), t.Minute(), t.Second())

	default:
		return t.Format(time.RFC3339)
	}
}
