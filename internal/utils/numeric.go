package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatNumber renders a Go numeric value as an OData literal, avoiding
// scientific notation. ok is false for non-numeric values.
func FormatNumber(value any) (string, bool) {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		// -1 precision means use the smallest number of digits necessary
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case decimal.Decimal:
		return v.String(), true
	default:
		return "", false
	}
}

// NormalizeDecimal returns the canonical text of a decimal literal.
func NormalizeDecimal(s string) (string, error) {
	// Remove any whitespace
	s = strings.TrimSpace(s)

	if s == "" {
		return "", fmt.Errorf("empty decimal literal")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("invalid decimal literal %q: %w", s, err)
	}
	return d.String(), nil
}
