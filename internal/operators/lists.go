// Package operators computes the filter operators a filter bar may offer
// for a property, from its EDM type and the declared filter expression
// restrictions.
package operators

import (
	"github.com/zmcp/odata-filter-restrictions/internal/constants"
)

// Allowed expression kinds of Capabilities.FilterExpressionRestrictions, most
// restrictive first.
const (
	SingleValue                  = "SingleValue"
	MultiValue                   = "MultiValue"
	SingleRange                  = "SingleRange"
	MultiRange                   = "MultiRange"
	SearchExpression             = "SearchExpression"
	MultiRangeOrSearchExpression = "MultiRangeOrSearchExpression"
)

var allowedExpressionPriority = []string{
	SingleValue,
	MultiValue,
	SingleRange,
	MultiRange,
	SearchExpression,
	MultiRangeOrSearchExpression,
}

// Reference operator lists per expression kind. These are operator codes
// consumed by the filter bar and must not change.
var (
	EqualsOperators             = []string{"EQ"}
	SingleValueDateOperators    = []string{"TODAY", "TOMORROW", "YESTERDAY", "DATE", "FIRSTDAYWEEK", "LASTDAYWEEK", "FIRSTDAYMONTH", "LASTDAYMONTH", "FIRSTDAYQUARTER", "LASTDAYQUARTER", "FIRSTDAYYEAR", "LASTDAYYEAR"}
	SingleRangeOperators        = []string{"EQ", "GE", "LE", "LT", "GT", "BT", "NOTLE", "NOTLT", "NOTGE", "NOTGT"}
	SingleRangeDTBasicOperators = []string{"EQ", "BT"}
	BasicDateTimeOperators      = []string{"EQ", "BT"}
	MultiRangeOperators         = []string{"EQ", "GE", "LE", "LT", "GT", "BT", "NE", "NOTBT", "NOTLE", "NOTLT", "NOTGE", "NOTGT"}
	SearchExpressionOperators   = []string{"StartsWith", "NotStartsWith", "EndsWith", "NotEndsWith", "Contains", "NotContains"}
)

// Default operators per type family.
var (
	rangeTypeOperators   = []string{"EQ", "BT", "LE", "LT", "GE", "GT", "NE", "NOTBT", "NOTLE", "NOTLT", "NOTGE", "NOTGT"}
	stringTypeOperators  = append(append([]string{}, rangeTypeOperators...), "Contains", "NotContains", "StartsWith", "NotStartsWith", "EndsWith", "NotEndsWith", "Empty", "NotEmpty")
	booleanTypeOperators = []string{"EQ", "NE"}
)

// TypeOperators returns the operators a filter field of edmType supports
// without any restriction. Unknown types yield nil.
func TypeOperators(edmType string) []string {
	switch edmType {
	case constants.EdmString:
		return clone(stringTypeOperators)
	case constants.EdmBoolean, constants.EdmGuid:
		return clone(booleanTypeOperators)
	case constants.EdmByte, constants.EdmSByte, constants.EdmInt16, constants.EdmInt32, constants.EdmInt64,
		constants.EdmDecimal, constants.EdmDouble, constants.EdmSingle,
		constants.EdmDate, constants.EdmDateTime, constants.EdmDateTimeOffset, constants.EdmTimeOfDay, constants.EdmTime:
		return clone(rangeTypeOperators)
	}
	return nil
}

// SpecificAllowedExpression picks the most restrictive expression kind.
// Unknown kinds are ignored; "" is returned when none is known.
func SpecificAllowedExpression(kinds []string) string {
	best := len(allowedExpressionPriority)
	for _, kind := range kinds {
		for i, candidate := range allowedExpressionPriority {
			if candidate == kind && i < best {
				best = i
			}
		}
	}
	if best == len(allowedExpressionPriority) {
		return ""
	}
	return allowedExpressionPriority[best]
}

// intersect keeps the entries of reference present in available, in reference order.
func intersect(available, reference []string) []string {
	out := make([]string, 0, len(reference))
	for _, op := range reference {
		if contains(available, op) && !contains(out, op) {
			out = append(out, op)
		}
	}
	return out
}

func union(lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		for _, op := range list {
			if !contains(out, op) {
				out = append(out, op)
			}
		}
	}
	return out
}

func contains(list []string, item string) bool {
	for _, entry := range list {
		if entry == item {
			return true
		}
	}
	return false
}

func clone(list []string) []string {
	return append([]string(nil), list...)
}
