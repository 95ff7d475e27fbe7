// Package conditions translates between SelectionVariants and the filter
// conditions of a filter bar.
//
// Conditions are keyed by property name. Properties reached through a
// navigation are keyed by the navigation path, where a 1:n hop carries a "*"
// suffix ("_Item*/Material") and a 1:1 hop does not ("_Customer/Region").
// Parameters of a parameterized entity are keyed "$Parameter.<name>".
package conditions

import (
	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/selectionvariant"
)

// ValidatedFixedValue marks conditions whose values come from a fixed value list.
const ValidatedFixedValue = "Validated"

// ParameterPrefix prefixes the condition keys and select option names of parameters.
const ParameterPrefix = constants.ParameterPrefix

// Condition is one filter condition of a filter field.
type Condition struct {
	Operator  string `json:"operator"`
	Values    []any  `json:"values"`
	Validated string `json:"validated,omitempty"`
}

// SemanticDates is the relative date payload of a select option.
type SemanticDates = selectionvariant.SemanticDates

// ConditionMap maps filter field keys to their conditions.
type ConditionMap map[string][]Condition

// Clone returns a copy whose condition slices can be changed independently.
func (m ConditionMap) Clone() ConditionMap {
	out := make(ConditionMap, len(m))
	for key, conditions := range m {
		copied := make([]Condition, len(conditions))
		for i, c := range conditions {
			c.Values = append([]any(nil), c.Values...)
			copied[i] = c
		}
		out[key] = copied
	}
	return out
}

// SemanticDatesFromCondition builds the semantic date payload of c. The
// first value becomes High and the second Low.
func SemanticDatesFromCondition(c Condition) SemanticDates {
	dates := SemanticDates{Operator: c.Operator}
	if len(c.Values) > 0 {
		dates.High = c.Values[0]
	}
	if len(c.Values) > 1 {
		dates.Low = c.Values[1]
	}
	return dates
}

// ConditionFromSemanticDates builds a condition from a semantic date payload.
// Values are Low then High; absent bounds are left out.
func ConditionFromSemanticDates(dates SemanticDates) Condition {
	values := []any{}
	if present(dates.Low) {
		values = append(values, dates.Low)
	}
	if present(dates.High) {
		values = append(values, dates.High)
	}
	return Condition{Operator: dates.Operator, Values: values}
}

func present(value any) bool {
	if s, ok := value.(string); ok {
		return s != ""
	}
	return value != nil
}
