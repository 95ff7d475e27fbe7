package conditions

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/operators"
	"github.com/zmcp/odata-filter-restrictions/internal/selectionvariant"
	"github.com/zmcp/odata-filter-restrictions/internal/utils"
)

const editStateField = "$editState"

// ExternalState is the filter state a filter bar hands over for navigation.
type ExternalState struct {
	FilterConditions map[string][]Condition `json:"filter"`
	// FilterConditionsWithoutConflict maps a field to the page context path
	// its conditions are stored under when the variant already has it.
	FilterConditionsWithoutConflict map[string]string `json:"filterConditionsWithoutConflict,omitempty"`
}

// TargetInfo describes the filter fields of the navigation source.
type TargetInfo struct {
	// EntitySetPath is used to look up property types when no PropertyHelper is set.
	EntitySetPath string `json:"entitySetPath,omitempty"`
	// PropertiesWithoutConflict maps a field to the table context path its
	// conditions are stored under when the variant already has it.
	PropertiesWithoutConflict map[string]string `json:"propertiesWithoutConflict,omitempty"`
}

// PropertyInfo describes a filter field.
type PropertyInfo struct {
	Name    string
	EdmType string
}

// ModelFilter is the OData filter a range operator resolves a condition to.
// A filter with nested Filters cannot be expressed as a single range.
type ModelFilter struct {
	Operator string
	Value1   any
	Value2   any
	Filters  []ModelFilter
}

// RangeOperator resolves operators whose values must be computed, such as
// relative dates.
type RangeOperator interface {
	ModelFilter(c Condition, property, edmType string) *ModelFilter
}

// PropertyHelper gives access to filter field types and range operators.
type PropertyHelper interface {
	Property(name string) (PropertyInfo, bool)
	RangeOperator(operator string) (RangeOperator, bool)
}

type signOption struct {
	sign   string
	option string
	low    string
	high   string
}

// AddExternalStateFiltersToSelectionVariant returns a copy of sv extended by
// the conditions of state. A field the variant does not have yet is added
// under its own name. For a field it has, the conditions go to the conflict
// free paths of info and state instead; ranges of the page context path are
// marked filtered and replace the filtered marker of older ones.
func (s *Synthesizer) AddExternalStateFiltersToSelectionVariant(sv *selectionvariant.SelectionVariant, state ExternalState, info TargetInfo, helper PropertyHelper) *selectionvariant.SelectionVariant {
	out := selectionvariant.New()
	if sv != nil {
		out = sv.Clone()
	}

	names := make([]string, 0, len(state.FilterConditions))
	for name := range state.FilterConditions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == editStateField {
			continue
		}
		conditions := state.FilterConditions[name]
		if !out.HasSelectOption(name) {
			s.addFilters(out, name, name, conditions, info, helper, false)
			continue
		}
		if path, ok := info.PropertiesWithoutConflict[name]; ok {
			s.addFilters(out, name, path, conditions, info, helper, false)
		}
		if path, ok := state.FilterConditionsWithoutConflict[name]; ok {
			s.addFilters(out, name, path, conditions, info, helper, true)
		}
	}
	return out
}

func (s *Synthesizer) addFilters(out *selectionvariant.SelectionVariant, field, path string, conditions []Condition,
	info TargetInfo, helper PropertyHelper, pageContext bool) {
	edmType := s.propertyType(field, info, helper)
	var ranges []selectionvariant.SelectOption
	for _, c := range conditions {
		so, ok := s.selectOptionFromCondition(c, field, edmType, helper)
		if !ok {
			continue
		}
		if pageContext {
			filtered := true
			so.Filtered = &filtered
		}
		ranges = append(ranges, so)
	}
	if len(ranges) == 0 {
		return
	}
	if pageContext {
		out.SetFiltered(path, false)
	}
	if err := out.MassAddSelectOption(path, ranges); err != nil {
		s.logger().Warn("could not add filter to selection variant", "field", field, "path", path, "error", err)
	}
}

func (s *Synthesizer) propertyType(field string, info TargetInfo, helper PropertyHelper) string {
	if helper != nil {
		if property, ok := helper.Property(field); ok {
			return property.EdmType
		}
	}
	if s.Meta == nil || info.EntitySetPath == "" {
		return ""
	}
	edmType, _ := s.Meta.GetObject(info.EntitySetPath + "/" + strings.ReplaceAll(field, "*", "") + "/" + constants.PathType).(string)
	return edmType
}

func (s *Synthesizer) selectOptionFromCondition(c Condition, field, edmType string, helper PropertyHelper) (selectionvariant.SelectOption, bool) {
	operator := c.Operator
	var low, high any
	if len(c.Values) > 0 {
		low = c.Values[0]
	}
	if len(c.Values) > 1 {
		high = c.Values[1]
	}

	if helper != nil {
		if rangeOperator, ok := helper.RangeOperator(c.Operator); ok {
			filter := rangeOperator.ModelFilter(c, field, edmType)
			if filter == nil || len(filter.Filters) > 0 {
				s.logger().Warn("condition does not resolve to a single range", "field", field, "operator", c.Operator)
				return selectionvariant.SelectOption{}, false
			}
			operator, low, high = filter.Operator, filter.Value1, filter.Value2
		}
	}

	so, ok := signAndOption(operator, formatValue(low, edmType), formatValue(high, edmType))
	if !ok {
		s.logger().Warn("operator is not supported and could not be added to the navigation context",
			"field", field, "operator", c.Operator)
		return selectionvariant.SelectOption{}, false
	}

	result := selectionvariant.SelectOption{Sign: so.sign, Option: so.option, Low: so.low, High: so.high}
	if operators.IsSemanticDateOperator(c.Operator) {
		dates := SemanticDatesFromCondition(c)
		result.SemanticDates = &dates
	}
	return result, true
}

// signAndOption maps a filter operator to a select option range.
func signAndOption(operator, low, high string) (signOption, bool) {
	so := signOption{sign: selectionvariant.SignInclude, low: low, high: high}
	switch operator {
	case OperatorContains:
		so.option, so.low = selectionvariant.OptionCP, "*"+low+"*"
	case OperatorStartsWith:
		so.option, so.low = selectionvariant.OptionCP, low+"*"
	case OperatorEndsWith:
		so.option, so.low = selectionvariant.OptionCP, "*"+low
	case OperatorNotContains:
		so.option, so.low, so.sign = selectionvariant.OptionCP, "*"+low+"*", selectionvariant.SignExclude
	case OperatorNotStartsWith:
		so.option, so.low, so.sign = selectionvariant.OptionCP, low+"*", selectionvariant.SignExclude
	case OperatorNotEndsWith:
		so.option, so.low, so.sign = selectionvariant.OptionCP, "*"+low, selectionvariant.SignExclude
	case "BT", "LE", "LT", "GT", "GE", "NE", "EQ":
		so.option = operator
	case "DATE", "EEQ":
		so.option = selectionvariant.OptionEQ
	case "DATERANGE":
		so.option = selectionvariant.OptionBT
	case "FROM":
		so.option = selectionvariant.OptionGE
	case "TO":
		so.option = selectionvariant.OptionLE
	case OperatorEmpty:
		so.option, so.low = selectionvariant.OptionEQ, ""
	case OperatorNotEmpty:
		so.option, so.low = selectionvariant.OptionNE, ""
	case "NOTBT", "NOTLE", "NOTLT", "NOTGE", "NOTGT", "NOTEQ":
		so.option, so.sign = strings.TrimPrefix(operator, "NOT"), selectionvariant.SignExclude
	default:
		return signOption{}, false
	}
	if so.option != selectionvariant.OptionBT {
		so.high = ""
	}
	return so, true
}

// formatValue renders a condition value as select option text.
func formatValue(value any, edmType string) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return utils.FormatDateForOData(v, edmType, false)
	case bool:
		return strconv.FormatBool(v)
	}
	if text, ok := utils.FormatNumber(value); ok {
		return text
	}
	return cast.ToString(value)
}
