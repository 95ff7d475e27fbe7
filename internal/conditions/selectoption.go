package conditions

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/selectionvariant"
	"github.com/zmcp/odata-filter-restrictions/internal/utils"
)

// Filter bar operators produced from select options.
const (
	OperatorEQ            = "EQ"
	OperatorNE            = "NE"
	OperatorBT            = "BT"
	OperatorNOTBT         = "NOTBT"
	OperatorEmpty         = "Empty"
	OperatorNotEmpty      = "NotEmpty"
	OperatorContains      = "Contains"
	OperatorNotContains   = "NotContains"
	OperatorStartsWith    = "StartsWith"
	OperatorNotStartsWith = "NotStartsWith"
	OperatorEndsWith      = "EndsWith"
	OperatorNotEndsWith   = "NotEndsWith"
)

var negatedComparisons = map[string]string{
	selectionvariant.OptionLE: "NOTLE",
	selectionvariant.OptionLT: "NOTLT",
	selectionvariant.OptionGE: "NOTGE",
	selectionvariant.OptionGT: "NOTGT",
}

// conditionFromSelectOption translates one range into a condition with
// untyped values. ok is false for ranges no filter bar operator represents.
func conditionFromSelectOption(so selectionvariant.SelectOption) (Condition, bool) {
	exclude := so.Sign == selectionvariant.SignExclude
	option := so.Option
	switch option {
	case selectionvariant.OptionNP:
		option, exclude = selectionvariant.OptionCP, !exclude
	case selectionvariant.OptionNB:
		option, exclude = selectionvariant.OptionBT, !exclude
	case selectionvariant.OptionNE:
		option, exclude = selectionvariant.OptionEQ, !exclude
	}

	switch option {
	case selectionvariant.OptionCP:
		return patternCondition(so.Low, exclude), true
	case selectionvariant.OptionEQ:
		if so.Low == "" {
			if exclude {
				return Condition{Operator: OperatorNotEmpty, Values: []any{}}, true
			}
			return Condition{Operator: OperatorEmpty, Values: []any{}}, true
		}
		if exclude {
			return Condition{Operator: OperatorNE, Values: []any{so.Low}}, true
		}
		return Condition{Operator: OperatorEQ, Values: []any{so.Low}}, true
	case selectionvariant.OptionBT:
		if exclude {
			return Condition{Operator: OperatorNOTBT, Values: []any{so.Low, so.High}}, true
		}
		return Condition{Operator: OperatorBT, Values: []any{so.Low, so.High}}, true
	case selectionvariant.OptionLE, selectionvariant.OptionLT, selectionvariant.OptionGE, selectionvariant.OptionGT:
		if exclude {
			return Condition{Operator: negatedComparisons[option], Values: []any{so.Low}}, true
		}
		return Condition{Operator: option, Values: []any{so.Low}}, true
	}
	return Condition{}, false
}

func patternCondition(pattern string, exclude bool) Condition {
	leading := strings.HasPrefix(pattern, "*")
	trailing := len(pattern) > 1 && strings.HasSuffix(pattern, "*")
	value := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")

	var operator string
	switch {
	case leading && trailing:
		operator = pick(exclude, OperatorNotContains, OperatorContains)
	case trailing:
		operator = pick(exclude, OperatorNotStartsWith, OperatorStartsWith)
	case leading:
		operator = pick(exclude, OperatorNotEndsWith, OperatorEndsWith)
	default:
		operator = pick(exclude, OperatorNE, OperatorEQ)
	}
	return Condition{Operator: operator, Values: []any{value}}
}

func pick(exclude bool, excluded, included string) string {
	if exclude {
		return excluded
	}
	return included
}

// typeCompliantValue converts a select option value to the Go value a filter
// field of edmType holds. Values that do not convert are kept as text.
func typeCompliantValue(value any, edmType string) any {
	text, ok := value.(string)
	if !ok || text == "" {
		return value
	}
	switch edmType {
	case constants.EdmBoolean:
		if b, err := cast.ToBoolE(text); err == nil {
			return b
		}
	case constants.EdmByte, constants.EdmSByte, constants.EdmInt16, constants.EdmInt32, constants.EdmInt64:
		// cast parses with base 0, which reads "010" as octal
		if i, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64); err == nil {
			return i
		}
	case constants.EdmDouble, constants.EdmSingle:
		if f, err := cast.ToFloat64E(strings.TrimSpace(text)); err == nil {
			return f
		}
	case constants.EdmDecimal:
		if d, err := utils.NormalizeDecimal(text); err == nil {
			return d
		}
	case constants.EdmGuid:
		if id, err := uuid.Parse(text); err == nil {
			return id.String()
		}
	case constants.EdmDate, constants.EdmDateTimeOffset, constants.EdmDateTime, constants.EdmTimeOfDay:
		return utils.NormalizeDateValue(text, edmType)
	}
	return text
}
