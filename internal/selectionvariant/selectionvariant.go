// Package selectionvariant implements the SelectionVariant value-range
// container exchanged between applications: named select options made of
// signed ranges, plus plain parameters.
//
// A SelectionVariant is owned by its creator, typically for one navigation
// or filter bar session. Functions of other packages that derive data from a
// variant return a new one instead of changing the variant they were given.
package selectionvariant

import (
	"errors"
	"fmt"
)

// Signs
const (
	SignInclude = "I"
	SignExclude = "E"
)

// Option codes
const (
	OptionEQ = "EQ"
	OptionNE = "NE"
	OptionBT = "BT"
	OptionNB = "NB"
	OptionLT = "LT"
	OptionLE = "LE"
	OptionGT = "GT"
	OptionGE = "GE"
	OptionCP = "CP"
	OptionNP = "NP"
)

var validOptions = map[string]bool{
	OptionEQ: true, OptionNE: true, OptionBT: true, OptionNB: true, OptionLT: true,
	OptionLE: true, OptionGT: true, OptionGE: true, OptionCP: true, OptionNP: true,
}

var (
	ErrInvalidSign         = errors.New("invalid select option sign")
	ErrInvalidOption       = errors.New("invalid select option")
	ErrInvalidPropertyName = errors.New("property name must not be empty")
)

// SemanticDates describes a relative date range carried along with a select option.
type SemanticDates struct {
	High     any    `json:"high"`
	Low      any    `json:"low"`
	Operator string `json:"operator"`
}

// SelectOption is one signed range of a select option.
type SelectOption struct {
	Sign          string         `json:"Sign"`
	Option        string         `json:"Option"`
	Low           string         `json:"Low"`
	High          string         `json:"High"`
	SemanticDates *SemanticDates `json:"SemanticDates,omitempty"`
	// Filtered marks ranges freshly applied from the page context.
	Filtered *bool `json:"filtered,omitempty"`
}

// SelectionVariant is an ordered set of select options and parameters.
type SelectionVariant struct {
	ID                  string
	Text                string
	ParameterContextURL string
	FilterContextURL    string

	optionNames    []string
	options        map[string][]SelectOption
	parameterNames []string
	parameters     map[string]string
}

// New returns an empty selection variant.
func New() *SelectionVariant {
	return &SelectionVariant{
		options:    make(map[string][]SelectOption),
		parameters: make(map[string]string),
	}
}

// SelectOption returns a copy of the ranges of name, or nil.
func (sv *SelectionVariant) SelectOption(name string) []SelectOption {
	ranges, ok := sv.options[name]
	if !ok {
		return nil
	}
	return append([]SelectOption(nil), ranges...)
}

// HasSelectOption reports whether name has at least one range.
func (sv *SelectionVariant) HasSelectOption(name string) bool {
	return len(sv.options[name]) > 0
}

// AddSelectOption appends a range to the select option name.
func (sv *SelectionVariant) AddSelectOption(name, sign, option, low, high string, semanticDates *SemanticDates) error {
	if name == "" {
		return ErrInvalidPropertyName
	}
	if sign != SignInclude && sign != SignExclude {
		return fmt.Errorf("%w: %q", ErrInvalidSign, sign)
	}
	if !validOptions[option] {
		return fmt.Errorf("%w: %q", ErrInvalidOption, option)
	}
	sv.appendRange(name, SelectOption{Sign: sign, Option: option, Low: low, High: high, SemanticDates: semanticDates})
	return nil
}

func (sv *SelectionVariant) appendRange(name string, so SelectOption) {
	if sv.options == nil {
		sv.options = make(map[string][]SelectOption)
	}
	if _, ok := sv.options[name]; !ok {
		sv.optionNames = append(sv.optionNames, name)
	}
	sv.options[name] = append(sv.options[name], so)
}

// MassAddSelectOption appends several validated ranges to name.
func (sv *SelectionVariant) MassAddSelectOption(name string, ranges []SelectOption) error {
	for _, so := range ranges {
		if err := sv.AddSelectOption(name, so.Sign, so.Option, so.Low, so.High, so.SemanticDates); err != nil {
			return err
		}
		if so.Filtered != nil {
			added := sv.options[name]
			flag := *so.Filtered
			added[len(added)-1].Filtered = &flag
		}
	}
	return nil
}

// SetFiltered sets the Filtered marker on every range of name.
func (sv *SelectionVariant) SetFiltered(name string, filtered bool) {
	for i := range sv.options[name] {
		flag := filtered
		sv.options[name][i].Filtered = &flag
	}
}

// RemoveSelectOption deletes name and reports whether it existed.
func (sv *SelectionVariant) RemoveSelectOption(name string) bool {
	if _, ok := sv.options[name]; !ok {
		return false
	}
	delete(sv.options, name)
	sv.optionNames = remove(sv.optionNames, name)
	return true
}

// SelectOptionsPropertyNames returns the select option names in insertion order.
func (sv *SelectionVariant) SelectOptionsPropertyNames() []string {
	return append([]string(nil), sv.optionNames...)
}

// AddParameter sets a parameter value.
func (sv *SelectionVariant) AddParameter(name, value string) error {
	if name == "" {
		return ErrInvalidPropertyName
	}
	if sv.parameters == nil {
		sv.parameters = make(map[string]string)
	}
	if _, ok := sv.parameters[name]; !ok {
		sv.parameterNames = append(sv.parameterNames, name)
	}
	sv.parameters[name] = value
	return nil
}

// Parameter returns the value of name.
func (sv *SelectionVariant) Parameter(name string) (string, bool) {
	value, ok := sv.parameters[name]
	return value, ok
}

// RemoveParameter deletes name and reports whether it existed.
func (sv *SelectionVariant) RemoveParameter(name string) bool {
	if _, ok := sv.parameters[name]; !ok {
		return false
	}
	delete(sv.parameters, name)
	sv.parameterNames = remove(sv.parameterNames, name)
	return true
}

// ParameterNames returns the parameter names in insertion order.
func (sv *SelectionVariant) ParameterNames() []string {
	return append([]string(nil), sv.parameterNames...)
}

// PropertyNames returns parameter and select option names, parameters first, without duplicates.
func (sv *SelectionVariant) PropertyNames() []string {
	names := sv.ParameterNames()
	for _, name := range sv.optionNames {
		if _, ok := sv.parameters[name]; !ok {
			names = append(names, name)
		}
	}
	return names
}

// IsEmpty reports whether the variant has neither parameters nor select options.
func (sv *SelectionVariant) IsEmpty() bool {
	return len(sv.optionNames) == 0 && len(sv.parameterNames) == 0
}

// Clone returns a deep copy.
func (sv *SelectionVariant) Clone() *SelectionVariant {
	out := New()
	out.ID, out.Text = sv.ID, sv.Text
	out.ParameterContextURL, out.FilterContextURL = sv.ParameterContextURL, sv.FilterContextURL
	for _, name := range sv.parameterNames {
		out.parameterNames = append(out.parameterNames, name)
		out.parameters[name] = sv.parameters[name]
	}
	for _, name := range sv.optionNames {
		ranges := make([]SelectOption, 0, len(sv.options[name]))
		for _, so := range sv.options[name] {
			if so.SemanticDates != nil {
				dates := *so.SemanticDates
				so.SemanticDates = &dates
			}
			if so.Filtered != nil {
				flag := *so.Filtered
				so.Filtered = &flag
			}
			ranges = append(ranges, so)
		}
		out.optionNames = append(out.optionNames, name)
		out.options[name] = ranges
	}
	return out
}

func remove(list []string, item string) []string {
	out := list[:0]
	for _, entry := range list {
		if entry != item {
			out = append(out, entry)
		}
	}
	return out
}
