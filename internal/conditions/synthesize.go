package conditions

import (
	"io"
	"log/slog"
	"strings"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/filterability"
	"github.com/zmcp/odata-filter-restrictions/internal/metadata"
	"github.com/zmcp/odata-filter-restrictions/internal/operators"
	"github.com/zmcp/odata-filter-restrictions/internal/selectionvariant"
)

// Synthesizer turns SelectionVariants into filter conditions validated
// against the metadata of a service.
type Synthesizer struct {
	Meta                 metadata.Accessor
	Logger               *slog.Logger
	UseSemanticDateRange bool
	Settings             *operators.Settings
}

// NewSynthesizer creates a synthesizer for meta.
func NewSynthesizer(meta metadata.Accessor, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{Meta: meta, Logger: logger}
}

func (s *Synthesizer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

// target is the filter field a select option is applied to.
type target struct {
	entityPath string
	property   string
	key        string
}

// AddSelectionVariantToConditions merges the select options of sv into a copy
// of existing and returns it. contextPath is the entity set path of the
// filter bar. Select options that are invalid for the metadata are skipped;
// the call never fails.
func (s *Synthesizer) AddSelectionVariantToConditions(sv *selectionvariant.SelectionVariant, existing ConditionMap, contextPath string) ConditionMap {
	conditions := existing.Clone()
	if sv == nil || s.Meta == nil || contextPath == "" {
		return conditions
	}
	names := sv.SelectOptionsPropertyNames()

	if parameterPath, ok := ParameterContextPath(s.Meta, contextPath); ok {
		for _, parameter := range metadata.EntityProperties(s.Meta, parameterPath) {
			name, ok := s.resolveName(sv, names, parameter)
			if !ok {
				continue
			}
			t := target{entityPath: parameterPath, property: parameter, key: ParameterPrefix + parameter}
			s.apply(conditions, t, s.selectOptions(sv, name))
		}
	}

	for _, property := range metadata.EntityProperties(s.Meta, contextPath) {
		name, ok := s.resolveName(sv, names, property)
		if !ok || !s.isFilterable(contextPath, property) {
			continue
		}
		t := target{entityPath: contextPath, property: property, key: property}
		s.apply(conditions, t, s.selectOptions(sv, name))
	}

	for _, name := range names {
		if strings.Index(name, ".") <= 0 || strings.Contains(name, "$Parameter") {
			continue
		}
		s.addNavigationConditions(conditions, sv, name, contextPath)
	}
	return conditions
}

// ParameterContextPath returns the path of the parameter entity of a
// parameterized entity set path such as "/SalesParameters/Set".
func ParameterContextPath(meta metadata.Accessor, contextPath string) (string, bool) {
	index := strings.LastIndex(contextPath, "/")
	if index <= 0 {
		return "", false
	}
	parent := contextPath[:index]
	marker, _ := meta.GetObject(parent + "/" + constants.TermResultContext).(bool)
	return parent, marker
}

// ResolveSelectOptionName picks the select option applying to property from
// names. Exact names win over their "$Parameter." form stripped of or
// extended with the "P_" prefix, so the choice does not depend on the order
// of names.
func ResolveSelectOptionName(names []string, property string) (string, bool) {
	candidates := []string{ParameterPrefix + property, property}
	if stripped, ok := strings.CutPrefix(property, constants.ParameterNamePrefix); ok {
		candidates = append(candidates, ParameterPrefix+stripped, stripped)
	}
	candidates = append(candidates, ParameterPrefix+constants.ParameterNamePrefix+property, constants.ParameterNamePrefix+property)

	for _, candidate := range candidates {
		for _, name := range names {
			if name == candidate {
				return name, true
			}
		}
	}
	return "", false
}

// resolveName resolves property against the select options of sv, falling
// back to its parameters.
func (s *Synthesizer) resolveName(sv *selectionvariant.SelectionVariant, names []string, property string) (string, bool) {
	if name, ok := ResolveSelectOptionName(names, property); ok {
		return name, true
	}
	return ResolveSelectOptionName(sv.ParameterNames(), property)
}

// selectOptions returns the ranges of name, reading a parameter as a single
// equals range.
func (s *Synthesizer) selectOptions(sv *selectionvariant.SelectionVariant, name string) []selectionvariant.SelectOption {
	if ranges := sv.SelectOption(name); len(ranges) > 0 {
		return ranges
	}
	if value, ok := sv.Parameter(name); ok {
		return []selectionvariant.SelectOption{{Sign: selectionvariant.SignInclude, Option: selectionvariant.OptionEQ, Low: value}}
	}
	return nil
}

func (s *Synthesizer) isFilterable(entitySetPath, property string) bool {
	result, err := filterability.IsPropertyFilterable(s.Meta, entitySetPath, property, true)
	if err != nil {
		return false
	}
	return result.IsExpression() || result.Filterable
}

// addNavigationConditions applies a dotted select option such as
// "_Item.Material" or "Orders._Item.Material" to the property it reaches.
func (s *Synthesizer) addNavigationConditions(conditions ConditionMap, sv *selectionvariant.SelectionVariant, name, contextPath string) {
	relative := strings.ReplaceAll(name, ".", "/")
	fullPath := contextPath + "/" + relative
	if strings.HasPrefix("/"+relative, contextPath+"/") {
		fullPath = "/" + relative
	}
	if s.Meta.GetObject(fullPath) == nil && s.Meta.GetObject(strings.Replace(fullPath, constants.ParameterNamePrefix, "", 1)) == nil {
		return
	}

	segments := strings.Split(strings.TrimPrefix(fullPath, contextPath+"/"), "/")
	property := segments[len(segments)-1]

	var conditionPath strings.Builder
	var navigationSegments []string
	entityPath := contextPath
	for _, segment := range segments[:len(segments)-1] {
		conditionPath.WriteString(segment)
		navigationSegments = append(navigationSegments, strings.Replace(segment, constants.ParameterNamePrefix, "", 1))
		navigation := entityPath + "/" + navigationSegments[len(navigationSegments)-1]
		if many, _ := s.Meta.GetObject(navigation + "/" + constants.PathIsCollection).(bool); many {
			conditionPath.WriteString("*")
		}
		conditionPath.WriteString("/")
		entityPath += "/" + segment
	}

	navigationPath := fullPath[:strings.LastIndex(fullPath, "/")]
	valid := metadata.EntityProperties(s.Meta, navigationPath)
	resolved := ""
	switch stripped, prefixed := strings.CutPrefix(property, constants.ParameterNamePrefix); {
	case contains(valid, property):
		resolved = property
	case prefixed && contains(valid, stripped):
		resolved = stripped
	case contains(valid, constants.ParameterNamePrefix+property) && sv.HasSelectOption(constants.ParameterNamePrefix+property):
		resolved = constants.ParameterNamePrefix + property
	default:
		s.logger().Debug("select option does not reach a property", "selectOption", name, "path", navigationPath)
		return
	}

	if !s.isFilterable(contextPath, strings.Join(append(navigationSegments, resolved), "/")) {
		s.logger().Debug("navigation property is not filterable", "selectOption", name, "path", navigationPath)
		return
	}

	key := conditionPath.String() + resolved
	if len(conditions[key]) > 0 {
		// Conditions taken from an unprefixed name stay; a prefixed
		// name never replaces them.
		if strings.HasPrefix(property, constants.ParameterNamePrefix) {
			return
		}
		delete(conditions, key)
	}
	s.apply(conditions, target{entityPath: navigationPath, property: resolved, key: key}, sv.SelectOption(name))
}

// apply converts ranges into conditions for t and stores them when at least
// one survives.
func (s *Synthesizer) apply(conditions ConditionMap, t target, ranges []selectionvariant.SelectOption) {
	if len(ranges) == 0 {
		return
	}
	propertyPath := t.entityPath + "/" + t.property
	edmType, _ := s.Meta.GetObject(propertyPath + "/" + constants.PathType).(string)
	fixedValues, _ := s.Meta.GetObject(propertyPath + constants.TermValueListFixedValues).(bool)

	allowed := operators.ForProperty(s.Meta, operators.Request{
		Property:             t.property,
		EntitySetPath:        t.entityPath,
		EdmType:              edmType,
		UseSemanticDateRange: s.UseSemanticDateRange,
		Settings:             s.Settings,
	}).Effective()
	semanticAllowed := operators.SemanticDateOperations(edmType)
	if s.Settings != nil && len(s.Settings.OperatorConfiguration) > 0 {
		semanticAllowed = operators.FilterOperations(s.Settings.OperatorConfiguration, edmType)
	}

	var added []Condition
	for _, so := range ranges {
		if s.UseSemanticDateRange && so.SemanticDates != nil && operators.IsSemanticDateOperator(so.SemanticDates.Operator) {
			if !contains(semanticAllowed, so.SemanticDates.Operator) {
				s.logger().Warn("dropping semantic date not supported by the filter field",
					"field", t.key, "operator", so.SemanticDates.Operator)
				continue
			}
			// The payload stores values[0] as High, so a DATERANGE written by
			// AddExternalStateFiltersToSelectionVariant comes back with its
			// bounds swapped. SemanticDatesFromCondition restores High and Low.
			added = append(added, ConditionFromSemanticDates(*so.SemanticDates))
			continue
		}

		condition, ok := conditionFromSelectOption(so)
		if !ok {
			s.logger().Warn("dropping select option without filter operator",
				"field", t.key, "sign", so.Sign, "option", so.Option)
			continue
		}
		if !contains(allowed, condition.Operator) {
			s.logger().Warn("dropping condition with operator not allowed for the filter field",
				"field", t.key, "operator", condition.Operator, "allowed", allowed)
			continue
		}
		for i, value := range condition.Values {
			condition.Values[i] = typeCompliantValue(value, edmType)
		}
		if fixedValues && condition.Operator == OperatorEQ {
			condition.Validated = ValidatedFixedValue
		}
		added = append(added, condition)
	}

	if len(added) > 0 {
		conditions[t.key] = added
	}
}

func contains(list []string, item string) bool {
	for _, entry := range list {
		if entry == item {
			return true
		}
	}
	return false
}
