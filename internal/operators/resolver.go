package operators

import (
	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/metadata"
	"github.com/zmcp/odata-filter-restrictions/internal/restrictions"
)

// Request describes the filter field to resolve operators for.
type Request struct {
	Property      string
	EntitySetPath string
	// EdmType overrides the type read from metadata.
	EdmType              string
	UseSemanticDateRange bool
	Settings             *Settings
}

// Result holds the operators for one property.
//
// Defaults is the unrestricted operator set of the type. Restricted is set
// when a filter expression restriction applied; Operators is then the
// intersection with the reference list of the restriction and may be empty.
type Result struct {
	Operators  []string
	Defaults   []string
	Restricted bool
}

// Effective returns Operators, falling back to Defaults when a restriction
// left no operator at all.
func (r Result) Effective() []string {
	if r.Restricted && len(r.Operators) == 0 {
		return r.Defaults
	}
	return r.Operators
}

// ForProperty resolves the operators of req.Property on req.EntitySetPath.
func ForProperty(accessor metadata.Accessor, req Request) Result {
	if marker, _ := accessor.GetObject(req.EntitySetPath + "/" + constants.TermResultContext).(bool); marker {
		return Result{Operators: clone(EqualsOperators), Defaults: clone(EqualsOperators), Restricted: true}
	}

	edmType := req.EdmType
	if edmType == "" {
		edmType, _ = accessor.GetObject(req.EntitySetPath + "/" + req.Property + "/" + constants.PathType).(string)
	}

	semanticOps := SemanticDateOperations(edmType)
	if req.Settings != nil && len(req.Settings.OperatorConfiguration) > 0 {
		semanticOps = FilterOperations(req.Settings.OperatorConfiguration, edmType)
	}

	defaults := TypeOperators(edmType)
	if req.UseSemanticDateRange {
		defaults = union(SemanticDateOperations(edmType), defaults)
	}

	filter := restrictions.FilterRestrictionsByPath(accessor, req.EntitySetPath)
	kinds := filter.AllowedExpressions(req.Property)
	if len(kinds) == 0 {
		return Result{Operators: defaults, Defaults: defaults}
	}

	var reference []string
	switch SpecificAllowedExpression(kinds) {
	case SingleValue:
		if edmType == constants.EdmDate && req.UseSemanticDateRange {
			reference = SingleValueDateOperators
		} else {
			reference = EqualsOperators
		}
	case MultiValue:
		reference = EqualsOperators
	case SingleRange:
		reference = singleRangeReference(edmType, req.UseSemanticDateRange, semanticOps)
	case MultiRange:
		reference = MultiRangeOperators
	case SearchExpression:
		reference = SearchExpressionOperators
	case MultiRangeOrSearchExpression:
		reference = union(SearchExpressionOperators, MultiRangeOperators)
	default:
		return Result{Operators: defaults, Defaults: defaults}
	}
	return Result{Operators: intersect(defaults, reference), Defaults: defaults, Restricted: true}
}

func singleRangeReference(edmType string, semantic bool, semanticOps []string) []string {
	switch {
	case semantic && edmType == constants.EdmDate:
		return semanticOps
	case semantic && edmType == constants.EdmDateTimeOffset:
		return union(semanticOps, BasicDateTimeOperators)
	case edmType == constants.EdmDateTimeOffset:
		return SingleRangeDTBasicOperators
	}
	return SingleRangeOperators
}

// ForDateProperty returns the plain range operators of a date type, never
// semantic ones.
func ForDateProperty(edmType string) []string {
	return intersect(TypeOperators(edmType), MultiRangeOperators)
}
