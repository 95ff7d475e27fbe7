// Package filterability decides whether a property path can be used in a
// filter, taking hidden annotations, capability restrictions, custom
// aggregates and EDM types into account.
package filterability

import (
	"errors"
	"strings"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/metadata"
	"github.com/zmcp/odata-filter-restrictions/internal/paths"
	"github.com/zmcp/odata-filter-restrictions/internal/restrictions"
)

// ErrInvalidPropertyPath is returned for an empty property path.
var ErrInvalidPropertyPath = errors.New("property path must be a non-empty string")

// Result is either a plain boolean or an Expression that is decided at
// runtime from instance data.
type Result struct {
	Filterable bool
	Expression *Expression
}

// IsExpression reports whether the result is only known at runtime.
func (r Result) IsExpression() bool {
	return r.Expression != nil
}

func (r Result) String() string {
	if r.Expression != nil {
		return r.Expression.String()
	}
	if r.Filterable {
		return "true"
	}
	return "false"
}

func literal(filterable bool) Result {
	return Result{Filterable: filterable}
}

func expression(e Expression) Result {
	return Result{Expression: &e}
}

// IsPropertyFilterable reports whether propertyPath, relative to
// entitySetPath, is filterable. Hidden checks are skipped with skipHiddenCheck.
func IsPropertyFilterable(accessor metadata.Accessor, entitySetPath, propertyPath string, skipHiddenCheck bool) (Result, error) {
	if propertyPath == "" {
		return Result{}, ErrInvalidPropertyPath
	}

	if marker, _ := accessor.GetObject(entitySetPath + "/" + constants.TermResultContext).(bool); marker {
		return literal(true), nil
	}

	ctx := accessor.CreateBindingContext(entitySetPath + "/" + propertyPath)

	if !skipHiddenCheck {
		if hidden, ok := hiddenResult(ctx); ok {
			return hidden, nil
		}
	}

	var filterable bool
	if len(strings.Split(entitySetPath, "/")) == 2 && !strings.Contains(propertyPath, "/") {
		filterable = !isInNonFilterableProperties(accessor, entitySetPath, propertyPath) &&
			!isCustomAggregate(accessor, entitySetPath, propertyPath)
	} else {
		filterable = !isNavigationPathNonFilterable(accessor, entitySetPath, propertyPath)
	}

	if filterable {
		dataType := PropertyDataType(ctx)
		filterable = dataType != "" && constants.IsTypeFilterable(dataType)
	}
	return literal(filterable), nil
}

// hiddenResult handles static and path-based UI.Hidden and UI.HiddenFilter.
func hiddenResult(ctx *metadata.Context) (Result, bool) {
	if ctx.GetProperty(constants.TermHidden) == true || ctx.GetProperty(constants.TermHiddenFilter) == true {
		return literal(false), true
	}

	hiddenPath, _ := ctx.GetProperty(constants.TermHidden + "/" + constants.PathPath).(string)
	hiddenFilterPath, _ := ctx.GetProperty(constants.TermHiddenFilter + "/" + constants.PathPath).(string)
	switch {
	case hiddenPath != "" && hiddenFilterPath != "":
		return expression(Not(Or(PathInModel(hiddenPath), PathInModel(hiddenFilterPath)))), true
	case hiddenPath != "":
		return expression(Not(PathInModel(hiddenPath))), true
	case hiddenFilterPath != "":
		return expression(Not(PathInModel(hiddenFilterPath))), true
	}
	return Result{}, false
}

// isInNonFilterableProperties checks the FilterRestrictions annotated directly on entitySetPath.
func isInNonFilterableProperties(accessor metadata.Accessor, entitySetPath, contextPath string) bool {
	r, _ := restrictions.Direct(accessor, restrictions.Filter, entitySetPath)
	return r.IsNonFilterable(contextPath)
}

// isCustomAggregate reports whether property is declared as a custom aggregate
// on the entity set or its entity type.
func isCustomAggregate(accessor metadata.Accessor, entitySetPath, property string) bool {
	key := constants.TermCustomAggregate + "#" + property
	for _, target := range []string{entitySetPath + "@", entitySetPath + "/@"} {
		if annotations, ok := accessor.GetObject(target).(map[string]any); ok {
			if _, found := annotations[key]; found {
				return true
			}
		}
	}
	return false
}

// isNavigationPathNonFilterable walks the navigation segments of propertyPath
// and reports whether any of them marks the property as non-filterable.
func isNavigationPathNonFilterable(accessor metadata.Accessor, entitySetPath, propertyPath string) bool {
	parts := paths.Split(entitySetPath + "/" + propertyPath)
	if len(parts) < 2 {
		return false
	}
	currentSet := "/" + parts[0]
	segments := parts[1:]
	context := ""

	for i, segment := range segments {
		if context != "" {
			context += "/" + segment
		} else {
			context = segment
		}

		if i == len(segments)-2 {
			target := segments[len(segments)-1]
			if entry := restrictions.NavigationRestriction(accessor, currentSet, segment); entry != nil && entry.FilterRestrictions != nil {
				for _, p := range entry.FilterRestrictions.NonFilterableProperties {
					if p.PropertyPath == target {
						return true
					}
				}
			}
		}

		if i == len(segments)-1 {
			return isInNonFilterableProperties(accessor, currentSet, context)
		}

		bindingPath := currentSet + "/" + constants.PathNavigationPropertyBinding + "/" + paths.EncodeNavigationSegment(segment)
		if next, ok := accessor.GetObject(bindingPath).(string); ok && next != "" {
			if isInNonFilterableProperties(accessor, currentSet, context) {
				return true
			}
			context = ""
			currentSet = "/" + next
		}
	}
	return false
}

// PropertyDataType resolves the EDM type behind ctx, following DataField
// wrappers to the value they display. It returns "" when there is none.
func PropertyDataType(ctx *metadata.Context) string {
	dataType, _ := ctx.GetProperty(constants.PathType).(string)
	if ctx.GetProperty(constants.PathKind) != nil {
		return dataType
	}

	switch dataType {
	case constants.DataFieldForAction, constants.DataFieldForIntentBasedNavigation:
		return ""
	case constants.DataField, constants.DataFieldWithNavigationPath, constants.DataFieldWithURL,
		constants.DataFieldWithIntentBasedNavigation, constants.DataFieldWithAction:
		resolved, _ := ctx.GetProperty("Value/$Path/$Type").(string)
		return resolved
	case constants.DataFieldForAnnotation:
		annotationPath, _ := ctx.GetProperty("Target/$AnnotationPath").(string)
		var resolved string
		switch {
		case strings.Contains(annotationPath, constants.TermContact):
			resolved, _ = ctx.GetProperty("Target/$AnnotationPath/fn/$Path/$Type").(string)
		case strings.Contains(annotationPath, constants.TermDataPoint):
			resolved, _ = ctx.GetProperty("Target/$AnnotationPath/Value/$Path/$Type").(string)
		}
		return resolved
	}
	return dataType
}
