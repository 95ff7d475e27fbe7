// Package restrictions reads capability restriction annotations at the
// entity set, parent navigation and association target scopes and merges
// them by priority.
package restrictions

import (
	"io"
	"log/slog"
	"strings"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/metadata"
	"github.com/zmcp/odata-filter-restrictions/internal/paths"
)

// Restrictions is the merged view of one capability term for a path.
// Scalar flags are nil when no layer declares them.
type Restrictions struct {
	Kind                     Kind
	RequiredProperties       []string
	NonFilterableProperties  []string
	FilterAllowedExpressions map[string][]string
	RestrictedNavigations    []NavigationPropertyRestriction

	Filterable     *bool
	RequiresFilter *bool
	Searchable     *bool
	Insertable     *bool
	Updatable      *bool
}

// IsNonFilterable reports whether property is listed as non-filterable.
func (r Restrictions) IsNonFilterable(property string) bool {
	return contains(r.NonFilterableProperties, property)
}

// AllowedExpressions returns the declared expression kinds of property.
func (r Restrictions) AllowedExpressions(property string) []string {
	return r.FilterAllowedExpressions[property]
}

// Scope identifies where a restriction layer was read.
type Scope int

// Layers in ascending priority.
const (
	EntitySet Scope = iota
	ParentPropertyPath
	ParentNavigation
	AssociationTarget
)

func (s Scope) String() string {
	return [...]string{"entity set", "parent property path", "parent navigation", "association target"}[s]
}

// Layer is one restriction source before merging.
type Layer struct {
	Scope Scope
	Path  string
	Restrictions
}

// Reader reads and merges restriction layers. The zero value logs nothing.
type Reader struct {
	Logger *slog.Logger
}

var defaultReader = &Reader{}

func (r *Reader) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

// Read merges the restrictions of kind that apply to path.
func Read(accessor metadata.Accessor, kind Kind, path string) Restrictions {
	return defaultReader.Read(accessor, kind, path)
}

// Read merges the restrictions of kind that apply to path.
func (r *Reader) Read(accessor metadata.Accessor, kind Kind, path string) Restrictions {
	return Merge(kind, r.Layers(accessor, kind, path))
}

// Layers collects the restriction layers of kind for path in ascending priority.
func (r *Reader) Layers(accessor metadata.Accessor, kind Kind, path string) []Layer {
	resolved := paths.Resolve(accessor, path)
	if len(resolved.EntityTypeParts) == 0 {
		return nil
	}

	var layers []Layer
	if !resolved.Containment && resolved.Resolved {
		if l, ok := r.direct(accessor, kind, resolved.EntitySetPath); ok {
			l.Scope = EntitySet
			if isResultContext(accessor, resolved.EntityTypePath) {
				l.NonFilterableProperties = nil
			}
			layers = append(layers, l)
		}
	}
	if !resolved.HasNavigation() {
		return layers
	}

	nav := resolved.NavigationSegment
	parent := resolved.ParentEntitySetPath
	if parent == "" {
		parent = paths.Join(resolved.EntityTypeParts[:len(resolved.EntityTypeParts)-1])
	}

	if l, ok := r.direct(accessor, kind, parent); ok {
		l.Scope = ParentPropertyPath
		layers = append(layers, stripNavigationPrefix(l, nav))
	}
	if l, ok := r.nested(accessor, kind, parent, nav); ok {
		layers = append(layers, l)
	}
	if l, ok := r.direct(accessor, kind, resolved.EntityTypePath); ok {
		l.Scope = AssociationTarget
		layers = append(layers, l)
	}
	return layers
}

// direct reads the term of kind annotated on target.
func (r *Reader) direct(accessor metadata.Accessor, kind Kind, target string) (Layer, bool) {
	value := accessor.GetObject(target + kind.Term())
	if value == nil {
		return Layer{}, false
	}
	l := Layer{Path: target}
	if !r.decodeInto(&l.Restrictions, kind, value, target) {
		return Layer{}, false
	}
	return l, true
}

// nested reads the term of kind from the NavigationRestrictions entry of nav on parent.
func (r *Reader) nested(accessor metadata.Accessor, kind Kind, parent, nav string) (Layer, bool) {
	if kind == Navigation {
		return Layer{}, false
	}
	entry := r.NavigationRestriction(accessor, parent, nav)
	if entry == nil {
		return Layer{}, false
	}
	l := Layer{Scope: ParentNavigation, Path: parent}
	l.Kind = kind
	switch kind {
	case Filter:
		if entry.FilterRestrictions == nil {
			return Layer{}, false
		}
		applyFilter(&l.Restrictions, entry.FilterRestrictions)
	case Search:
		if entry.SearchRestrictions == nil {
			return Layer{}, false
		}
		l.Searchable = entry.SearchRestrictions.Searchable
	case Insert:
		if entry.InsertRestrictions == nil {
			return Layer{}, false
		}
		l.Insertable = entry.InsertRestrictions.Insertable
		l.RequiredProperties = pathList(entry.InsertRestrictions.RequiredProperties)
	case Update:
		if entry.UpdateRestrictions == nil {
			return Layer{}, false
		}
		l.Updatable = entry.UpdateRestrictions.Updatable
		l.RequiredProperties = pathList(entry.UpdateRestrictions.RequiredProperties)
	}
	return l, true
}

func (r *Reader) decodeInto(out *Restrictions, kind Kind, value any, target string) bool {
	out.Kind = kind
	var err error
	switch kind {
	case Filter:
		var rec FilterRestrictions
		if err = decodeRecord(value, &rec); err == nil {
			applyFilter(out, &rec)
		}
	case Search:
		var rec SearchRestrictions
		if err = decodeRecord(value, &rec); err == nil {
			out.Searchable = rec.Searchable
		}
	case Navigation:
		var rec NavigationRestrictions
		if err = decodeRecord(value, &rec); err == nil {
			out.RestrictedNavigations = rec.RestrictedProperties
		}
	case Insert:
		var rec InsertRestrictions
		if err = decodeRecord(value, &rec); err == nil {
			out.Insertable = rec.Insertable
			out.RequiredProperties = pathList(rec.RequiredProperties)
		}
	case Update:
		var rec UpdateRestrictions
		if err = decodeRecord(value, &rec); err == nil {
			out.Updatable = rec.Updatable
			out.RequiredProperties = pathList(rec.RequiredProperties)
		}
	}
	if err != nil {
		r.logger().Warn("ignoring malformed restriction annotation",
			"term", kind.Term(), "target", target, "error", err)
		return false
	}
	return true
}

func applyFilter(out *Restrictions, rec *FilterRestrictions) {
	out.Filterable = rec.Filterable
	out.RequiresFilter = rec.RequiresFilter
	out.RequiredProperties = pathList(rec.RequiredProperties)
	out.NonFilterableProperties = pathList(rec.NonFilterableProperties)
	for _, fer := range rec.FilterExpressionRestrictions {
		property := fer.Property.Path()
		if property == "" || fer.AllowedExpressions == "" {
			continue
		}
		if out.FilterAllowedExpressions == nil {
			out.FilterAllowedExpressions = make(map[string][]string)
		}
		out.FilterAllowedExpressions[property] = appendUnique(out.FilterAllowedExpressions[property], fer.AllowedExpressions)
	}
}

// stripNavigationPrefix keeps the entries addressed through nav and removes the "nav/" prefix.
func stripNavigationPrefix(l Layer, nav string) Layer {
	prefix := nav + "/"
	strip := func(entries []string) []string {
		var out []string
		for _, entry := range entries {
			if rest, ok := strings.CutPrefix(entry, prefix); ok && rest != "" {
				out = append(out, rest)
			}
		}
		return out
	}

	stripped := Layer{Scope: l.Scope, Path: l.Path}
	stripped.Kind = l.Kind
	stripped.RequiredProperties = strip(l.RequiredProperties)
	stripped.NonFilterableProperties = strip(l.NonFilterableProperties)
	for property, kinds := range l.FilterAllowedExpressions {
		if rest, ok := strings.CutPrefix(property, prefix); ok && rest != "" {
			if stripped.FilterAllowedExpressions == nil {
				stripped.FilterAllowedExpressions = make(map[string][]string)
			}
			stripped.FilterAllowedExpressions[rest] = kinds
		}
	}
	for _, entry := range l.RestrictedNavigations {
		if rest, ok := strings.CutPrefix(entry.NavigationProperty.Path(), prefix); ok && rest != "" {
			entry.NavigationProperty = PathExpression{NavigationPropertyPath: rest}
			stripped.RestrictedNavigations = append(stripped.RestrictedNavigations, entry)
		}
	}
	return stripped
}

// Merge folds layers given in ascending priority. List fields are unioned in
// first-seen order, allowed expressions are merged per property, navigation
// entries are keyed by navigation path and scalar flags come from the highest
// layer declaring them.
func Merge(kind Kind, layers []Layer) Restrictions {
	merged := Restrictions{Kind: kind}
	for _, l := range layers {
		merged.RequiredProperties = appendUnique(merged.RequiredProperties, l.RequiredProperties...)
		merged.NonFilterableProperties = appendUnique(merged.NonFilterableProperties, l.NonFilterableProperties...)
		for property, kinds := range l.FilterAllowedExpressions {
			if merged.FilterAllowedExpressions == nil {
				merged.FilterAllowedExpressions = make(map[string][]string)
			}
			merged.FilterAllowedExpressions[property] = appendUnique(merged.FilterAllowedExpressions[property], kinds...)
		}
		for _, entry := range l.RestrictedNavigations {
			merged.RestrictedNavigations = overlayNavigation(merged.RestrictedNavigations, entry)
		}
		merged.Filterable = overlay(merged.Filterable, l.Filterable)
		merged.RequiresFilter = overlay(merged.RequiresFilter, l.RequiresFilter)
		merged.Searchable = overlay(merged.Searchable, l.Searchable)
		merged.Insertable = overlay(merged.Insertable, l.Insertable)
		merged.Updatable = overlay(merged.Updatable, l.Updatable)
	}
	return merged
}

func overlay(current, next *bool) *bool {
	if next != nil {
		return next
	}
	return current
}

func overlayNavigation(entries []NavigationPropertyRestriction, next NavigationPropertyRestriction) []NavigationPropertyRestriction {
	for i := range entries {
		if entries[i].NavigationProperty.Path() == next.NavigationProperty.Path() {
			entries[i] = next
			return entries
		}
	}
	return append(entries, next)
}

// isResultContext reports whether the entity type behind path is a parameter entity.
func isResultContext(accessor metadata.Accessor, entityTypePath string) bool {
	marker, _ := accessor.GetObject(entityTypePath + "/" + constants.TermResultContext).(bool)
	return marker
}

func pathList(expressions []PathExpression) []string {
	var out []string
	for _, expression := range expressions {
		if path := expression.Path(); path != "" {
			out = append(out, path)
		}
	}
	return out
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if !contains(list, item) {
			list = append(list, item)
		}
	}
	return list
}

func contains(list []string, item string) bool {
	for _, entry := range list {
		if entry == item {
			return true
		}
	}
	return false
}
