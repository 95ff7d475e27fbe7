package restrictions

import (
	"github.com/zmcp/odata-filter-restrictions/internal/metadata"
	"github.com/zmcp/odata-filter-restrictions/internal/paths"
)

// FilterRestrictionsByPath returns the merged FilterRestrictions for an entity or navigation path.
func FilterRestrictionsByPath(accessor metadata.Accessor, path string) Restrictions {
	return Read(accessor, Filter, path)
}

// SearchRestrictionsByPath returns the merged SearchRestrictions for path.
func SearchRestrictionsByPath(accessor metadata.Accessor, path string) Restrictions {
	return Read(accessor, Search, path)
}

// NavigationRestrictionsByPath returns the merged NavigationRestrictions for path.
func NavigationRestrictionsByPath(accessor metadata.Accessor, path string) Restrictions {
	return Read(accessor, Navigation, path)
}

// Direct returns the restrictions of kind annotated exactly at target,
// without consulting any other scope.
func Direct(accessor metadata.Accessor, kind Kind, target string) (Restrictions, bool) {
	l, ok := defaultReader.direct(accessor, kind, target)
	return l.Restrictions, ok
}

// NavigationRestriction returns the NavigationRestrictions entry for
// navigationPath declared on the entity set at parentSetPath, or nil.
func NavigationRestriction(accessor metadata.Accessor, parentSetPath, navigationPath string) *NavigationPropertyRestriction {
	return defaultReader.NavigationRestriction(accessor, parentSetPath, navigationPath)
}

// NavigationRestriction returns the NavigationRestrictions entry for
// navigationPath declared on the entity set at parentSetPath, or nil.
func (r *Reader) NavigationRestriction(accessor metadata.Accessor, parentSetPath, navigationPath string) *NavigationPropertyRestriction {
	l, ok := r.direct(accessor, Navigation, parentSetPath)
	if !ok {
		return nil
	}
	nav := NavigationRestrictions{RestrictedProperties: l.RestrictedNavigations}
	return nav.Lookup(paths.DecodeSegments(navigationPath))
}

// RequiredProperties returns the properties required on create (Insert) or
// change (Update) for path. Any other kind yields nil.
func RequiredProperties(accessor metadata.Accessor, path string, kind Kind) []string {
	if kind != Insert && kind != Update {
		return nil
	}
	return Read(accessor, kind, path).RequiredProperties
}

// MandatoryFilterFields returns FilterRestrictions.RequiredProperties for path.
func MandatoryFilterFields(accessor metadata.Accessor, path string) []string {
	return Read(accessor, Filter, path).RequiredProperties
}

// RequiresFilter reports whether a filter is required before requesting path.
func RequiresFilter(accessor metadata.Accessor, path string) bool {
	return flag(Read(accessor, Filter, path).RequiresFilter, false)
}

// IsSearchable reports whether search is allowed; undeclared means true.
func IsSearchable(accessor metadata.Accessor, path string) bool {
	return flag(Read(accessor, Search, path).Searchable, true)
}

// IsInsertable reports whether create is allowed; undeclared means true.
func IsInsertable(accessor metadata.Accessor, path string) bool {
	return flag(Read(accessor, Insert, path).Insertable, true)
}

// IsUpdatable reports whether change is allowed; undeclared means true.
func IsUpdatable(accessor metadata.Accessor, path string) bool {
	return flag(Read(accessor, Update, path).Updatable, true)
}

func flag(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
