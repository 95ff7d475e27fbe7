// Package paths normalizes entity and navigation meta paths and resolves
// entity type paths to the entity set paths backing them.
package paths

import (
	"strings"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/metadata"
)

// FilterOutNavigationBindingSegments drops "$NavigationPropertyBinding" and
// empty segments.
func FilterOutNavigationBindingSegments(parts []string) []string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == constants.PathNavigationPropertyBinding {
			continue
		}
		filtered = append(filtered, part)
	}
	return filtered
}

// EncodeNavigationSegment escapes "/" inside a navigation binding path so it
// can be used as a single meta path segment.
func EncodeNavigationSegment(segment string) string {
	return strings.ReplaceAll(segment, "/", constants.PathEncodedSlash)
}

// DecodeSegments turns "%2F" escapes back into "/".
func DecodeSegments(path string) string {
	return strings.ReplaceAll(path, constants.PathEncodedSlash, "/")
}

// Normalize strips a trailing "/$", decodes "%2F" and guarantees a leading "/".
func Normalize(path string) string {
	path = strings.TrimSuffix(path, "/$")
	path = DecodeSegments(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// Split normalizes path and returns its non-empty segments.
func Split(path string) []string {
	return FilterOutNavigationBindingSegments(strings.Split(Normalize(path), "/"))
}

// Join builds an absolute path from segments.
func Join(parts []string) string {
	return "/" + strings.Join(parts, "/")
}

// EntityTypePath returns the raw navigation chain of path, without binding segments.
func EntityTypePath(path string) string {
	return Join(Split(path))
}

// IsContainment reports whether the last navigation of typePath is a containment navigation.
func IsContainment(accessor metadata.Accessor, typePath string) bool {
	contained, _ := accessor.GetObject(strings.TrimSuffix(typePath, "/") + "/" + constants.PathContainsTarget).(bool)
	return contained
}

// ResolveEntitySetPath computes the entity set path for an entity type path.
// Regular navigation hops go through $NavigationPropertyBinding; containment
// hops stay on the parent set. The second result is false when a hop has no
// binding, in which case the path is empty.
func ResolveEntitySetPath(accessor metadata.Accessor, path string) (string, bool) {
	parts := Split(path)
	if len(parts) == 0 {
		return "", false
	}

	setBase := "/" + parts[0]
	setPath := setBase
	typePath := setBase
	var pending []string

	for _, segment := range parts[1:] {
		typePath += "/" + segment
		if IsContainment(accessor, typePath) {
			setPath += "/" + segment
			pending = append(pending, segment)
			continue
		}
		bindingPath := strings.Join(append(pending, segment), "/")
		candidate := setBase + "/" + constants.PathNavigationPropertyBinding + "/" + EncodeNavigationSegment(bindingPath)
		if _, ok := accessor.GetObject(candidate).(string); !ok {
			return "", false
		}
		setBase, setPath, pending = candidate, candidate, nil
	}
	return setPath, true
}

// EntityPaths bundles the derived forms of one entity or navigation path.
type EntityPaths struct {
	// EntityTypePath is the raw navigation chain, e.g. "/Orders/_Item".
	EntityTypePath  string
	EntityTypeParts []string
	// EntitySetPath resolves bindings, e.g. "/Orders/$NavigationPropertyBinding/_Item".
	// Empty when Resolved is false.
	EntitySetPath string
	Resolved      bool
	Containment   bool
	// ParentEntitySetPath is the set path one navigation hop up; empty without navigation.
	ParentEntitySetPath string
	// NavigationSegment is the last navigation segment, decoded.
	NavigationSegment string
}

// HasNavigation reports whether the path has at least one navigation hop.
func (p EntityPaths) HasNavigation() bool {
	return len(p.EntityTypeParts) > 1
}

// Resolve derives all path forms for path.
func Resolve(accessor metadata.Accessor, path string) EntityPaths {
	parts := Split(path)
	result := EntityPaths{
		EntityTypePath:  Join(parts),
		EntityTypeParts: parts,
	}
	if len(parts) == 0 {
		result.EntityTypePath = ""
		return result
	}
	result.EntitySetPath, result.Resolved = ResolveEntitySetPath(accessor, result.EntityTypePath)
	if len(parts) == 1 {
		return result
	}

	result.Containment = IsContainment(accessor, result.EntityTypePath)
	result.NavigationSegment = parts[len(parts)-1]
	if !result.Resolved {
		return result
	}
	if result.Containment {
		result.ParentEntitySetPath = result.EntitySetPath[:strings.LastIndex(result.EntitySetPath, "/")]
		return result
	}
	marker := "/" + constants.PathNavigationPropertyBinding + "/"
	if idx := strings.LastIndex(result.EntitySetPath, marker); idx >= 0 {
		result.ParentEntitySetPath = result.EntitySetPath[:idx]
	}
	return result
}
