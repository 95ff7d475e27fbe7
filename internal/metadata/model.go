package metadata

import (
	"sort"
	"strconv"
	"strings"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/models"
)

// Accessor answers CSDL meta-path queries such as "/Orders/Status@UI.Hidden".
// Lookups never fail; unknown paths yield nil.
type Accessor interface {
	GetObject(path string) any
	CreateBindingContext(path string) *Context
}

// Context is a meta path bound to an accessor.
type Context struct {
	accessor Accessor
	path     string
}

// NewContext binds path to accessor.
func NewContext(accessor Accessor, path string) *Context {
	return &Context{accessor: accessor, path: path}
}

// Path returns the bound meta path.
func (c *Context) Path() string { return c.path }

// Accessor returns the accessor the context was created from.
func (c *Context) Accessor() Accessor { return c.accessor }

// GetObject returns the object at the bound path.
func (c *Context) GetObject() any { return c.accessor.GetObject(c.path) }

// GetProperty resolves rel against the bound path. Annotation terms ("@...")
// are appended without a separator, absolute paths are used as they are.
func (c *Context) GetProperty(rel string) any {
	return c.accessor.GetObject(c.Resolve(rel))
}

// Resolve returns the absolute meta path for rel.
func (c *Context) Resolve(rel string) string {
	switch {
	case rel == "":
		return c.path
	case strings.HasPrefix(rel, "/"):
		return rel
	case strings.HasPrefix(rel, "@"):
		return c.path + rel
	default:
		return strings.TrimSuffix(c.path, "/") + "/" + rel
	}
}

// Model implements Accessor over parsed service metadata.
type Model struct {
	md *models.ODataMetadata
}

// NewModel wraps parsed metadata.
func NewModel(md *models.ODataMetadata) *Model {
	return &Model{md: md}
}

// Load parses EDMX (v2 or v4) and wraps the result.
func Load(data []byte, serviceRoot string) (*Model, error) {
	md, err := ParseMetadata(data, serviceRoot)
	if err != nil {
		return nil, err
	}
	return NewModel(md), nil
}

// Metadata returns the underlying parsed metadata.
func (m *Model) Metadata() *models.ODataMetadata { return m.md }

// CreateBindingContext implements Accessor.
func (m *Model) CreateBindingContext(path string) *Context {
	return NewContext(m, path)
}

type nodeKind int

const (
	nodeSet nodeKind = iota
	nodeType
	nodeProperty
	nodeNavigation
	nodeValue
)

// cursor is the position reached while walking a meta path.
type cursor struct {
	kind  nodeKind
	set   *models.EntitySet
	typ   *models.EntityType // structured type below the node, if any
	owner *models.EntityType // declaring type of a property or navigation property
	prop  *models.EntityProperty
	nav   *models.NavigationProperty
	value any
	// literal cursors render as value but keep their annotations
	literal bool
	// container path target, e.g. "NS.Container/Orders/_Item"; empty once unaddressable
	target string
	// meta path that relative paths inside annotations resolve against
	host string
}

// GetObject implements Accessor.
func (m *Model) GetObject(path string) any {
	if m == nil || m.md == nil || !strings.HasPrefix(path, "/") {
		return nil
	}
	base, annotation := path, ""
	if idx := strings.Index(path, "@"); idx >= 0 {
		base, annotation = path[:idx], path[idx:]
	}

	cur, ok := m.walk(base)
	if !ok {
		return nil
	}
	if annotation == "" {
		return m.render(cur)
	}
	if cur.kind == nodeValue {
		return nil
	}

	annotations := m.annotationsOf(cur)
	if annotation == "@" {
		all := make(map[string]any, len(annotations))
		for term, value := range annotations {
			all[term] = value
		}
		return all
	}
	term, rest := annotation, ""
	if idx := strings.Index(annotation, "/"); idx >= 0 {
		term, rest = annotation[:idx], annotation[idx+1:]
	}
	value, ok := annotations[term]
	if !ok {
		return nil
	}
	if rest == "" {
		return value
	}
	return m.walkValue(value, strings.Split(rest, "/"), cur.host)
}

func (m *Model) walk(base string) (cursor, bool) {
	segments := strings.Split(strings.TrimPrefix(base, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return cursor{}, false
	}

	cur, ok := m.root(segments[0])
	if !ok {
		return cursor{}, false
	}
	metaPath := "/" + segments[0]

	for i := 1; i < len(segments); i++ {
		seg := segments[i]
		last := i == len(segments)-1
		switch {
		case seg == "":
			if !last || cur.typ == nil {
				return cursor{}, false
			}
			cur = cursor{kind: nodeType, typ: cur.typ, host: metaPath}
		case seg == constants.PathNavigationPropertyBinding:
			if cur.kind != nodeSet {
				return cursor{}, false
			}
			if last {
				bindings := make(map[string]any, len(cur.set.NavigationBindings))
				for p, t := range cur.set.NavigationBindings {
					bindings[p] = t
				}
				return cursor{kind: nodeValue, value: bindings}, true
			}
			target, consumed := matchBinding(cur.set, segments[i+1:])
			if consumed == 0 {
				return cursor{}, false
			}
			i += consumed
			next, ok := m.bindingTarget(target)
			if i == len(segments)-1 {
				if !ok {
					return cursor{kind: nodeValue, value: target}, true
				}
				// renders as the target name, annotations are the target's
				next.value, next.literal = target, true
				return next, true
			}
			if !ok {
				return cursor{}, false
			}
			cur = next
			metaPath = strings.Join(append([]string{""}, segments[:i+1]...), "/")
			cur.host = metaPath
		case strings.HasPrefix(seg, "$"):
			value, ok := memberValue(cur, seg)
			if !ok {
				return cursor{}, false
			}
			if !last {
				// "/Set/$Type/..." continues at the type
				if seg != constants.PathType || cur.typ == nil {
					return cursor{}, false
				}
				cur = cursor{kind: nodeType, typ: cur.typ, host: metaPath}
				continue
			}
			return cursor{kind: nodeValue, value: value}, true
		default:
			if cur.typ == nil {
				return cursor{}, false
			}
			next, ok := m.member(cur, seg, metaPath)
			if !ok {
				return cursor{}, false
			}
			cur = next
			metaPath += "/" + seg
		}
	}
	return cur, true
}

func (m *Model) root(name string) (cursor, bool) {
	if set, ok := m.md.EntitySets[name]; ok {
		return cursor{
			kind:   nodeSet,
			set:    set,
			typ:    m.md.EntityTypes[set.EntityType],
			target: m.md.QualifiedContainerName() + "/" + name,
			host:   "/" + name,
		}, true
	}
	if typ := m.md.StructuredType(name); typ != nil {
		return cursor{kind: nodeType, typ: typ, host: "/" + name}, true
	}
	return cursor{}, false
}

// bindingTarget resolves a binding target such as "Set" or "Set/Nav".
func (m *Model) bindingTarget(target string) (cursor, bool) {
	cur, ok := m.walk("/" + target)
	if !ok || cur.kind == nodeValue {
		return cursor{}, false
	}
	return cur, true
}

// matchBinding finds the longest binding path formed by the leading segments.
// Segments may carry "/" encoded as %2F.
func matchBinding(set *models.EntitySet, segments []string) (string, int) {
	for n := len(segments); n >= 1; n-- {
		key := strings.ReplaceAll(strings.Join(segments[:n], "/"), constants.PathEncodedSlash, "/")
		if target, ok := set.NavigationBindings[key]; ok {
			return target, n
		}
	}
	return "", 0
}

func (m *Model) member(cur cursor, name, metaPath string) (cursor, bool) {
	extend := func(target string) string {
		if target == "" {
			return ""
		}
		return target + "/" + name
	}
	if prop := cur.typ.Property(name); prop != nil {
		return cursor{
			kind:   nodeProperty,
			prop:   prop,
			owner:  cur.typ,
			typ:    m.md.ComplexTypes[prop.Type],
			target: extend(cur.target),
			host:   metaPath,
		}, true
	}
	if nav := cur.typ.NavigationProperty(name); nav != nil {
		return cursor{
			kind:   nodeNavigation,
			nav:    nav,
			owner:  cur.typ,
			typ:    m.md.EntityTypes[nav.Type],
			target: extend(cur.target),
			host:   metaPath,
		}, true
	}
	return cursor{}, false
}

// memberValue answers "$"-prefixed member lookups on a node.
func memberValue(cur cursor, member string) (any, bool) {
	switch member {
	case constants.PathType:
		switch cur.kind {
		case nodeSet:
			return cur.set.EntityType, true
		case nodeType:
			return cur.typ.QualifiedName(), true
		case nodeProperty:
			return cur.prop.Type, true
		case nodeNavigation:
			return cur.nav.Type, true
		}
	case constants.PathKind:
		return kindOf(cur), kindOf(cur) != nil
	case constants.PathIsCollection:
		if (cur.kind == nodeNavigation && cur.nav.IsCollection) || (cur.kind == nodeProperty && cur.prop.IsCollection) {
			return true, true
		}
		return nil, true
	case constants.PathContainsTarget:
		if cur.kind == nodeNavigation && cur.nav.ContainsTarget {
			return true, true
		}
		return nil, true
	case "$Nullable":
		if cur.kind == nodeProperty && !cur.prop.Nullable {
			return false, true
		}
		if cur.kind == nodeNavigation && !cur.nav.Nullable {
			return false, true
		}
		return nil, true
	case "$Partner":
		if cur.kind == nodeNavigation && cur.nav.Partner != "" {
			return cur.nav.Partner, true
		}
		return nil, true
	case "$Key":
		if cur.typ != nil && (cur.kind == nodeType || cur.kind == nodeSet) {
			keys := make([]any, 0, len(cur.typ.KeyProperties))
			for _, k := range cur.typ.KeyProperties {
				keys = append(keys, k)
			}
			return keys, true
		}
	}
	return nil, false
}

func kindOf(cur cursor) any {
	switch cur.kind {
	case nodeSet:
		if cur.set.IsSingleton {
			return constants.KindSingleton
		}
		return constants.KindEntitySet
	case nodeType:
		if cur.typ.IsComplex {
			return constants.KindComplexType
		}
		return constants.KindEntityType
	case nodeProperty:
		return constants.KindProperty
	case nodeNavigation:
		return constants.KindNavigationProperty
	}
	return nil
}

// render converts a cursor into the CSDL JSON node the path addresses.
func (m *Model) render(cur cursor) any {
	if cur.literal {
		return cur.value
	}
	switch cur.kind {
	case nodeValue:
		return cur.value
	case nodeSet:
		bindings := make(map[string]any, len(cur.set.NavigationBindings))
		for p, t := range cur.set.NavigationBindings {
			bindings[p] = t
		}
		return map[string]any{
			constants.PathKind:                      kindOf(cur),
			constants.PathType:                      cur.set.EntityType,
			constants.PathNavigationPropertyBinding: bindings,
		}
	case nodeType:
		node := map[string]any{constants.PathKind: kindOf(cur)}
		if keys, ok := memberValue(cur, "$Key"); ok {
			node["$Key"] = keys
		}
		for _, p := range cur.typ.Properties {
			node[p.Name] = renderProperty(p)
		}
		for _, n := range cur.typ.NavigationProps {
			node[n.Name] = renderNavigation(n)
		}
		return node
	case nodeProperty:
		return renderProperty(cur.prop)
	case nodeNavigation:
		return renderNavigation(cur.nav)
	}
	return nil
}

func renderProperty(p *models.EntityProperty) map[string]any {
	node := map[string]any{
		constants.PathKind: constants.KindProperty,
		constants.PathType: p.Type,
	}
	if !p.Nullable {
		node["$Nullable"] = false
	}
	if p.IsCollection {
		node[constants.PathIsCollection] = true
	}
	return node
}

func renderNavigation(n *models.NavigationProperty) map[string]any {
	node := map[string]any{
		constants.PathKind: constants.KindNavigationProperty,
		constants.PathType: n.Type,
	}
	if n.IsCollection {
		node[constants.PathIsCollection] = true
	}
	if n.ContainsTarget {
		node[constants.PathContainsTarget] = true
	}
	if n.Partner != "" {
		node["$Partner"] = n.Partner
	}
	if !n.Nullable {
		node["$Nullable"] = false
	}
	return node
}

// annotationsOf collects the annotations of the addressed element. Container
// path targets win over type targets, which win over inline annotations.
func (m *Model) annotationsOf(cur cursor) models.Annotations {
	result := models.Annotations{}
	add := func(target string) {
		if target != "" {
			result.Merge(m.md.TargetAnnotations[target])
		}
	}
	switch cur.kind {
	case nodeSet:
		add(cur.target)
		add(m.md.ContainerName + "/" + cur.set.Name)
		result.Merge(cur.set.Annotations)
	case nodeType:
		add(cur.typ.QualifiedName())
		result.Merge(cur.typ.Annotations)
	case nodeProperty:
		add(cur.target)
		add(cur.owner.QualifiedName() + "/" + cur.prop.Name)
		result.Merge(cur.prop.Annotations)
	case nodeNavigation:
		add(cur.target)
		add(cur.owner.QualifiedName() + "/" + cur.nav.Name)
		result.Merge(cur.nav.Annotations)
	}
	return result
}

// walkValue descends into an annotation value. Path expressions followed by
// further segments are resolved relative to host.
func (m *Model) walkValue(value any, segments []string, host string) any {
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			if isPathMember(seg) && i < len(segments)-1 {
				p, ok := v[seg].(string)
				if !ok {
					return nil
				}
				return m.GetObject(joinRelative(host, p, segments[i+1:]))
			}
			value = v[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil
			}
			value = v[idx]
		default:
			return nil
		}
		if value == nil {
			return nil
		}
	}
	return value
}

func isPathMember(seg string) bool {
	switch seg {
	case constants.PathPath, constants.PathPropertyPath, constants.PathNavigationPropertyPath, constants.PathAnnotationPath:
		return true
	}
	return false
}

func joinRelative(host, rel string, rest []string) string {
	full := strings.TrimSuffix(host, "/")
	if strings.HasPrefix(rel, "@") {
		full += "/" + rel
	} else {
		full += "/" + strings.TrimPrefix(rel, "/")
	}
	for _, r := range rest {
		if r == "" {
			continue
		}
		if strings.HasPrefix(r, "@") {
			full += r
		} else {
			full += "/" + r
		}
	}
	return full
}

// EntityProperties returns the names of the structural properties of the entity
// addressed by contextPath, sorted by name.
func EntityProperties(accessor Accessor, contextPath string) []string {
	node, ok := accessor.GetObject(strings.TrimSuffix(contextPath, "/") + "/").(map[string]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(node))
	for name, member := range node {
		if strings.HasPrefix(name, "$") {
			continue
		}
		if m, ok := member.(map[string]any); ok && m[constants.PathKind] == constants.KindProperty {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
