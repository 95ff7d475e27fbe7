package models

import (
	"strings"
	"time"
)

// Annotations maps a qualified term, prefixed with "@" and optionally suffixed
// with "#Qualifier", to its value in CSDL JSON shape.
type Annotations map[string]any

// Merge copies the entries of other into a, keeping existing entries.
func (a Annotations) Merge(other Annotations) {
	for term, value := range other {
		if _, exists := a[term]; !exists {
			a[term] = value
		}
	}
}

// EntityProperty represents a structural property of an entity or complex type
type EntityProperty struct {
	Name         string      `json:"name"`
	Type         string      `json:"type"` // qualified, e.g. "Edm.String" or "NS.Address"
	Nullable     bool        `json:"nullable"`
	IsKey        bool        `json:"is_key"`
	IsCollection bool        `json:"is_collection,omitempty"`
	Annotations  Annotations `json:"annotations,omitempty"`
}

// NavigationProperty represents a navigation property in an entity type
type NavigationProperty struct {
	Name           string      `json:"name"`
	Type           string      `json:"type"` // qualified target entity type
	Partner        string      `json:"partner,omitempty"`
	Nullable       bool        `json:"nullable"`
	IsCollection   bool        `json:"is_collection,omitempty"`
	ContainsTarget bool        `json:"contains_target,omitempty"`
	Annotations    Annotations `json:"annotations,omitempty"`
}

// EntityType represents an OData entity type or complex type definition
type EntityType struct {
	Name            string                `json:"name"`
	Namespace       string                `json:"namespace"`
	IsComplex       bool                  `json:"is_complex,omitempty"`
	BaseType        string                `json:"base_type,omitempty"`
	Properties      []*EntityProperty     `json:"properties"`
	KeyProperties   []string              `json:"key_properties"`
	NavigationProps []*NavigationProperty `json:"navigation_properties,omitempty"`
	Annotations     Annotations           `json:"annotations,omitempty"`
}

// QualifiedName returns Namespace.Name.
func (et *EntityType) QualifiedName() string {
	if et.Namespace == "" {
		return et.Name
	}
	return et.Namespace + "." + et.Name
}

// Property returns the structural property with the given name.
func (et *EntityType) Property(name string) *EntityProperty {
	for _, p := range et.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// NavigationProperty returns the navigation property with the given name.
func (et *EntityType) NavigationProperty(name string) *NavigationProperty {
	for _, n := range et.NavigationProps {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// EntitySet represents an OData entity set or singleton
type EntitySet struct {
	Name        string `json:"name"`
	EntityType  string `json:"entity_type"` // qualified
	IsSingleton bool   `json:"is_singleton,omitempty"`
	// NavigationBindings maps a binding path (which may contain "/") to the target set name.
	NavigationBindings map[string]string `json:"navigation_bindings,omitempty"`
	Annotations        Annotations       `json:"annotations,omitempty"`
}

// ODataMetadata represents the complete OData service metadata
type ODataMetadata struct {
	ServiceRoot     string                 `json:"service_root"`
	EntityTypes     map[string]*EntityType `json:"entity_types"`  // keyed by qualified name
	ComplexTypes    map[string]*EntityType `json:"complex_types"` // keyed by qualified name
	EntitySets      map[string]*EntitySet  `json:"entity_sets"`
	SchemaNamespace string                 `json:"schema_namespace"`
	ContainerName   string                 `json:"container_name"`
	Version         string                 `json:"version"`
	ParsedAt        time.Time              `json:"parsed_at"`
	// TargetAnnotations holds external annotations keyed by their target path,
	// e.g. "NS.Container/Orders" or "NS.OrderType/Status".
	TargetAnnotations map[string]Annotations `json:"target_annotations,omitempty"`
}

// NewODataMetadata returns metadata with all maps initialised.
func NewODataMetadata(serviceRoot string) *ODataMetadata {
	return &ODataMetadata{
		ServiceRoot:       serviceRoot,
		EntityTypes:       make(map[string]*EntityType),
		ComplexTypes:      make(map[string]*EntityType),
		EntitySets:        make(map[string]*EntitySet),
		TargetAnnotations: make(map[string]Annotations),
		ParsedAt:          time.Now(),
	}
}

// QualifiedContainerName returns the container name prefixed with the schema namespace.
func (m *ODataMetadata) QualifiedContainerName() string {
	if m.SchemaNamespace == "" {
		return m.ContainerName
	}
	return m.SchemaNamespace + "." + m.ContainerName
}

// StructuredType looks up an entity or complex type by qualified name.
func (m *ODataMetadata) StructuredType(qualified string) *EntityType {
	if et, ok := m.EntityTypes[qualified]; ok {
		return et
	}
	return m.ComplexTypes[qualified]
}

// AddTargetAnnotations registers annotations for a target. Existing terms win.
func (m *ODataMetadata) AddTargetAnnotations(target string, annotations Annotations) {
	if len(annotations) == 0 {
		return
	}
	existing, ok := m.TargetAnnotations[target]
	if !ok {
		existing = make(Annotations, len(annotations))
		m.TargetAnnotations[target] = existing
	}
	existing.Merge(annotations)
}

// SetTargetAnnotation sets one term on a target, replacing any prior value.
func (m *ODataMetadata) SetTargetAnnotation(target, term string, value any) {
	existing, ok := m.TargetAnnotations[target]
	if !ok {
		existing = make(Annotations)
		m.TargetAnnotations[target] = existing
	}
	existing[term] = value
}

// SplitQualifiedName splits "NS.Sub.Name" into ("NS.Sub", "Name").
func SplitQualifiedName(qualified string) (string, string) {
	idx := strings.LastIndex(qualified, ".")
	if idx < 0 {
		return "", qualified
	}
	return qualified[:idx], qualified[idx+1:]
}

// MetadataSummary represents a summary of parsed metadata
type MetadataSummary struct {
	EntityTypes  int `json:"entity_types"`
	ComplexTypes int `json:"complex_types"`
	EntitySets   int `json:"entity_sets"`
	Annotated    int `json:"annotation_targets"`
}

// Summary counts the parsed elements.
func (m *ODataMetadata) Summary() MetadataSummary {
	return MetadataSummary{
		EntityTypes:  len(m.EntityTypes),
		ComplexTypes: len(m.ComplexTypes),
		EntitySets:   len(m.EntitySets),
		Annotated:    len(m.TargetAnnotations),
	}
}
