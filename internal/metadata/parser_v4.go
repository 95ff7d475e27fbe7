package metadata

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/zmcp/odata-filter-restrictions/internal/models"
)

// EDMXV4 represents the root EDMX document for OData v4
type EDMXV4 struct {
	XMLName      xml.Name       `xml:"Edmx"`
	Version      string         `xml:"Version,attr"`
	References   []ReferenceV4  `xml:"Reference"`
	DataServices DataServicesV4 `xml:"DataServices"`
}

// ReferenceV4 is an edmx:Reference to an external vocabulary document
type ReferenceV4 struct {
	XMLName  xml.Name    `xml:"Reference"`
	URI      string      `xml:"Uri,attr"`
	Includes []IncludeV4 `xml:"Include"`
}

// IncludeV4 pulls a referenced namespace in, optionally under an alias
type IncludeV4 struct {
	XMLName   xml.Name `xml:"Include"`
	Namespace string   `xml:"Namespace,attr"`
	Alias     string   `xml:"Alias,attr"`
}

// DataServicesV4 contains the schema for OData v4
type DataServicesV4 struct {
	XMLName xml.Name   `xml:"DataServices"`
	Schemas []SchemaV4 `xml:"Schema"`
}

// SchemaV4 contains entity types, containers and annotations for OData v4
type SchemaV4 struct {
	XMLName          xml.Name            `xml:"Schema"`
	Namespace        string              `xml:"Namespace,attr"`
	Alias            string              `xml:"Alias,attr"`
	EntityTypes      []EntityTypeV4      `xml:"EntityType"`
	ComplexTypes     []EntityTypeV4      `xml:"ComplexType"`
	EntityContainers []EntityContainerV4 `xml:"EntityContainer"`
	Annotations      []AnnotationsV4     `xml:"Annotations"`
}

// EntityTypeV4 represents an OData v4 entity or complex type
type EntityTypeV4 struct {
	XMLName              xml.Name
	Name                 string                 `xml:"Name,attr"`
	BaseType             string                 `xml:"BaseType,attr"`
	Key                  KeyV4                  `xml:"Key"`
	Properties           []PropertyV4           `xml:"Property"`
	NavigationProperties []NavigationPropertyV4 `xml:"NavigationProperty"`
	Annotations          []xmlNode              `xml:"Annotation"`
}

// KeyV4 contains key properties for OData v4
type KeyV4 struct {
	XMLName      xml.Name        `xml:"Key"`
	PropertyRefs []PropertyRefV4 `xml:"PropertyRef"`
}

// PropertyRefV4 references a key property in OData v4
type PropertyRefV4 struct {
	XMLName xml.Name `xml:"PropertyRef"`
	Name    string   `xml:"Name,attr"`
}

// PropertyV4 represents an entity property in OData v4
type PropertyV4 struct {
	XMLName     xml.Name  `xml:"Property"`
	Name        string    `xml:"Name,attr"`
	Type        string    `xml:"Type,attr"`
	Nullable    string    `xml:"Nullable,attr"`
	Annotations []xmlNode `xml:"Annotation"`
}

// NavigationPropertyV4 represents a navigation property in OData v4
type NavigationPropertyV4 struct {
	XMLName        xml.Name  `xml:"NavigationProperty"`
	Name           string    `xml:"Name,attr"`
	Type           string    `xml:"Type,attr"`
	Nullable       string    `xml:"Nullable,attr"`
	Partner        string    `xml:"Partner,attr"`
	ContainsTarget string    `xml:"ContainsTarget,attr"`
	Annotations    []xmlNode `xml:"Annotation"`
}

// EntityContainerV4 contains entity sets and singletons for OData v4
type EntityContainerV4 struct {
	XMLName     xml.Name      `xml:"EntityContainer"`
	Name        string        `xml:"Name,attr"`
	EntitySets  []EntitySetV4 `xml:"EntitySet"`
	Singletons  []EntitySetV4 `xml:"Singleton"`
	Annotations []xmlNode     `xml:"Annotation"`
}

// EntitySetV4 represents an OData v4 entity set or singleton
type EntitySetV4 struct {
	XMLName                    xml.Name
	Name                       string                      `xml:"Name,attr"`
	EntityType                 string                      `xml:"EntityType,attr"`
	Type                       string                      `xml:"Type,attr"` // singletons
	NavigationPropertyBindings []NavigationPropertyBinding `xml:"NavigationPropertyBinding"`
	Annotations                []xmlNode                   `xml:"Annotation"`
}

// NavigationPropertyBinding represents a navigation property binding
type NavigationPropertyBinding struct {
	XMLName xml.Name `xml:"NavigationPropertyBinding"`
	Path    string   `xml:"Path,attr"`
	Target  string   `xml:"Target,attr"`
}

// ParseMetadataV4 parses OData v4 metadata XML and returns structured metadata
func ParseMetadataV4(data []byte, serviceRoot string) (*models.ODataMetadata, error) {
	var edmx EDMXV4
	if err := xml.Unmarshal(data, &edmx); err != nil {
		return nil, fmt.Errorf("failed to parse v4 metadata XML: %w", err)
	}

	if len(edmx.DataServices.Schemas) == 0 {
		return nil, fmt.Errorf("no schemas found in metadata")
	}

	aliases := make(map[string]string)
	for _, ref := range edmx.References {
		for _, inc := range ref.Includes {
			if inc.Alias != "" {
				aliases[inc.Alias] = inc.Namespace
			}
		}
	}
	for _, schema := range edmx.DataServices.Schemas {
		if schema.Alias != "" {
			aliases[schema.Alias] = schema.Namespace
		}
	}
	dec := newAnnotationDecoder(aliases)

	// Find the main schema and container
	var mainSchema *SchemaV4
	var mainContainer *EntityContainerV4
	for i := range edmx.DataServices.Schemas {
		schema := &edmx.DataServices.Schemas[i]
		if len(schema.EntityContainers) > 0 {
			mainSchema = schema
			mainContainer = &schema.EntityContainers[0]
			break
		}
	}
	if mainSchema == nil || mainContainer == nil {
		return nil, fmt.Errorf("no entity container found in metadata")
	}

	metadata := models.NewODataMetadata(serviceRoot)
	metadata.SchemaNamespace = mainSchema.Namespace
	metadata.ContainerName = mainContainer.Name
	metadata.Version = edmx.Version

	// Parse structured types from all schemas
	for _, schema := range edmx.DataServices.Schemas {
		for _, et := range schema.EntityTypes {
			entityType := parseEntityTypeV4(et, schema.Namespace, dec)
			metadata.EntityTypes[entityType.QualifiedName()] = entityType
		}
		for _, ct := range schema.ComplexTypes {
			complexType := parseEntityTypeV4(ct, schema.Namespace, dec)
			complexType.IsComplex = true
			metadata.ComplexTypes[complexType.QualifiedName()] = complexType
		}
	}
	resolveBaseTypes(metadata)

	for _, es := range mainContainer.EntitySets {
		entitySet := parseEntitySetV4(es, mainContainer.Name, dec)
		metadata.EntitySets[es.Name] = entitySet
	}
	for _, s := range mainContainer.Singletons {
		singleton := parseEntitySetV4(s, mainContainer.Name, dec)
		singleton.IsSingleton = true
		metadata.EntitySets[s.Name] = singleton
	}
	metadata.AddTargetAnnotations(metadata.QualifiedContainerName(), dec.decodeAnnotations(mainContainer.Annotations, ""))

	// External annotations, with aliases expanded in the target
	for _, schema := range edmx.DataServices.Schemas {
		for _, block := range schema.Annotations {
			target := dec.expandTarget(block.Target)
			metadata.AddTargetAnnotations(target, dec.decodeAnnotations(block.Annotations, block.Qualifier))
		}
	}

	return metadata, nil
}

// parseEntityTypeV4 converts XML entity type to model for OData v4
func parseEntityTypeV4(et EntityTypeV4, namespace string, dec *annotationDecoder) *models.EntityType {
	entityType := &models.EntityType{
		Name:            et.Name,
		Namespace:       namespace,
		Properties:      make([]*models.EntityProperty, 0, len(et.Properties)),
		KeyProperties:   make([]string, 0),
		NavigationProps: make([]*models.NavigationProperty, 0, len(et.NavigationProperties)),
		Annotations:     dec.decodeAnnotations(et.Annotations, ""),
	}
	if et.BaseType != "" {
		entityType.BaseType = dec.expandQualified(et.BaseType)
	}

	for _, keyRef := range et.Key.PropertyRefs {
		entityType.KeyProperties = append(entityType.KeyProperties, keyRef.Name)
	}

	for _, prop := range et.Properties {
		typeName, isCollection := normalizeTypeV4(prop.Type, dec)
		entityType.Properties = append(entityType.Properties, &models.EntityProperty{
			Name:         prop.Name,
			Type:         typeName,
			Nullable:     prop.Nullable != "false",
			IsKey:        contains(entityType.KeyProperties, prop.Name),
			IsCollection: isCollection,
			Annotations:  dec.decodeAnnotations(prop.Annotations, ""),
		})
	}

	for _, navProp := range et.NavigationProperties {
		typeName, isCollection := normalizeTypeV4(navProp.Type, dec)
		entityType.NavigationProps = append(entityType.NavigationProps, &models.NavigationProperty{
			Name:           navProp.Name,
			Type:           typeName,
			Partner:        navProp.Partner,
			Nullable:       navProp.Nullable != "false",
			IsCollection:   isCollection,
			ContainsTarget: navProp.ContainsTarget == "true",
			Annotations:    dec.decodeAnnotations(navProp.Annotations, ""),
		})
	}

	return entityType
}

// resolveBaseTypes copies inherited members into derived types.
func resolveBaseTypes(metadata *models.ODataMetadata) {
	done := make(map[string]bool)
	var resolve func(t *models.EntityType, depth int)
	resolve = func(t *models.EntityType, depth int) {
		name := t.QualifiedName()
		if done[name] || t.BaseType == "" || depth > 16 {
			done[name] = true
			return
		}
		done[name] = true
		base := metadata.StructuredType(t.BaseType)
		if base == nil {
			return
		}
		resolve(base, depth+1)
		if len(t.KeyProperties) == 0 {
			t.KeyProperties = append(t.KeyProperties, base.KeyProperties...)
		}
		t.Properties = append(append([]*models.EntityProperty{}, base.Properties...), t.Properties...)
		t.NavigationProps = append(append([]*models.NavigationProperty{}, base.NavigationProps...), t.NavigationProps...)
	}
	for _, t := range metadata.EntityTypes {
		resolve(t, 0)
	}
	for _, t := range metadata.ComplexTypes {
		resolve(t, 0)
	}
}

// parseEntitySetV4 converts XML entity set or singleton to model for OData v4
func parseEntitySetV4(es EntitySetV4, containerName string, dec *annotationDecoder) *models.EntitySet {
	typeName := es.EntityType
	if typeName == "" {
		typeName = es.Type
	}
	entitySet := &models.EntitySet{
		Name:               es.Name,
		EntityType:         dec.expandQualified(typeName),
		NavigationBindings: make(map[string]string, len(es.NavigationPropertyBindings)),
		Annotations:        dec.decodeAnnotations(es.Annotations, ""),
	}
	for _, binding := range es.NavigationPropertyBindings {
		entitySet.NavigationBindings[binding.Path] = normalizeBindingTarget(binding.Target, containerName, dec)
	}
	return entitySet
}

// normalizeBindingTarget drops a leading container qualifier so that the
// target reads like a path below the container ("Set" or "Set/Nav").
func normalizeBindingTarget(target, containerName string, dec *annotationDecoder) string {
	if idx := strings.Index(target, "/"); idx >= 0 {
		head := dec.expandQualified(target[:idx])
		_, local := models.SplitQualifiedName(head)
		if local == containerName {
			return target[idx+1:]
		}
	}
	return target
}

// normalizeTypeV4 expands aliases and unwraps Collection(...)
func normalizeTypeV4(typeName string, dec *annotationDecoder) (string, bool) {
	if strings.HasPrefix(typeName, "Collection(") && strings.HasSuffix(typeName, ")") {
		inner, _ := normalizeTypeV4(typeName[11:len(typeName)-1], dec)
		return inner, true
	}
	if strings.HasPrefix(typeName, "Edm.") {
		return typeName, false
	}
	return dec.expandQualified(typeName), false
}

// IsODataV4 checks if the metadata is OData v4
func IsODataV4(data []byte) bool {
	var edmx struct {
		Version string `xml:"Version,attr"`
	}
	if err := xml.Unmarshal(data, &edmx); err != nil {
		return false
	}
	return edmx.Version == "4.0" || edmx.Version == "4.01"
}
