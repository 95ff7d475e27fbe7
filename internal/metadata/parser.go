package metadata

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/models"
)

// EDMX represents the root EDMX document
type EDMX struct {
	XMLName      xml.Name     `xml:"Edmx"`
	Version      string       `xml:"Version,attr"`
	DataServices DataServices `xml:"DataServices"`
}

// DataServices contains the schemas
type DataServices struct {
	XMLName xml.Name `xml:"DataServices"`
	Schemas []Schema `xml:"Schema"`
}

// Schema contains entity types, associations and the entity container
type Schema struct {
	XMLName          xml.Name          `xml:"Schema"`
	Namespace        string            `xml:"Namespace,attr"`
	Alias            string            `xml:"Alias,attr"`
	EntityTypes      []EntityType      `xml:"EntityType"`
	ComplexTypes     []EntityType      `xml:"ComplexType"`
	Associations     []Association     `xml:"Association"`
	EntityContainers []EntityContainer `xml:"EntityContainer"`
	Annotations      []AnnotationsV4   `xml:"Annotations"`
}

// EntityType represents an OData entity type
type EntityType struct {
	XMLName              xml.Name
	Name                 string               `xml:"Name,attr"`
	Key                  Key                  `xml:"Key"`
	Properties           []Property           `xml:"Property"`
	NavigationProperties []NavigationProperty `xml:"NavigationProperty"`
	// SAP-specific attributes
	Semantics string `xml:"semantics,attr"`
}

// Key contains key properties
type Key struct {
	XMLName      xml.Name      `xml:"Key"`
	PropertyRefs []PropertyRef `xml:"PropertyRef"`
}

// PropertyRef references a key property
type PropertyRef struct {
	XMLName xml.Name `xml:"PropertyRef"`
	Name    string   `xml:"Name,attr"`
}

// Property represents an entity property
type Property struct {
	XMLName  xml.Name `xml:"Property"`
	Name     string   `xml:"Name,attr"`
	Type     string   `xml:"Type,attr"`
	Nullable string   `xml:"Nullable,attr"`
	// SAP-specific attributes
	Filterable        string `xml:"filterable,attr"`
	RequiredInFilter  string `xml:"required-in-filter,attr"`
	FilterRestriction string `xml:"filter-restriction,attr"`
	DisplayFormat     string `xml:"display-format,attr"`
	Visible           string `xml:"visible,attr"`
	ValueList         string `xml:"value-list,attr"`
	Label             string `xml:"label,attr"`
}

// NavigationProperty represents a navigation property
type NavigationProperty struct {
	XMLName      xml.Name `xml:"NavigationProperty"`
	Name         string   `xml:"Name,attr"`
	Relationship string   `xml:"Relationship,attr"`
	ToRole       string   `xml:"ToRole,attr"`
	FromRole     string   `xml:"FromRole,attr"`
	// SAP-specific attributes
	Filterable string `xml:"filterable,attr"`
}

// Association links two entity types through roles
type Association struct {
	XMLName xml.Name         `xml:"Association"`
	Name    string           `xml:"Name,attr"`
	Ends    []AssociationEnd `xml:"End"`
}

// AssociationEnd is one side of an association or association set
type AssociationEnd struct {
	XMLName      xml.Name `xml:"End"`
	Role         string   `xml:"Role,attr"`
	Type         string   `xml:"Type,attr"`
	Multiplicity string   `xml:"Multiplicity,attr"`
	EntitySet    string   `xml:"EntitySet,attr"`
}

// EntityContainer contains entity sets and association sets
type EntityContainer struct {
	XMLName         xml.Name         `xml:"EntityContainer"`
	Name            string           `xml:"Name,attr"`
	EntitySets      []EntitySet      `xml:"EntitySet"`
	AssociationSets []AssociationSet `xml:"AssociationSet"`
}

// EntitySet represents an OData entity set
type EntitySet struct {
	XMLName    xml.Name `xml:"EntitySet"`
	Name       string   `xml:"Name,attr"`
	EntityType string   `xml:"EntityType,attr"`
	// SAP-specific attributes
	Creatable      string `xml:"creatable,attr"`
	Updatable      string `xml:"updatable,attr"`
	Searchable     string `xml:"searchable,attr"`
	RequiresFilter string `xml:"requires-filter,attr"`
}

// AssociationSet binds an association to concrete entity sets
type AssociationSet struct {
	XMLName     xml.Name         `xml:"AssociationSet"`
	Name        string           `xml:"Name,attr"`
	Association string           `xml:"Association,attr"`
	Ends        []AssociationEnd `xml:"End"`
}

// v2 filter-restriction values and their FilterExpressionType counterparts
var filterRestrictionExpressions = map[string]string{
	"single-value": "SingleValue",
	"multi-value":  "MultiValue",
	"interval":     "SingleRange",
}

// ParseMetadata parses OData metadata XML and returns structured metadata
// It automatically detects whether the metadata is v2 or v4 and uses the appropriate parser
func ParseMetadata(data []byte, serviceRoot string) (*models.ODataMetadata, error) {
	if IsODataV4(data) {
		return ParseMetadataV4(data, serviceRoot)
	}

	var edmx EDMX
	if err := xml.Unmarshal(data, &edmx); err != nil {
		return nil, fmt.Errorf("failed to parse metadata XML: %w", err)
	}
	if len(edmx.DataServices.Schemas) == 0 {
		return nil, fmt.Errorf("no schemas found in metadata")
	}

	aliases := make(map[string]string)
	for _, schema := range edmx.DataServices.Schemas {
		if schema.Alias != "" {
			aliases[schema.Alias] = schema.Namespace
		}
	}
	dec := newAnnotationDecoder(aliases)

	var mainSchema *Schema
	for i := range edmx.DataServices.Schemas {
		if len(edmx.DataServices.Schemas[i].EntityContainers) > 0 {
			mainSchema = &edmx.DataServices.Schemas[i]
			break
		}
	}
	if mainSchema == nil {
		return nil, fmt.Errorf("no entity container found in metadata")
	}
	container := mainSchema.EntityContainers[0]

	metadata := models.NewODataMetadata(serviceRoot)
	metadata.SchemaNamespace = mainSchema.Namespace
	metadata.ContainerName = container.Name
	metadata.Version = edmx.Version

	associations := make(map[string]Association)
	for _, schema := range edmx.DataServices.Schemas {
		for _, assoc := range schema.Associations {
			associations[schema.Namespace+"."+assoc.Name] = assoc
		}
	}

	for _, schema := range edmx.DataServices.Schemas {
		for _, et := range schema.EntityTypes {
			entityType := parseEntityType(et, schema.Namespace, associations, dec, metadata)
			metadata.EntityTypes[entityType.QualifiedName()] = entityType
		}
		for _, ct := range schema.ComplexTypes {
			complexType := parseEntityType(ct, schema.Namespace, associations, dec, metadata)
			complexType.IsComplex = true
			metadata.ComplexTypes[complexType.QualifiedName()] = complexType
		}
	}

	xmlTypes := make(map[string]*EntityType)
	for i := range edmx.DataServices.Schemas {
		schema := &edmx.DataServices.Schemas[i]
		for j := range schema.EntityTypes {
			xmlTypes[schema.Namespace+"."+schema.EntityTypes[j].Name] = &schema.EntityTypes[j]
		}
	}

	for _, es := range container.EntitySets {
		entitySet := parseEntitySet(es, container, xmlTypes, dec, metadata)
		metadata.EntitySets[es.Name] = entitySet
	}

	// vocabulary-based annotations override the ones derived from sap: attributes
	for _, schema := range edmx.DataServices.Schemas {
		for _, block := range schema.Annotations {
			target := dec.expandTarget(block.Target)
			for term, value := range dec.decodeAnnotations(block.Annotations, block.Qualifier) {
				metadata.SetTargetAnnotation(target, term, value)
			}
		}
	}

	return metadata, nil
}

// parseEntityType converts XML entity type to model, translating sap: attributes
// on the type and its properties into vocabulary annotations
func parseEntityType(et EntityType, namespace string, associations map[string]Association,
	dec *annotationDecoder, metadata *models.ODataMetadata) *models.EntityType {
	entityType := &models.EntityType{
		Name:            et.Name,
		Namespace:       namespace,
		Properties:      make([]*models.EntityProperty, 0, len(et.Properties)),
		KeyProperties:   make([]string, 0),
		NavigationProps: make([]*models.NavigationProperty, 0, len(et.NavigationProperties)),
	}

	for _, keyRef := range et.Key.PropertyRefs {
		entityType.KeyProperties = append(entityType.KeyProperties, keyRef.Name)
	}

	if et.Semantics == "parameters" {
		metadata.SetTargetAnnotation(entityType.QualifiedName(), constants.TermResultContext, true)
	}

	for _, prop := range et.Properties {
		typeName := prop.Type
		if typeName == constants.EdmDateTime && prop.DisplayFormat == "Date" {
			typeName = constants.EdmDate
		} else if !strings.HasPrefix(typeName, "Edm.") {
			typeName = dec.expandQualified(typeName)
		}
		property := &models.EntityProperty{
			Name:     prop.Name,
			Type:     typeName,
			Nullable: prop.Nullable != "false", // Default to true if not specified
			IsKey:    contains(entityType.KeyProperties, prop.Name),
		}
		entityType.Properties = append(entityType.Properties, property)

		target := entityType.QualifiedName() + "/" + prop.Name
		if prop.Visible == "false" {
			metadata.SetTargetAnnotation(target, constants.TermHidden, true)
		}
		if prop.ValueList == "fixed-values" {
			metadata.SetTargetAnnotation(target, constants.TermValueListFixedValues, true)
		}
		if prop.Label != "" {
			metadata.SetTargetAnnotation(target, "@"+constants.VocabCommon+".Label", prop.Label)
		}
	}

	for _, navProp := range et.NavigationProperties {
		navigationProp := &models.NavigationProperty{
			Name:     navProp.Name,
			Nullable: true,
		}
		if assoc, ok := associations[dec.expandQualified(navProp.Relationship)]; ok {
			for _, end := range assoc.Ends {
				if end.Role == navProp.ToRole {
					navigationProp.Type = dec.expandQualified(end.Type)
					navigationProp.IsCollection = end.Multiplicity == "*"
					navigationProp.Nullable = end.Multiplicity != "1"
				}
			}
		}
		entityType.NavigationProps = append(entityType.NavigationProps, navigationProp)
	}

	return entityType
}

// parseEntitySet converts XML entity set to model and derives its capability
// annotations from the sap: attributes of the set and its entity type
func parseEntitySet(es EntitySet, container EntityContainer, xmlTypes map[string]*EntityType,
	dec *annotationDecoder, metadata *models.ODataMetadata) *models.EntitySet {
	entitySet := &models.EntitySet{
		Name:               es.Name,
		EntityType:         dec.expandQualified(es.EntityType),
		NavigationBindings: make(map[string]string),
	}

	target := container.Name
	if metadata.SchemaNamespace != "" {
		target = metadata.SchemaNamespace + "." + container.Name
	}
	target += "/" + es.Name

	xmlType := xmlTypes[entitySet.EntityType]
	var nonFilterable, required, expressionRestrictions []any
	if xmlType != nil {
		for _, prop := range xmlType.Properties {
			if prop.Filterable == "false" {
				nonFilterable = append(nonFilterable, map[string]any{"$PropertyPath": prop.Name})
			}
			if prop.RequiredInFilter == "true" {
				required = append(required, map[string]any{"$PropertyPath": prop.Name})
			}
			if expression, ok := filterRestrictionExpressions[prop.FilterRestriction]; ok {
				expressionRestrictions = append(expressionRestrictions, map[string]any{
					"Property":           map[string]any{"$PropertyPath": prop.Name},
					"AllowedExpressions": expression,
				})
			}
		}
		for _, nav := range xmlType.NavigationProperties {
			if nav.Filterable == "false" {
				nonFilterable = append(nonFilterable, map[string]any{"$PropertyPath": nav.Name})
			}
		}
	}

	if len(nonFilterable) > 0 || len(required) > 0 || len(expressionRestrictions) > 0 || es.RequiresFilter == "true" {
		filterRestrictions := map[string]any{"$Type": constants.VocabCapabilities + ".FilterRestrictionsType"}
		if len(nonFilterable) > 0 {
			filterRestrictions["NonFilterableProperties"] = nonFilterable
		}
		if len(required) > 0 {
			filterRestrictions["RequiredProperties"] = required
		}
		if len(expressionRestrictions) > 0 {
			filterRestrictions["FilterExpressionRestrictions"] = expressionRestrictions
		}
		if es.RequiresFilter == "true" {
			filterRestrictions["RequiresFilter"] = true
		}
		metadata.SetTargetAnnotation(target, constants.TermFilterRestrictions, filterRestrictions)
	}

	// v2 services are not searchable unless they say so
	metadata.SetTargetAnnotation(target, constants.TermSearchRestrictions, map[string]any{
		"Searchable": es.Searchable == "true",
	})
	if es.Creatable == "false" {
		metadata.SetTargetAnnotation(target, constants.TermInsertRestrictions, map[string]any{"Insertable": false})
	}
	if es.Updatable == "false" {
		metadata.SetTargetAnnotation(target, constants.TermUpdateRestrictions, map[string]any{"Updatable": false})
	}

	// association sets become navigation property bindings
	if xmlType != nil {
		for _, nav := range xmlType.NavigationProperties {
			for _, assocSet := range container.AssociationSets {
				if dec.expandQualified(assocSet.Association) != dec.expandQualified(nav.Relationship) {
					continue
				}
				var from, to string
				for _, end := range assocSet.Ends {
					switch end.Role {
					case nav.FromRole:
						from = end.EntitySet
					case nav.ToRole:
						to = end.EntitySet
					}
				}
				if from == es.Name && to != "" {
					entitySet.NavigationBindings[nav.Name] = to
				}
			}
		}
	}

	return entitySet
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
