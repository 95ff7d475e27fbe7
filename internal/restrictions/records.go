package restrictions

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
)

// PathExpression is a property or navigation property path reference.
type PathExpression struct {
	PropertyPath           string `mapstructure:"$PropertyPath"`
	NavigationPropertyPath string `mapstructure:"$NavigationPropertyPath"`
}

// Path returns whichever path form is set.
func (p PathExpression) Path() string {
	if p.PropertyPath != "" {
		return p.PropertyPath
	}
	return p.NavigationPropertyPath
}

// FilterExpressionRestriction restricts the filter expressions allowed on one property.
type FilterExpressionRestriction struct {
	Property           PathExpression `mapstructure:"Property"`
	AllowedExpressions string         `mapstructure:"AllowedExpressions"`
}

// FilterRestrictions is Org.OData.Capabilities.V1.FilterRestrictionsType.
type FilterRestrictions struct {
	Filterable                   *bool                         `mapstructure:"Filterable"`
	RequiresFilter               *bool                         `mapstructure:"RequiresFilter"`
	RequiredProperties           []PathExpression              `mapstructure:"RequiredProperties"`
	NonFilterableProperties      []PathExpression              `mapstructure:"NonFilterableProperties"`
	FilterExpressionRestrictions []FilterExpressionRestriction `mapstructure:"FilterExpressionRestrictions"`
}

// SearchRestrictions is Org.OData.Capabilities.V1.SearchRestrictionsType.
type SearchRestrictions struct {
	Searchable *bool `mapstructure:"Searchable"`
}

// InsertRestrictions is Org.OData.Capabilities.V1.InsertRestrictionsType.
type InsertRestrictions struct {
	Insertable         *bool            `mapstructure:"Insertable"`
	RequiredProperties []PathExpression `mapstructure:"RequiredProperties"`
}

// UpdateRestrictions is Org.OData.Capabilities.V1.UpdateRestrictionsType.
type UpdateRestrictions struct {
	Updatable          *bool            `mapstructure:"Updatable"`
	RequiredProperties []PathExpression `mapstructure:"RequiredProperties"`
}

// NavigationPropertyRestriction holds the restrictions nested under one
// navigation property of a NavigationRestrictions record.
type NavigationPropertyRestriction struct {
	NavigationProperty PathExpression      `mapstructure:"NavigationProperty"`
	FilterRestrictions *FilterRestrictions `mapstructure:"FilterRestrictions"`
	SearchRestrictions *SearchRestrictions `mapstructure:"SearchRestrictions"`
	InsertRestrictions *InsertRestrictions `mapstructure:"InsertRestrictions"`
	UpdateRestrictions *UpdateRestrictions `mapstructure:"UpdateRestrictions"`
}

// NavigationRestrictions is Org.OData.Capabilities.V1.NavigationRestrictionsType.
type NavigationRestrictions struct {
	RestrictedProperties []NavigationPropertyRestriction `mapstructure:"RestrictedProperties"`
}

// Lookup returns the restriction entry for the given navigation property path.
func (n *NavigationRestrictions) Lookup(navigationPath string) *NavigationPropertyRestriction {
	if n == nil {
		return nil
	}
	for i := range n.RestrictedProperties {
		if n.RestrictedProperties[i].NavigationProperty.Path() == navigationPath {
			return &n.RestrictedProperties[i]
		}
	}
	return nil
}

// Kind selects the capability term a restriction read targets.
type Kind int

const (
	Filter Kind = iota
	Search
	Navigation
	Insert
	Update
)

// Term returns the annotation term for the kind, "@"-prefixed.
func (k Kind) Term() string {
	switch k {
	case Filter:
		return constants.TermFilterRestrictions
	case Search:
		return constants.TermSearchRestrictions
	case Navigation:
		return constants.TermNavigationRestrictions
	case Insert:
		return constants.TermInsertRestrictions
	case Update:
		return constants.TermUpdateRestrictions
	}
	return ""
}

func (k Kind) String() string {
	switch k {
	case Filter:
		return "Filter"
	case Search:
		return "Search"
	case Navigation:
		return "Navigation"
	case Insert:
		return "Insert"
	case Update:
		return "Update"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a kind name to a Kind.
func ParseKind(name string) (Kind, bool) {
	for _, k := range []Kind{Filter, Search, Navigation, Insert, Update} {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

var pathExpressionType = reflect.TypeOf(PathExpression{})

// pathExpressionHook accepts bare strings where a path expression is expected.
func pathExpressionHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != pathExpressionType || from.Kind() != reflect.String {
		return data, nil
	}
	return PathExpression{PropertyPath: data.(string)}, nil
}

// scalarHook coerces boolean and string scalars the way annotation sources
// serialize them ("true", 1, ...).
func scalarHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Bool:
		return cast.ToBoolE(data)
	case reflect.String:
		if from.Kind() == reflect.Map {
			return data, nil
		}
		return cast.ToStringE(data)
	}
	return data, nil
}

func decodeRecord(value any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			pathExpressionHook,
			scalarHook,
		),
		Result: out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(value); err != nil {
		return fmt.Errorf("failed to decode restriction record: %w", err)
	}
	return nil
}
