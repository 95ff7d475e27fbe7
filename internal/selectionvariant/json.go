package selectionvariant

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "selectionvariant.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("invalid selection variant schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
})

type wireParameter struct {
	PropertyName  string `json:"PropertyName"`
	PropertyValue string `json:"PropertyValue"`
}

type wireSelectOption struct {
	PropertyName string         `json:"PropertyName"`
	Ranges       []SelectOption `json:"Ranges"`
}

type wireVersion struct {
	Major string `json:"Major"`
	Minor string `json:"Minor"`
	Patch string `json:"Patch"`
}

type wireSelectionVariant struct {
	Version             *wireVersion       `json:"Version,omitempty"`
	SelectionVariantID  string             `json:"SelectionVariantID"`
	Text                string             `json:"Text,omitempty"`
	ParameterContextURL string             `json:"ParameterContextUrl,omitempty"`
	FilterContextURL    string             `json:"FilterContextUrl,omitempty"`
	Parameters          []wireParameter    `json:"Parameters"`
	SelectOptions       []wireSelectOption `json:"SelectOptions"`
}

// MarshalJSON encodes the variant in the SelectionVariant exchange format.
func (sv *SelectionVariant) MarshalJSON() ([]byte, error) {
	wire := wireSelectionVariant{
		Version:             &wireVersion{Major: "1", Minor: "0", Patch: "0"},
		SelectionVariantID:  sv.ID,
		Text:                sv.Text,
		ParameterContextURL: sv.ParameterContextURL,
		FilterContextURL:    sv.FilterContextURL,
		Parameters:          []wireParameter{},
		SelectOptions:       []wireSelectOption{},
	}
	for _, name := range sv.parameterNames {
		wire.Parameters = append(wire.Parameters, wireParameter{PropertyName: name, PropertyValue: sv.parameters[name]})
	}
	for _, name := range sv.optionNames {
		wire.SelectOptions = append(wire.SelectOptions, wireSelectOption{PropertyName: name, Ranges: sv.options[name]})
	}
	return json.Marshal(wire)
}

// ToJSONString returns the JSON encoding of the variant.
func (sv *SelectionVariant) ToJSONString() string {
	data, err := sv.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}

// FromJSON validates data against the SelectionVariant schema and decodes it.
func FromJSON(data []byte) (*SelectionVariant, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse selection variant: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid selection variant: %w", err)
	}

	var wire wireSelectionVariant
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode selection variant: %w", err)
	}

	sv := New()
	sv.ID = wire.SelectionVariantID
	sv.Text = wire.Text
	sv.ParameterContextURL = wire.ParameterContextURL
	sv.FilterContextURL = wire.FilterContextURL
	for _, p := range wire.Parameters {
		if err := sv.AddParameter(p.PropertyName, p.PropertyValue); err != nil {
			return nil, err
		}
	}
	for _, so := range wire.SelectOptions {
		if err := sv.MassAddSelectOption(so.PropertyName, so.Ranges); err != nil {
			return nil, err
		}
	}
	return sv, nil
}
