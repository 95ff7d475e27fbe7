package operators_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/metadata"
	"github.com/zmcp/odata-filter-restrictions/internal/metadata/metadatatest"
	"github.com/zmcp/odata-filter-restrictions/internal/operators"
)

type stubAccessor map[string]any

func (s stubAccessor) GetObject(path string) any { return s[path] }

func (s stubAccessor) CreateBindingContext(path string) *metadata.Context {
	return metadata.NewContext(s, path)
}

func TestForProperty(t *testing.T) {
	model := metadatatest.Sales(t)
	dateOps := operators.SemanticDateOperations(constants.EdmDate)

	tests := []struct {
		name       string
		req        operators.Request
		expected   []string
		restricted bool
	}{
		{
			name:       "single value",
			req:        operators.Request{Property: "Status", EntitySetPath: "/Orders"},
			expected:   []string{"EQ"},
			restricted: true,
		},
		{
			name:       "multi value",
			req:        operators.Request{Property: "Quantity", EntitySetPath: "/Orders"},
			expected:   []string{"EQ"},
			restricted: true,
		},
		{
			name:       "single range date",
			req:        operators.Request{Property: "OrderDate", EntitySetPath: "/Orders"},
			expected:   []string{"EQ", "GE", "LE", "LT", "GT", "BT", "NOTLE", "NOTLT", "NOTGE", "NOTGT"},
			restricted: true,
		},
		{
			name:       "single range date with semantic dates",
			req:        operators.Request{Property: "OrderDate", EntitySetPath: "/Orders", UseSemanticDateRange: true},
			expected:   dateOps,
			restricted: true,
		},
		{
			name:       "single range date time",
			req:        operators.Request{Property: "CreatedAt", EntitySetPath: "/Orders"},
			expected:   []string{"EQ", "BT"},
			restricted: true,
		},
		{
			name:       "most restrictive search kind wins",
			req:        operators.Request{Property: "CityName", EntitySetPath: "/Orders"},
			expected:   []string{"StartsWith", "NotStartsWith", "EndsWith", "NotEndsWith", "Contains", "NotContains"},
			restricted: true,
		},
		{
			name:     "unrestricted decimal",
			req:      operators.Request{Property: "Amount", EntitySetPath: "/Orders"},
			expected: []string{"EQ", "BT", "LE", "LT", "GE", "GT", "NE", "NOTBT", "NOTLE", "NOTLT", "NOTGE", "NOTGT"},
		},
		{
			name:       "navigation restriction merged",
			req:        operators.Request{Property: "Material", EntitySetPath: "/Orders/_Item"},
			expected:   []string{"EQ"},
			restricted: true,
		},
		{
			name:       "parameter",
			req:        operators.Request{Property: "P_Currency", EntitySetPath: "/SalesParameters"},
			expected:   []string{"EQ"},
			restricted: true,
		},
		{
			name:       "type override",
			req:        operators.Request{Property: "Status", EntitySetPath: "/Orders", EdmType: constants.EdmDate, UseSemanticDateRange: true},
			expected:   operators.SingleValueDateOperators,
			restricted: true,
		},
		{
			name: "unknown property",
			req:  operators.Request{Property: "Nope", EntitySetPath: "/Orders"},
		},
		{
			name: "empty request",
			req:  operators.Request{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := operators.ForProperty(model, tt.req)
			if tt.expected == nil {
				assert.Empty(t, result.Operators)
			} else {
				assert.Equal(t, tt.expected, result.Operators)
			}
			assert.Equal(t, tt.restricted, result.Restricted)
		})
	}
}

func TestForPropertyStaysWithinDefaults(t *testing.T) {
	model := metadatatest.Sales(t)
	for _, property := range []string{"Status", "OrderDate", "CreatedAt", "Amount", "Quantity", "CityName", "IsActive", "ID"} {
		for _, semantic := range []bool{false, true} {
			edmType, _ := model.GetObject("/Orders/" + property + "/$Type").(string)
			allowed := operators.TypeOperators(edmType)
			if semantic {
				allowed = append(allowed, operators.SupportedSemanticDateOperations()...)
			}
			result := operators.ForProperty(model, operators.Request{Property: property, EntitySetPath: "/Orders", UseSemanticDateRange: semantic})
			assert.Subset(t, allowed, result.Operators, "%s semantic=%v", property, semantic)
		}
	}
}

func TestEmptyIntersectionFallsBackToDefaults(t *testing.T) {
	accessor := stubAccessor{
		"/Set" + constants.TermFilterRestrictions: map[string]any{
			"FilterExpressionRestrictions": []any{
				map[string]any{
					"Property":           map[string]any{"$PropertyPath": "Flag"},
					"AllowedExpressions": "SearchExpression",
				},
			},
		},
		"/Set/Flag/$Type": constants.EdmBoolean,
	}

	result := operators.ForProperty(accessor, operators.Request{Property: "Flag", EntitySetPath: "/Set"})
	assert.True(t, result.Restricted)
	assert.Empty(t, result.Operators)
	assert.Equal(t, []string{"EQ", "NE"}, result.Effective())
}

func TestOperatorConfiguration(t *testing.T) {
	model := metadatatest.Sales(t)

	settings, err := operators.ParseSettings([]byte(`{"customData":{"operatorConfiguration":[{"path":"key","equals":"TODAY,DATE"}]}}`))
	require.NoError(t, err)
	require.Len(t, settings.OperatorConfiguration, 1)
	assert.Equal(t, []string{"TODAY", "DATE"}, settings.OperatorConfiguration[0].Equals)

	result := operators.ForProperty(model, operators.Request{
		Property:             "OrderDate",
		EntitySetPath:        "/Orders",
		UseSemanticDateRange: true,
		Settings:             settings,
	})
	assert.Equal(t, []string{"DATE", "TODAY"}, result.Operators)
}

func TestParseSettings(t *testing.T) {
	bare, err := operators.ParseSettings([]byte(`{"operatorConfiguration":[{"path":"key","contains":["LAST"],"exclude":true}]}`))
	require.NoError(t, err)
	require.Len(t, bare.OperatorConfiguration, 1)
	assert.True(t, bare.OperatorConfiguration[0].Exclude)

	ops := operators.FilterOperations(bare.OperatorConfiguration, constants.EdmDate)
	assert.NotContains(t, ops, "LASTDAYS")
	assert.NotContains(t, ops, "LASTDAYWEEK")
	assert.Contains(t, ops, "TODAY")

	empty, err := operators.ParseSettings(nil)
	assert.NoError(t, err)
	assert.Nil(t, empty)

	_, err = operators.ParseSettings([]byte(`{`))
	assert.Error(t, err)
}

func TestSpecificAllowedExpression(t *testing.T) {
	tests := []struct {
		kinds    []string
		expected string
	}{
		{[]string{"MultiRangeOrSearchExpression", "SingleValue"}, operators.SingleValue},
		{[]string{"SearchExpression", "MultiRange"}, operators.MultiRange},
		{[]string{"SingleRange", "MultiValue"}, operators.MultiValue},
		{[]string{"Unknown"}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, operators.SpecificAllowedExpression(tt.kinds), "%v", tt.kinds)
	}
}

func TestSemanticDateOperations(t *testing.T) {
	assert.True(t, operators.IsSemanticDateOperator("DATERANGE"))
	assert.True(t, operators.IsSemanticDateOperator("LASTHOURS"))
	assert.False(t, operators.IsSemanticDateOperator("EQ"))

	assert.NotContains(t, operators.SemanticDateOperations(constants.EdmDate), "DATETIMERANGE")
	assert.Contains(t, operators.SemanticDateOperations(constants.EdmDateTimeOffset), "DATETIMERANGE")
	assert.Nil(t, operators.SemanticDateOperations(constants.EdmString))
}

func TestForDateProperty(t *testing.T) {
	ops := operators.ForDateProperty(constants.EdmDate)
	assert.Equal(t, operators.MultiRangeOperators, ops)
	for _, op := range ops {
		assert.False(t, operators.IsSemanticDateOperator(op))
	}
	assert.Empty(t, operators.ForDateProperty("Edm.Stream"))
}
