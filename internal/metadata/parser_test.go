package metadata

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
)

func readFixture(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestIsODataV4(t *testing.T) {
	v2 := readFixture(t, "testdata/sales_v2.xml")
	v4 := readFixture(t, "metadatatest/sales_v4.xml")

	assert.True(t, IsODataV4(v4))
	assert.False(t, IsODataV4(v2))
	assert.False(t, IsODataV4([]byte("not xml")))
}

func TestParseMetadataV4(t *testing.T) {
	md, err := ParseMetadata(readFixture(t, "metadatatest/sales_v4.xml"), "https://example.com/sales/")
	require.NoError(t, err)

	assert.Equal(t, "com.example.sales", md.SchemaNamespace)
	assert.Equal(t, "EntityContainer", md.ContainerName)
	assert.Equal(t, "4.0", md.Version)

	order := md.EntityTypes["com.example.sales.Order"]
	require.NotNil(t, order)
	assert.Equal(t, []string{"ID"}, order.KeyProperties)

	item := order.NavigationProperty("_Item")
	require.NotNil(t, item)
	assert.True(t, item.IsCollection)
	assert.Equal(t, "com.example.sales.OrderItem", item.Type)

	tags := order.Property("Tags")
	require.NotNil(t, tags)
	assert.True(t, tags.IsCollection)
	assert.Equal(t, "Edm.String", tags.Type)

	assert.Equal(t, "com.example.sales.Address", order.Property("ShipTo").Type)
	assert.NotNil(t, md.ComplexTypes["com.example.sales.Address"])

	doc := md.EntityTypes["com.example.sales.Document"]
	require.NotNil(t, doc)
	assert.True(t, doc.NavigationProperty("Attachments").ContainsTarget)

	orders := md.EntitySets["Orders"]
	require.NotNil(t, orders)
	assert.Equal(t, "OrderItems", orders.NavigationBindings["_Item"])

	// inline annotation with alias expanded and Bool default
	assert.Equal(t, true, order.Property("Status").Annotations[constants.TermValueListFixedValues])

	targets := md.TargetAnnotations
	fr, ok := targets["com.example.sales.EntityContainer/Orders"][constants.TermFilterRestrictions].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Org.OData.Capabilities.V1.FilterRestrictionsType", fr["$Type"])
	assert.Equal(t, []any{
		map[string]any{"$PropertyPath": "Notes"},
		map[string]any{"$PropertyPath": "_Item/Price"},
	}, fr["NonFilterableProperties"])

	assert.Equal(t, "Edm.Decimal", targets["com.example.sales.Order"][constants.TermCustomAggregate+"#TotalRevenue"])
	assert.Equal(t, map[string]any{"$Path": "IsHiddenFlag"}, targets["com.example.sales.Order/DynHidden"][constants.TermHidden])
}

func TestParseMetadataV2(t *testing.T) {
	md, err := ParseMetadata(readFixture(t, "testdata/sales_v2.xml"), "https://example.com/sap/opu/odata/sap/ZSALES_SRV/")
	require.NoError(t, err)

	order := md.EntityTypes["ZSALES_SRV.SalesOrder"]
	require.NotNil(t, order)
	assert.Equal(t, constants.EdmDate, order.Property("OrderDate").Type)

	nav := order.NavigationProperty("ToItems")
	require.NotNil(t, nav)
	assert.True(t, nav.IsCollection)
	assert.Equal(t, "ZSALES_SRV.SalesOrderItem", nav.Type)

	assert.Equal(t, "SalesOrderItems", md.EntitySets["SalesOrders"].NavigationBindings["ToItems"])
	assert.Equal(t, "SalesOrders", md.EntitySets["SalesOrderItems"].NavigationBindings["ToOrder"])

	setTarget := md.TargetAnnotations["ZSALES_SRV.ZSALES_SRV_Entities/SalesOrders"]
	require.NotNil(t, setTarget)

	fr, ok := setTarget[constants.TermFilterRestrictions].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{map[string]any{"$PropertyPath": "Note"}}, fr["NonFilterableProperties"])
	assert.Equal(t, []any{map[string]any{"$PropertyPath": "Status"}}, fr["RequiredProperties"])
	assert.Equal(t, true, fr["RequiresFilter"])
	assert.Len(t, fr["FilterExpressionRestrictions"], 3)

	assert.Equal(t, map[string]any{"Searchable": true}, setTarget[constants.TermSearchRestrictions])
	assert.Equal(t, map[string]any{"Insertable": false}, setTarget[constants.TermInsertRestrictions])

	itemTarget := md.TargetAnnotations["ZSALES_SRV.ZSALES_SRV_Entities/SalesOrderItems"]
	assert.Equal(t, map[string]any{"Updatable": false}, itemTarget[constants.TermUpdateRestrictions])
	assert.Equal(t, map[string]any{"Searchable": false}, itemTarget[constants.TermSearchRestrictions])

	assert.Equal(t, true, md.TargetAnnotations["ZSALES_SRV.RevenueQueryParameters"][constants.TermResultContext])
	assert.Equal(t, true, md.TargetAnnotations["ZSALES_SRV.SalesOrder/Internal"][constants.TermHidden])
	assert.Equal(t, true, md.TargetAnnotations["ZSALES_SRV.SalesOrder/Status"][constants.TermValueListFixedValues])
}

func TestParseMetadataErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed xml", "<edmx:Edmx"},
		{"no schema", `<edmx:Edmx Version="4.0" xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx"><edmx:DataServices/></edmx:Edmx>`},
		{"no container", `<edmx:Edmx Version="4.0" xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx"><edmx:DataServices><Schema Namespace="X"/></edmx:DataServices></edmx:Edmx>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMetadata([]byte(tt.data), "")
			assert.Error(t, err)
		})
	}
}

func TestAnnotationDecoderExpressions(t *testing.T) {
	dec := newAnnotationDecoder(map[string]string{"UI": constants.VocabUI, "Cap": constants.VocabCapabilities})

	assert.Equal(t, "com.sap.vocabularies.UI.v1.DataPoint#Q", dec.expandTerm("UI.DataPoint#Q"))
	assert.Equal(t, "_Contact/@com.sap.vocabularies.UI.v1.Contact", dec.expandAnnotationPath("_Contact/@UI.Contact"))
	assert.Equal(t, "Org.OData.Capabilities.V1.Type/A Org.OData.Capabilities.V1.Type/B", dec.expandEnum("Cap.Type/A Cap.Type/B"))
	assert.Equal(t, "Unknown.Term", dec.expandQualified("Unknown.Term"))

	tests := []struct {
		name     string
		kind     string
		raw      string
		expected any
	}{
		{"bool", "Bool", "false", false},
		{"int", "Int", "42", int64(42)},
		{"float", "Float", "1.5", 1.5},
		{"decimal", "Decimal", "12.30", map[string]any{"$Decimal": "12.30"}},
		{"string", "String", "x", "x"},
		{"path", "Path", "A/B", map[string]any{"$Path": "A/B"}},
		{"enum", "EnumMember", "Cap.Type/A", map[string]any{"$EnumMember": "Org.OData.Capabilities.V1.Type/A"}},
		{"bad bool", "Bool", "maybe", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, dec.decodePrimitive(tt.kind, tt.raw))
		})
	}
}
