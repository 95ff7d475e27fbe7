package conditions_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmcp/odata-filter-restrictions/internal/conditions"
	"github.com/zmcp/odata-filter-restrictions/internal/metadata/metadatatest"
	"github.com/zmcp/odata-filter-restrictions/internal/selectionvariant"
)

func externalize(t *testing.T, s *conditions.Synthesizer, field string, c conditions.Condition) []selectionvariant.SelectOption {
	t.Helper()
	state := conditions.ExternalState{FilterConditions: map[string][]conditions.Condition{field: {c}}}
	return s.AddExternalStateFiltersToSelectionVariant(nil, state, conditions.TargetInfo{}, nil).SelectOption(field)
}

func TestExternalizeOperators(t *testing.T) {
	s := conditions.NewSynthesizer(nil, nil)

	tests := []struct {
		operator string
		values   []any
		expected selectionvariant.SelectOption
	}{
		{"Contains", []any{"ab"}, selectionvariant.SelectOption{Sign: "I", Option: "CP", Low: "*ab*"}},
		{"StartsWith", []any{"ab"}, selectionvariant.SelectOption{Sign: "I", Option: "CP", Low: "ab*"}},
		{"EndsWith", []any{"ab"}, selectionvariant.SelectOption{Sign: "I", Option: "CP", Low: "*ab"}},
		{"NotContains", []any{"ab"}, selectionvariant.SelectOption{Sign: "E", Option: "CP", Low: "*ab*"}},
		{"NotStartsWith", []any{"ab"}, selectionvariant.SelectOption{Sign: "E", Option: "CP", Low: "ab*"}},
		{"NotEndsWith", []any{"ab"}, selectionvariant.SelectOption{Sign: "E", Option: "CP", Low: "*ab"}},
		{"EQ", []any{"A"}, selectionvariant.SelectOption{Sign: "I", Option: "EQ", Low: "A"}},
		{"NE", []any{"A"}, selectionvariant.SelectOption{Sign: "I", Option: "NE", Low: "A"}},
		{"BT", []any{1, 5}, selectionvariant.SelectOption{Sign: "I", Option: "BT", Low: "1", High: "5"}},
		{"GE", []any{2.5}, selectionvariant.SelectOption{Sign: "I", Option: "GE", Low: "2.5"}},
		{"LT", []any{decimal.RequireFromString("9.90")}, selectionvariant.SelectOption{Sign: "I", Option: "LT", Low: "9.9"}},
		{"EEQ", []any{true}, selectionvariant.SelectOption{Sign: "I", Option: "EQ", Low: "true"}},
		{"Empty", []any{}, selectionvariant.SelectOption{Sign: "I", Option: "EQ"}},
		{"NotEmpty", []any{}, selectionvariant.SelectOption{Sign: "I", Option: "NE"}},
		{"NOTBT", []any{"1", "5"}, selectionvariant.SelectOption{Sign: "E", Option: "BT", Low: "1", High: "5"}},
		{"NOTLE", []any{"1"}, selectionvariant.SelectOption{Sign: "E", Option: "LE", Low: "1"}},
		{"NOTLT", []any{"1"}, selectionvariant.SelectOption{Sign: "E", Option: "LT", Low: "1"}},
		{"NOTGE", []any{"1"}, selectionvariant.SelectOption{Sign: "E", Option: "GE", Low: "1"}},
		{"NOTGT", []any{"1"}, selectionvariant.SelectOption{Sign: "E", Option: "GT", Low: "1"}},
		{"NOTEQ", []any{"1"}, selectionvariant.SelectOption{Sign: "E", Option: "EQ", Low: "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.operator, func(t *testing.T) {
			got := externalize(t, s, "Field", conditions.Condition{Operator: tt.operator, Values: tt.values})
			assert.Equal(t, []selectionvariant.SelectOption{tt.expected}, got)
		})
	}
}

func TestExternalizeSemanticDateOperators(t *testing.T) {
	s := conditions.NewSynthesizer(nil, nil)

	tests := []struct {
		operator string
		values   []any
		option   string
		low      string
		high     string
	}{
		{"DATE", []any{"2024-01-05"}, "EQ", "2024-01-05", ""},
		{"DATERANGE", []any{"2024-01-01", "2024-01-31"}, "BT", "2024-01-01", "2024-01-31"},
		{"FROM", []any{"2024-01-01"}, "GE", "2024-01-01", ""},
		{"TO", []any{"2024-01-31"}, "LE", "2024-01-31", ""},
	}

	for _, tt := range tests {
		t.Run(tt.operator, func(t *testing.T) {
			c := conditions.Condition{Operator: tt.operator, Values: tt.values}
			got := externalize(t, s, "OrderDate", c)
			require.Len(t, got, 1)
			assert.Equal(t, "I", got[0].Sign)
			assert.Equal(t, tt.option, got[0].Option)
			assert.Equal(t, tt.low, got[0].Low)
			assert.Equal(t, tt.high, got[0].High)

			dates := conditions.SemanticDatesFromCondition(c)
			assert.Equal(t, &dates, got[0].SemanticDates)
		})
	}
}

func TestExternalizeSkipsUnknownOperators(t *testing.T) {
	var logs bytes.Buffer
	s := conditions.NewSynthesizer(nil, slog.New(slog.NewTextHandler(&logs, nil)))
	state := conditions.ExternalState{FilterConditions: map[string][]conditions.Condition{
		"OrderDate":  {{Operator: "LASTDAYS", Values: []any{3}}},
		"Status":     {{Operator: "CUSTOM", Values: []any{"A"}}, {Operator: "EQ", Values: []any{"B"}}},
		"$editState": {{Operator: "DRAFT_EDIT_STATE", Values: []any{"ALL"}}},
	}}

	sv := s.AddExternalStateFiltersToSelectionVariant(nil, state, conditions.TargetInfo{}, nil)

	assert.Equal(t, []string{"Status"}, sv.SelectOptionsPropertyNames())
	assert.Equal(t, []selectionvariant.SelectOption{{Sign: "I", Option: "EQ", Low: "B"}}, sv.SelectOption("Status"))
	assert.Contains(t, logs.String(), "operator=CUSTOM")
	assert.Contains(t, logs.String(), "operator=LASTDAYS")
}

func TestExternalizeConflictPaths(t *testing.T) {
	s := conditions.NewSynthesizer(nil, nil)
	sv := selectionvariant.New()
	require.NoError(t, sv.AddSelectOption("Status", "I", "EQ", "X", "", nil))
	require.NoError(t, sv.AddSelectOption("Page.Status", "I", "EQ", "Y", "", nil))

	state := conditions.ExternalState{
		FilterConditions: map[string][]conditions.Condition{
			"Status": {{Operator: "EQ", Values: []any{"B"}}},
			"Region": {{Operator: "EQ", Values: []any{"EMEA"}}},
		},
		FilterConditionsWithoutConflict: map[string]string{"Status": "Page.Status"},
	}
	info := conditions.TargetInfo{PropertiesWithoutConflict: map[string]string{"Status": "Table.Status"}}

	got := s.AddExternalStateFiltersToSelectionVariant(sv, state, info, nil)

	assert.Equal(t, []selectionvariant.SelectOption{{Sign: "I", Option: "EQ", Low: "X"}}, got.SelectOption("Status"))
	assert.Equal(t, []selectionvariant.SelectOption{{Sign: "I", Option: "EQ", Low: "B"}}, got.SelectOption("Table.Status"))
	assert.Equal(t, []selectionvariant.SelectOption{{Sign: "I", Option: "EQ", Low: "EMEA"}}, got.SelectOption("Region"))

	page := got.SelectOption("Page.Status")
	require.Len(t, page, 2)
	assert.Equal(t, "Y", page[0].Low)
	require.NotNil(t, page[0].Filtered)
	assert.False(t, *page[0].Filtered)
	assert.Equal(t, "B", page[1].Low)
	require.NotNil(t, page[1].Filtered)
	assert.True(t, *page[1].Filtered)

	// the input variant is left alone
	assert.False(t, sv.HasSelectOption("Table.Status"))
	assert.Nil(t, sv.SelectOption("Page.Status")[0].Filtered)
}

type compoundOperator struct{ filter *conditions.ModelFilter }

func (o compoundOperator) ModelFilter(conditions.Condition, string, string) *conditions.ModelFilter {
	return o.filter
}

type stubHelper map[string]conditions.RangeOperator

func (h stubHelper) Property(name string) (conditions.PropertyInfo, bool) {
	return conditions.PropertyInfo{Name: name, EdmType: "Edm.Date"}, true
}

func (h stubHelper) RangeOperator(operator string) (conditions.RangeOperator, bool) {
	op, ok := h[operator]
	return op, ok
}

func TestExternalizeRangeOperators(t *testing.T) {
	s := conditions.NewSynthesizer(nil, nil)
	helper := stubHelper{
		"NEXTWEEKS": compoundOperator{&conditions.ModelFilter{Filters: []conditions.ModelFilter{{Operator: "GE"}, {Operator: "LE"}}}},
		"BROKEN":    compoundOperator{},
		"LASTWEEK": compoundOperator{&conditions.ModelFilter{
			Operator: "BT",
			Value1:   time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			Value2:   time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		}},
	}
	state := conditions.ExternalState{FilterConditions: map[string][]conditions.Condition{
		"OrderDate": {
			{Operator: "NEXTWEEKS", Values: []any{2}},
			{Operator: "BROKEN"},
			{Operator: "LASTWEEK", Values: []any{}},
		},
	}}

	got := s.AddExternalStateFiltersToSelectionVariant(nil, state, conditions.TargetInfo{}, helper).SelectOption("OrderDate")
	require.Len(t, got, 1)
	assert.Equal(t, "BT", got[0].Option)
	assert.Equal(t, "2024-03-04", got[0].Low)
	assert.Equal(t, "2024-03-10", got[0].High)
	assert.Equal(t, &conditions.SemanticDates{Operator: "LASTWEEK"}, got[0].SemanticDates)
}

func TestMetadataPropertyHelper(t *testing.T) {
	helper := &conditions.MetadataPropertyHelper{
		Meta:          metadatatest.Sales(t),
		EntitySetPath: "/Orders",
		Now:           func() time.Time { return time.Date(2024, 3, 15, 13, 30, 0, 0, time.UTC) },
	}

	info, ok := helper.Property("_Item*/Material")
	assert.True(t, ok)
	assert.Equal(t, "Edm.String", info.EdmType)
	_, ok = helper.Property("Nope")
	assert.False(t, ok)
	_, ok = helper.RangeOperator("EQ")
	assert.False(t, ok)

	s := conditions.NewSynthesizer(nil, nil)
	tests := []struct {
		operator string
		values   []any
		option   string
		low      string
		high     string
	}{
		{"TODAY", nil, "EQ", "2024-03-15", ""},
		{"YESTERDAY", nil, "EQ", "2024-03-14", ""},
		{"TOMORROW", nil, "EQ", "2024-03-16", ""},
		{"LASTDAYS", []any{3}, "BT", "2024-03-12", "2024-03-14"},
		{"NEXTDAYS", []any{"2"}, "BT", "2024-03-16", "2024-03-17"},
		{"THISMONTH", nil, "BT", "2024-03-01", "2024-03-31"},
		{"THISYEAR", nil, "BT", "2024-01-01", "2024-12-31"},
		{"YEARTODATE", nil, "BT", "2024-01-01", "2024-03-15"},
	}

	for _, tt := range tests {
		t.Run(tt.operator, func(t *testing.T) {
			c := conditions.Condition{Operator: tt.operator, Values: tt.values}
			state := conditions.ExternalState{FilterConditions: map[string][]conditions.Condition{"OrderDate": {c}}}
			got := s.AddExternalStateFiltersToSelectionVariant(nil, state, conditions.TargetInfo{}, helper).SelectOption("OrderDate")
			require.Len(t, got, 1)
			assert.Equal(t, tt.option, got[0].Option)
			assert.Equal(t, tt.low, got[0].Low)
			assert.Equal(t, tt.high, got[0].High)
			require.NotNil(t, got[0].SemanticDates)
			assert.Equal(t, tt.operator, got[0].SemanticDates.Operator)
		})
	}

	negative := conditions.ExternalState{FilterConditions: map[string][]conditions.Condition{
		"OrderDate": {{Operator: "LASTDAYS", Values: []any{-1}}},
	}}
	assert.True(t, s.AddExternalStateFiltersToSelectionVariant(nil, negative, conditions.TargetInfo{}, helper).IsEmpty())
}
