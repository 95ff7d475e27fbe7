package conditions

import (
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/metadata"
)

// MetadataPropertyHelper reads filter field types from metadata and resolves
// relative date operators against the current day.
type MetadataPropertyHelper struct {
	Meta          metadata.Accessor
	EntitySetPath string
	// Now returns the reference time; time.Now when nil.
	Now func() time.Time
}

// Property returns the Edm type of a filter field. Navigation keys such as
// "_Item*/Material" are resolved relative to EntitySetPath.
func (h *MetadataPropertyHelper) Property(name string) (PropertyInfo, bool) {
	if h.Meta == nil {
		return PropertyInfo{}, false
	}
	path := h.EntitySetPath + "/" + strings.ReplaceAll(name, "*", "")
	edmType, ok := h.Meta.GetObject(path + "/" + constants.PathType).(string)
	if !ok {
		return PropertyInfo{}, false
	}
	return PropertyInfo{Name: name, EdmType: edmType}, true
}

// RangeOperator returns the resolver of a relative date operator.
func (h *MetadataPropertyHelper) RangeOperator(operator string) (RangeOperator, bool) {
	calc, ok := relativeDates[operator]
	if !ok {
		return nil, false
	}
	return relativeDateOperator{now: h.now, calc: calc}, true
}

func (h *MetadataPropertyHelper) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// dateRange returns the first and last day of a relative date operator.
type dateRange func(today time.Time, n int) (time.Time, time.Time)

var relativeDates = map[string]dateRange{
	"TODAY": func(today time.Time, _ int) (time.Time, time.Time) {
		return today, today
	},
	"YESTERDAY": func(today time.Time, _ int) (time.Time, time.Time) {
		day := today.AddDate(0, 0, -1)
		return day, day
	},
	"TOMORROW": func(today time.Time, _ int) (time.Time, time.Time) {
		day := today.AddDate(0, 0, 1)
		return day, day
	},
	"LASTDAYS": func(today time.Time, n int) (time.Time, time.Time) {
		return today.AddDate(0, 0, -n), today.AddDate(0, 0, -1)
	},
	"NEXTDAYS": func(today time.Time, n int) (time.Time, time.Time) {
		return today.AddDate(0, 0, 1), today.AddDate(0, 0, n)
	},
	"THISMONTH": func(today time.Time, _ int) (time.Time, time.Time) {
		first := today.AddDate(0, 0, 1-today.Day())
		return first, first.AddDate(0, 1, -1)
	},
	"THISYEAR": func(today time.Time, _ int) (time.Time, time.Time) {
		first := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return first, first.AddDate(1, 0, -1)
	},
	"YEARTODATE": func(today time.Time, _ int) (time.Time, time.Time) {
		return time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), today
	},
}

type relativeDateOperator struct {
	now  func() time.Time
	calc dateRange
}

func (o relativeDateOperator) ModelFilter(c Condition, _, _ string) *ModelFilter {
	n := 0
	if len(c.Values) > 0 {
		value, err := cast.ToIntE(c.Values[0])
		if err != nil || value < 0 {
			return nil
		}
		n = value
	}
	current := o.now().UTC()
	today := time.Date(current.Year(), current.Month(), current.Day(), 0, 0, 0, 0, time.UTC)
	first, last := o.calc(today, n)
	if first.Equal(last) {
		return &ModelFilter{Operator: "EQ", Value1: first}
	}
	return &ModelFilter{Operator: "BT", Value1: first, Value2: last}
}
