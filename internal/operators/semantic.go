package operators

import (
	"strings"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
)

var dateOperations = []string{
	"DATE", "DATERANGE", "FROM", "TO",
	"TODAY", "TOMORROW", "YESTERDAY", "TODAYFROMTO", "LASTDAYS", "NEXTDAYS",
	"THISWEEK", "LASTWEEK", "LASTWEEKS", "NEXTWEEK", "NEXTWEEKS",
	"THISMONTH", "LASTMONTH", "LASTMONTHS", "NEXTMONTH", "NEXTMONTHS", "SPECIFICMONTH", "SPECIFICMONTHINYEAR",
	"THISQUARTER", "LASTQUARTER", "LASTQUARTERS", "NEXTQUARTER", "NEXTQUARTERS",
	"QUARTER1", "QUARTER2", "QUARTER3", "QUARTER4",
	"THISYEAR", "LASTYEAR", "LASTYEARS", "NEXTYEAR", "NEXTYEARS", "YEARTODATE", "DATETOYEAR",
	"FIRSTDAYWEEK", "LASTDAYWEEK", "FIRSTDAYMONTH", "LASTDAYMONTH",
	"FIRSTDAYQUARTER", "LASTDAYQUARTER", "FIRSTDAYYEAR", "LASTDAYYEAR",
}

var dateTimeOperations = []string{"DATETIMERANGE", "LASTMINUTES", "NEXTMINUTES", "LASTHOURS", "NEXTHOURS"}

// SupportedSemanticDateOperations returns every semantic date operator.
func SupportedSemanticDateOperations() []string {
	return union(dateOperations, dateTimeOperations)
}

// IsSemanticDateOperator reports whether op is a semantic date operator.
func IsSemanticDateOperator(op string) bool {
	return contains(dateOperations, op) || contains(dateTimeOperations, op)
}

// SemanticDateOperations returns the semantic date operators usable with
// edmType; non-date types have none.
func SemanticDateOperations(edmType string) []string {
	switch edmType {
	case constants.EdmDate:
		return clone(dateOperations)
	case constants.EdmDateTimeOffset, constants.EdmDateTime:
		return union(dateOperations, dateTimeOperations)
	}
	return nil
}

// OperatorConfiguration narrows the semantic date operators of a filter
// field, as declared in an application manifest.
type OperatorConfiguration struct {
	Path     string   `mapstructure:"path"`
	Equals   []string `mapstructure:"equals"`
	Contains []string `mapstructure:"contains"`
	Exclude  bool     `mapstructure:"exclude"`
}

// matches reports whether op is selected by the configuration. Only the
// "key" path is understood; other paths select nothing.
func (c OperatorConfiguration) matches(op string) bool {
	if c.Path != "" && c.Path != "key" {
		return false
	}
	for _, value := range c.Equals {
		if strings.TrimSpace(value) == op {
			return true
		}
	}
	for _, value := range c.Contains {
		if value = strings.TrimSpace(value); value != "" && strings.Contains(op, value) {
			return true
		}
	}
	return false
}

// FilterOperations applies configurations in order to the semantic date
// operators of edmType. Including configurations keep only matching operators,
// excluding ones drop them.
func FilterOperations(configurations []OperatorConfiguration, edmType string) []string {
	ops := SemanticDateOperations(edmType)
	for _, configuration := range configurations {
		kept := ops[:0:0]
		for _, op := range ops {
			if configuration.matches(op) != configuration.Exclude {
				kept = append(kept, op)
			}
		}
		ops = kept
	}
	return ops
}
