package constants

// Edm primitive type names
const (
	EdmBoolean        = "Edm.Boolean"
	EdmByte           = "Edm.Byte"
	EdmDate           = "Edm.Date"
	EdmDateTime       = "Edm.DateTime" // v2 only
	EdmDateTimeOffset = "Edm.DateTimeOffset"
	EdmDecimal        = "Edm.Decimal"
	EdmDouble         = "Edm.Double"
	EdmGuid           = "Edm.Guid"
	EdmInt16          = "Edm.Int16"
	EdmInt32          = "Edm.Int32"
	EdmInt64          = "Edm.Int64"
	EdmSByte          = "Edm.SByte"
	EdmSingle         = "Edm.Single"
	EdmString         = "Edm.String"
	EdmTime           = "Edm.Time" // v2 only
	EdmTimeOfDay      = "Edm.TimeOfDay"
)

// FilterableTypes lists the primitive types a filter bar can bind a condition to.
var FilterableTypes = map[string]bool{
	EdmBoolean:        true,
	EdmByte:           true,
	EdmDate:           true,
	EdmDateTime:       true,
	EdmDateTimeOffset: true,
	EdmDecimal:        true,
	EdmDouble:         true,
	EdmGuid:           true,
	EdmInt16:          true,
	EdmInt32:          true,
	EdmInt64:          true,
	EdmSByte:          true,
	EdmSingle:         true,
	EdmString:         true,
	EdmTimeOfDay:      true,
}

// IsTypeFilterable reports whether values of the given Edm type can be filtered.
func IsTypeFilterable(edmType string) bool {
	return FilterableTypes[edmType]
}
