package constants

// HTTP methods used against the service
const (
	GET = "GET"
)

// HTTP headers
const (
	Accept    = "Accept"
	UserAgent = "User-Agent"
)

// Content types
const (
	ContentTypeXML = "application/xml"
)

// OData metadata endpoints
const (
	MetadataEndpoint = "$metadata"
)

// Error messages
const (
	ErrMetadataNotFound    = "metadata not found"
	ErrRequestFailed       = "HTTP request failed"
	ErrResponseParseFailed = "response parsing failed"
)

// Default values
const (
	DefaultUserAgent       = "OData-Filter-Restrictions/1.0 (Go)"
	DefaultMetadataTimeout = 60 // seconds - metadata can be large for SAP services
)

// Meta-path tokens understood by the metadata accessor.
const (
	PathNavigationPropertyBinding = "$NavigationPropertyBinding"
	PathType                      = "$Type"
	PathKind                      = "$kind"
	PathIsCollection              = "$isCollection"
	PathContainsTarget            = "$ContainsTarget"
	PathPath                      = "$Path"
	PathPropertyPath              = "$PropertyPath"
	PathNavigationPropertyPath    = "$NavigationPropertyPath"
	PathAnnotationPath            = "$AnnotationPath"
	PathEnumMember                = "$EnumMember"
	PathEncodedSlash              = "%2F"
	ParameterPrefix               = "$Parameter."
	ParameterNamePrefix           = "P_"
)

// Values of the $kind member.
const (
	KindEntitySet          = "EntitySet"
	KindSingleton          = "Singleton"
	KindEntityType         = "EntityType"
	KindComplexType        = "ComplexType"
	KindProperty           = "Property"
	KindNavigationProperty = "NavigationProperty"
)

// Vocabulary namespaces
const (
	VocabCapabilities  = "Org.OData.Capabilities.V1"
	VocabCore          = "Org.OData.Core.V1"
	VocabAggregation   = "Org.OData.Aggregation.V1"
	VocabCommon        = "com.sap.vocabularies.Common.v1"
	VocabUI            = "com.sap.vocabularies.UI.v1"
	VocabCommunication = "com.sap.vocabularies.Communication.v1"
)

// Annotation terms, fully qualified.
const (
	TermFilterRestrictions     = "@" + VocabCapabilities + ".FilterRestrictions"
	TermNavigationRestrictions = "@" + VocabCapabilities + ".NavigationRestrictions"
	TermSearchRestrictions     = "@" + VocabCapabilities + ".SearchRestrictions"
	TermInsertRestrictions     = "@" + VocabCapabilities + ".InsertRestrictions"
	TermUpdateRestrictions     = "@" + VocabCapabilities + ".UpdateRestrictions"
	TermCustomAggregate        = "@" + VocabAggregation + ".CustomAggregate"
	TermResultContext          = "@" + VocabCommon + ".ResultContext"
	TermValueListFixedValues   = "@" + VocabCommon + ".ValueListWithFixedValues"
	TermHidden                 = "@" + VocabUI + ".Hidden"
	TermHiddenFilter           = "@" + VocabUI + ".HiddenFilter"
	TermContact                = VocabCommunication + ".Contact"
	TermDataPoint              = VocabUI + ".DataPoint"
)

// Record types of the UI vocabulary DataField family.
const (
	DataFieldForAction                 = VocabUI + ".DataFieldForAction"
	DataFieldForIntentBasedNavigation  = VocabUI + ".DataFieldForIntentBasedNavigation"
	DataField                          = VocabUI + ".DataField"
	DataFieldWithNavigationPath        = VocabUI + ".DataFieldWithNavigationPath"
	DataFieldWithURL                   = VocabUI + ".DataFieldWithUrl"
	DataFieldWithIntentBasedNavigation = VocabUI + ".DataFieldWithIntentBasedNavigation"
	DataFieldWithAction                = VocabUI + ".DataFieldWithAction"
	DataFieldForAnnotation             = VocabUI + ".DataFieldForAnnotation"
)
