package metadata

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/zmcp/odata-filter-restrictions/internal/constants"
	"github.com/zmcp/odata-filter-restrictions/internal/models"
)

// xmlNode captures an arbitrary annotation expression subtree.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

func (n xmlNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// AnnotationsV4 is a schema-level <Annotations Target="..."> block
type AnnotationsV4 struct {
	XMLName     xml.Name  `xml:"Annotations"`
	Target      string    `xml:"Target,attr"`
	Qualifier   string    `xml:"Qualifier,attr"`
	Annotations []xmlNode `xml:"Annotation"`
}

// constant and dynamic expressions allowed in attribute notation
var attributeExpressions = []string{
	"Bool", "String", "Int", "Decimal", "Float", "Date", "DateTimeOffset", "TimeOfDay",
	"Duration", "Guid", "EnumMember", "Path", "PropertyPath", "NavigationPropertyPath",
	"AnnotationPath",
}

// annotationDecoder turns annotation XML into CSDL JSON shaped values,
// expanding schema aliases along the way.
type annotationDecoder struct {
	aliases map[string]string
}

func newAnnotationDecoder(aliases map[string]string) *annotationDecoder {
	if aliases == nil {
		aliases = map[string]string{}
	}
	return &annotationDecoder{aliases: aliases}
}

// expandQualified replaces an alias namespace in "Alias.Name".
func (d *annotationDecoder) expandQualified(name string) string {
	ns, local := models.SplitQualifiedName(name)
	if ns == "" {
		return name
	}
	if full, ok := d.aliases[ns]; ok {
		return full + "." + local
	}
	return name
}

// expandTerm expands "UI.Hidden" or "UI.DataPoint#Q".
func (d *annotationDecoder) expandTerm(term string) string {
	qualifier := ""
	if idx := strings.Index(term, "#"); idx >= 0 {
		term, qualifier = term[:idx], term[idx:]
	}
	return d.expandQualified(term) + qualifier
}

// expandTarget expands aliases in each segment of an annotation target path.
func (d *annotationDecoder) expandTarget(target string) string {
	segments := strings.Split(target, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, "@") {
			segments[i] = "@" + d.expandTerm(seg[1:])
			continue
		}
		if i == 0 {
			segments[i] = d.expandQualified(seg)
		}
	}
	return strings.Join(segments, "/")
}

// expandAnnotationPath expands terms inside paths like "_Contact/@Communication.Contact".
func (d *annotationDecoder) expandAnnotationPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if idx := strings.Index(seg, "@"); idx >= 0 {
			segments[i] = seg[:idx] + "@" + d.expandTerm(seg[idx+1:])
		}
	}
	return strings.Join(segments, "/")
}

func (d *annotationDecoder) expandEnum(value string) string {
	members := strings.Fields(value)
	for i, m := range members {
		if idx := strings.Index(m, "/"); idx >= 0 {
			members[i] = d.expandQualified(m[:idx]) + m[idx:]
		}
	}
	return strings.Join(members, " ")
}

// decodeAnnotations converts <Annotation> elements into a term-keyed map.
// defaultQualifier comes from an enclosing <Annotations Qualifier="...">.
func (d *annotationDecoder) decodeAnnotations(nodes []xmlNode, defaultQualifier string) models.Annotations {
	if len(nodes) == 0 {
		return nil
	}
	result := make(models.Annotations, len(nodes))
	for _, node := range nodes {
		key := d.annotationKey(node, defaultQualifier)
		if key == "" {
			continue
		}
		result[key] = d.decodeValue(node, true)
		// annotations on annotations are kept as sibling "@A@B" keys
		for _, child := range node.Children {
			if child.XMLName.Local == "Annotation" {
				if nested := d.annotationKey(child, ""); nested != "" {
					result[key+nested] = d.decodeValue(child, true)
				}
			}
		}
	}
	return result
}

func (d *annotationDecoder) annotationKey(node xmlNode, defaultQualifier string) string {
	term, ok := node.attr("Term")
	if !ok || term == "" {
		return ""
	}
	key := "@" + d.expandTerm(term)
	qualifier, _ := node.attr("Qualifier")
	if qualifier == "" {
		qualifier = defaultQualifier
	}
	if qualifier != "" && !strings.Contains(key, "#") {
		key += "#" + qualifier
	}
	return key
}

// decodeValue reads the value of an Annotation or PropertyValue element.
func (d *annotationDecoder) decodeValue(node xmlNode, defaultTrue bool) any {
	for _, name := range attributeExpressions {
		if raw, ok := node.attr(name); ok {
			return d.decodePrimitive(name, raw)
		}
	}
	for _, child := range node.Children {
		if child.XMLName.Local == "Annotation" {
			continue
		}
		return d.decodeExpression(child)
	}
	if defaultTrue {
		return true
	}
	return nil
}

func (d *annotationDecoder) decodeExpression(node xmlNode) any {
	switch name := node.XMLName.Local; name {
	case "Record":
		record := map[string]any{}
		if typ, ok := node.attr("Type"); ok {
			record["$Type"] = d.expandQualified(typ)
		}
		for _, child := range node.Children {
			switch child.XMLName.Local {
			case "PropertyValue":
				if prop, ok := child.attr("Property"); ok {
					record[prop] = d.decodeValue(child, true)
				}
			case "Annotation":
				if key := d.annotationKey(child, ""); key != "" {
					record[key] = d.decodeValue(child, true)
				}
			}
		}
		return record
	case "Collection":
		items := make([]any, 0, len(node.Children))
		for _, child := range node.Children {
			items = append(items, d.decodeExpression(child))
		}
		return items
	case "Null":
		return nil
	case "Not":
		if len(node.Children) == 0 {
			return nil
		}
		return map[string]any{"$Not": d.decodeExpression(node.Children[0])}
	case "And", "Or", "Eq", "Ne", "Gt", "Ge", "Lt", "Le", "If":
		operands := make([]any, 0, len(node.Children))
		for _, child := range node.Children {
			if child.XMLName.Local != "Annotation" {
				operands = append(operands, d.decodeExpression(child))
			}
		}
		return map[string]any{"$" + name: operands}
	case "Apply":
		operands := make([]any, 0, len(node.Children))
		for _, child := range node.Children {
			operands = append(operands, d.decodeExpression(child))
		}
		fn, _ := node.attr("Function")
		return map[string]any{"$Apply": operands, "$Function": fn}
	default:
		return d.decodePrimitive(name, strings.TrimSpace(node.Content))
	}
}

func (d *annotationDecoder) decodePrimitive(kind, raw string) any {
	switch kind {
	case "Bool":
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return nil
		}
		return b
	case "Int":
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil
		}
		return i
	case "Float":
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil
		}
		return f
	case "Decimal":
		return map[string]any{"$Decimal": raw}
	case "String", "Date", "DateTimeOffset", "TimeOfDay", "Duration", "Guid":
		return raw
	case "EnumMember":
		return map[string]any{constants.PathEnumMember: d.expandEnum(raw)}
	case "Path":
		return map[string]any{constants.PathPath: raw}
	case "PropertyPath":
		return map[string]any{constants.PathPropertyPath: raw}
	case "NavigationPropertyPath":
		return map[string]any{constants.PathNavigationPropertyPath: raw}
	case "AnnotationPath":
		return map[string]any{constants.PathAnnotationPath: d.expandAnnotationPath(raw)}
	default:
		return nil
	}
}
