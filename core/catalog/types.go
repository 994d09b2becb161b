package catalog

import "strings"

// Type is the semantic type of a column
type Type string

// all semantic types
const (
	TypeString   Type = "string"
	TypeInteger  Type = "integer"
	TypeFloat    Type = "float"
	TypeDecimal  Type = "decimal"
	TypeBoolean  Type = "boolean"
	TypeDate     Type = "date"
	TypeTime     Type = "time"
	TypeDateTime Type = "datetime"
	TypeBinary   Type = "binary"
	TypeJSON     Type = "json"
	TypeUnknown  Type = "unknown"
)

// semanticType maps a database type to a semantic type. dataType is the bare
// type name (information_schema data_type, or the declared sqlite type),
// columnType the full mysql column type which is the only way to recognize
// mysql booleans.
func semanticType(dataType, columnType string) Type {
	ct := strings.ToLower(strings.TrimSpace(columnType))
	if strings.HasPrefix(ct, "tinyint(1)") || ct == "bit(1)" {
		return TypeBoolean
	}

	t := strings.ToLower(strings.TrimSpace(dataType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimSuffix(t, " unsigned")

	switch t {
	case "":
		return TypeUnknown
	case "bool", "boolean", "bit":
		return TypeBoolean
	case "json", "jsonb", "array":
		return TypeJSON
	case "date":
		return TypeDate
	case "interval", "point", "uuid", "user-defined", "enum", "set", "inet", "cidr", "xml", "citext":
		return TypeString
	case "year":
		return TypeInteger
	}

	switch {
	case strings.HasPrefix(t, "timestamp"), strings.HasPrefix(t, "datetime"):
		return TypeDateTime
	case strings.HasPrefix(t, "time"):
		return TypeTime
	case strings.Contains(t, "int"), strings.Contains(t, "serial"):
		return TypeInteger
	case strings.Contains(t, "real"), strings.Contains(t, "floa"), strings.Contains(t, "doub"):
		return TypeFloat
	case strings.Contains(t, "numeric"), strings.Contains(t, "decimal"), t == "money", t == "number":
		return TypeDecimal
	case strings.Contains(t, "blob"), strings.Contains(t, "binary"), t == "bytea", t == "image":
		return TypeBinary
	case strings.Contains(t, "char"), strings.Contains(t, "text"), strings.Contains(t, "clob"), t == "string":
		return TypeString
	}
	return TypeUnknown
}
