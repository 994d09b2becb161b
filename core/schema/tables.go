package schema

import (
	"fmt"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/tablerest/core"
	"github.com/relabs-tech/tablerest/core/catalog"
)

// SchemaID returns the id of the payload schema of table for operation, which
// is either core.OperationCreate or core.OperationUpdate. The table name is path
// escaped, the id is a valid URL for any name.
func SchemaID(table string, operation core.Operation) string {
	return "tablerest://tables/" + url.PathEscape(table) + "/" + string(operation)
}

// ForCatalog compiles a create and an update schema for every table of cat.
//
// Both schemas reject unknown columns. The create schema requires all columns which
// are NOT NULL and have neither a default nor are generated. Generated key columns
// cannot be set on create. The update schema requires at least one column.
func ForCatalog(cat *catalog.Catalog) (*Validator, error) {
	var schemas []string
	for _, table := range cat.Tables() {
		for _, operation := range []core.Operation{core.OperationCreate, core.OperationUpdate} {
			s, err := json.Marshal(TableSchema(table, operation))
			if err != nil {
				return nil, fmt.Errorf("cannot marshal schema of table %s: %w", table.Name, err)
			}
			schemas = append(schemas, string(s))
		}
	}
	return NewValidator(schemas, nil)
}

// TableSchema returns the JSON schema document for payloads of table
func TableSchema(table *catalog.Table, operation core.Operation) map[string]interface{} {
	properties := map[string]interface{}{}
	required := []string{}
	for _, c := range table.Columns {
		if operation == core.OperationCreate && c.PrimaryKey && c.AutoIncrement {
			continue
		}
		properties[c.Name] = columnSchema(c)
		if operation == core.OperationCreate && !c.Nullable && !c.HasDefault && !c.AutoIncrement {
			required = append(required, c.Name)
		}
	}

	s := map[string]interface{}{
		"$id":                  SchemaID(table.Name, operation),
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	if operation == core.OperationUpdate {
		s["minProperties"] = 1
	}
	return s
}

func columnSchema(c catalog.Column) map[string]interface{} {
	var types []string
	s := map[string]interface{}{}
	switch c.Type {
	case catalog.TypeInteger:
		types = []string{"integer"}
	case catalog.TypeFloat:
		types = []string{"number"}
	case catalog.TypeDecimal:
		types = []string{"number", "string"}
	case catalog.TypeBoolean:
		types = []string{"boolean", "integer"}
	case catalog.TypeDate:
		types = []string{"string"}
		s["format"] = "date"
	case catalog.TypeString, catalog.TypeDateTime, catalog.TypeTime, catalog.TypeBinary:
		types = []string{"string"}
	default:
		// json and unknown columns take anything
		return s
	}
	if c.Nullable {
		types = append(types, "null")
	}
	if len(types) == 1 {
		s["type"] = types[0]
	} else {
		s["type"] = types
	}
	return s
}
