package crud

import (
	"bytes"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/tablerest/core"
	"github.com/relabs-tech/tablerest/core/catalog"
)

// DecodePayload decodes a request body into a column to value mapping. Numbers are
// kept as json.Number, so no precision is lost before they are bound.
func DecodePayload(body []byte) (map[string]interface{}, error) {
	var payload map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, core.Validation("invalid JSON body: %v", err)
	}
	if payload == nil {
		return nil, core.Validation("payload must be a JSON object")
	}
	return payload, nil
}

// parseID converts an id from the path to the type of the key column
func parseID(key catalog.Column, id string) (interface{}, error) {
	switch key.Type {
	case catalog.TypeInteger:
		i, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, core.Validation("id '%s' is not a valid value for integer column '%s'", id, key.Name)
		}
		return i, nil
	case catalog.TypeFloat:
		f, err := strconv.ParseFloat(id, 64)
		if err != nil {
			return nil, core.Validation("id '%s' is not a valid value for float column '%s'", id, key.Name)
		}
		return f, nil
	case catalog.TypeDecimal:
		if _, err := strconv.ParseFloat(id, 64); err != nil {
			return nil, core.Validation("id '%s' is not a valid value for decimal column '%s'", id, key.Name)
		}
		return id, nil
	case catalog.TypeBoolean:
		b, err := strconv.ParseBool(id)
		if err != nil {
			return nil, core.Validation("id '%s' is not a valid value for boolean column '%s'", id, key.Name)
		}
		return b, nil
	}
	return id, nil
}

// dbValue converts a decoded JSON value to the value bound for column
func dbValue(column catalog.Column, v interface{}) (interface{}, error) {
	invalid := func() error {
		return core.Validation("invalid value %v for %s column '%s'", v, column.Type, column.Name)
	}
	switch value := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		switch column.Type {
		case catalog.TypeInteger:
			if i, err := value.Int64(); err == nil {
				return i, nil
			}
			f, err := value.Float64()
			if err != nil || !isInt64(f) {
				return nil, invalid()
			}
			return int64(f), nil
		case catalog.TypeFloat:
			f, err := value.Float64()
			if err != nil {
				return nil, invalid()
			}
			return f, nil
		case catalog.TypeBoolean:
			f, err := value.Float64()
			if err != nil {
				return nil, invalid()
			}
			return f != 0, nil
		}
		return value.String(), nil
	case float64:
		switch column.Type {
		case catalog.TypeInteger:
			if !isInt64(value) {
				return nil, invalid()
			}
			return int64(value), nil
		case catalog.TypeBoolean:
			return value != 0, nil
		case catalog.TypeDecimal, catalog.TypeString:
			return strconv.FormatFloat(value, 'f', -1, 64), nil
		}
		return value, nil
	case int:
		return dbValue(column, int64(value))
	case int64:
		switch column.Type {
		case catalog.TypeBoolean:
			return value != 0, nil
		case catalog.TypeFloat:
			return float64(value), nil
		case catalog.TypeDecimal, catalog.TypeString:
			return strconv.FormatInt(value, 10), nil
		}
		return value, nil
	case bool, string, []byte, time.Time:
		return value, nil
	case map[string]interface{}, []interface{}:
		if column.Type != catalog.TypeJSON && column.Type != catalog.TypeUnknown {
			return nil, invalid()
		}
		b, err := json.Marshal(value)
		if err != nil {
			return nil, invalid()
		}
		return string(b), nil
	}
	return nil, invalid()
}

// isInt64 returns true if f is a whole number in the range of int64
func isInt64(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64
}

// normalize converts a scanned value into the value marshalled for column
func normalize(column catalog.Column, v interface{}) interface{} {
	switch value := v.(type) {
	case nil:
		return nil
	case []byte:
		if column.Type == catalog.TypeBoolean && len(value) == 1 && value[0] <= 1 {
			// mysql bit(1)
			return value[0] == 1
		}
		return normalize(column, string(value))
	case string:
		switch column.Type {
		case catalog.TypeInteger:
			if i, err := strconv.ParseInt(value, 10, 64); err == nil {
				return i
			}
		case catalog.TypeFloat, catalog.TypeDecimal:
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				return f
			}
		case catalog.TypeBoolean:
			if b, err := strconv.ParseBool(value); err == nil {
				return b
			}
		case catalog.TypeJSON:
			if json.Valid([]byte(value)) {
				return json.RawMessage(value)
			}
		}
		return value
	case int64:
		if column.Type == catalog.TypeBoolean {
			return value != 0
		}
		return value
	case time.Time:
		if column.Type == catalog.TypeDate {
			return value.Format("2006-01-02")
		}
		return value
	case json.Number:
		return normalize(column, value.String())
	}
	return v
}

func sameKey(a, b interface{}) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// scanRows scans all rows into column name to value mappings and closes rows
func scanRows(rows *sql.Rows, t *catalog.Table) ([]Row, error) {
	defer rows.Close()
	items := []Row{}
	values := make([]interface{}, len(t.Columns))
	pointers := make([]interface{}, len(t.Columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("cannot scan row: %w", err)
		}
		row := make(Row, len(t.Columns))
		for i, c := range t.Columns {
			row[c.Name] = normalize(c, values[i])
		}
		items = append(items, row)
	}
	return items, rows.Err()
}
