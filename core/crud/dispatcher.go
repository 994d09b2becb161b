// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package crud implements the generic table operations list, get, create,
update and delete.

A Dispatcher resolves the table name against the catalog, validates the
payload, and runs the corresponding SQL in a transaction of its own. Rows are
returned as column name to value mappings, with values normalized so that
they marshal the same way for all supported databases.

All errors are *core.Error values, so the transport can map them to a response
without knowing about SQL.
*/
package crud

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/tablerest/core"
	"github.com/relabs-tech/tablerest/core/catalog"
	"github.com/relabs-tech/tablerest/core/csql"
	"github.com/relabs-tech/tablerest/core/logger"
	"github.com/relabs-tech/tablerest/core/schema"
)

// Row is a single table row, column name to value
type Row map[string]interface{}

// Page is the result of a list operation
type Page struct {
	Table string `json:"table"`
	Items []Row  `json:"items"`
	Total int64  `json:"total"`
	Skip  int    `json:"skip"`
	Limit int    `json:"limit"`
}

// Configuration holds the pagination limits and the optional notifier
type Configuration struct {
	// DefaultLimit is the page size if the client does not ask for one. Defaults to 10.
	DefaultLimit int
	// MaxLimit is the largest page size, larger requests are clamped. Defaults to 100.
	MaxLimit int
	// Notifier receives committed changes, may be nil
	Notifier core.Notifier
}

// Dispatcher runs table operations against a database
type Dispatcher struct {
	db           *csql.DB
	catalog      *catalog.Catalog
	validator    *schema.Validator
	notifier     core.Notifier
	defaultLimit int
	maxLimit     int
}

// New creates a dispatcher for all tables of cat
func New(db *csql.DB, cat *catalog.Catalog, config Configuration) (*Dispatcher, error) {
	validator, err := schema.ForCatalog(cat)
	if err != nil {
		return nil, core.SchemaFailed(err, "cannot compile payload schemas")
	}
	d := &Dispatcher{
		db:           db,
		catalog:      cat,
		validator:    validator,
		notifier:     config.Notifier,
		defaultLimit: config.DefaultLimit,
		maxLimit:     config.MaxLimit,
	}
	if d.maxLimit <= 0 {
		d.maxLimit = 100
	}
	if d.defaultLimit <= 0 {
		d.defaultLimit = 10
	}
	if d.defaultLimit > d.maxLimit {
		d.defaultLimit = d.maxLimit
	}
	return d, nil
}

// Catalog returns the catalog of the dispatcher
func (d *Dispatcher) Catalog() *catalog.Catalog {
	return d.catalog
}

// DefaultLimit returns the page size used when the client does not ask for one
func (d *Dispatcher) DefaultLimit() int {
	return d.defaultLimit
}

func (d *Dispatcher) table(name string) (*catalog.Table, error) {
	t, ok := d.catalog.Lookup(name)
	if !ok {
		return nil, core.NotFound("Table '%s' not found", name)
	}
	return t, nil
}

// keyed returns the table and its designated key column
func (d *Dispatcher) keyed(name string) (*catalog.Table, catalog.Column, error) {
	t, err := d.table(name)
	if err != nil {
		return nil, catalog.Column{}, err
	}
	key, ok := t.Key()
	if !ok {
		return nil, catalog.Column{}, core.Validation("table '%s' has no single-column primary key, rows cannot be addressed by id", name)
	}
	return t, key, nil
}

func (d *Dispatcher) selectColumns(t *catalog.Table) string {
	names := t.ColumnNames()
	for i, name := range names {
		names[i] = d.db.Dialect.Quote(name)
	}
	return strings.Join(names, ", ")
}

// List returns up to limit rows of table, skipping the first skip rows. limit is clamped
// to [1, MaxLimit], skip to >= 0. Rows are ordered by primary key if the table has one.
func (d *Dispatcher) List(ctx context.Context, table string, skip, limit int) (*Page, error) {
	t, err := d.table(table)
	if err != nil {
		return nil, err
	}
	if skip < 0 {
		skip = 0
	}
	if limit < 1 {
		limit = 1
	}
	if limit > d.maxLimit {
		limit = d.maxLimit
	}

	dialect := d.db.Dialect
	query := "SELECT " + d.selectColumns(t) + " FROM " + d.db.Table(t.Name)
	if len(t.PrimaryKeys) > 0 {
		order := make([]string, len(t.PrimaryKeys))
		for i, pk := range t.PrimaryKeys {
			order[i] = dialect.Quote(pk)
		}
		query += " ORDER BY " + strings.Join(order, ", ")
	}
	query += " LIMIT " + dialect.Placeholder(1) + " OFFSET " + dialect.Placeholder(2) + ";"
	countQuery := "SELECT COUNT(*) FROM " + d.db.Table(t.Name) + ";"

	page := &Page{Table: t.Name, Items: []Row{}, Skip: skip, Limit: limit}
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, countQuery).Scan(&page.Total); err != nil {
			return d.dbError(ctx, err, t.Name, countQuery)
		}
		rows, err := tx.QueryContext(ctx, query, limit, skip)
		if err != nil {
			return d.dbError(ctx, err, t.Name, query)
		}
		items, err := scanRows(rows, t)
		if err != nil {
			return d.dbError(ctx, err, t.Name, query)
		}
		page.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Get returns the row of table with the primary key id
func (d *Dispatcher) Get(ctx context.Context, table, id string) (Row, error) {
	t, key, err := d.keyed(table)
	if err != nil {
		return nil, err
	}
	keyValue, err := parseID(key, id)
	if err != nil {
		return nil, err
	}
	var row Row
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		row, err = d.selectRow(ctx, tx, t, key, keyValue)
		return err
	})
	return row, err
}

// Create inserts a row into table and returns it as stored, including generated values.
//
// A table without a designated key cannot be read back reliably, for those the stored
// payload is returned.
func (d *Dispatcher) Create(ctx context.Context, table string, payload map[string]interface{}) (Row, error) {
	t, err := d.table(table)
	if err != nil {
		return nil, err
	}
	key, hasKey := t.Key()
	if _, ok := payload[key.Name]; ok && hasKey && key.AutoIncrement {
		return nil, core.Validation("column '%s' of table '%s' is generated by the database and cannot be set", key.Name, t.Name)
	}
	if err := d.validate(t, core.OperationCreate, payload); err != nil {
		return nil, err
	}
	dialect := d.db.Dialect
	returning := hasKey && dialect.SupportsReturning()
	if _, ok := payload[key.Name]; !ok && hasKey && !returning && !key.AutoIncrement {
		// a default filled key cannot be learned without RETURNING
		return nil, core.Validation("column '%s' of table '%s' must be supplied", key.Name, t.Name)
	}
	columns, values, err := bindValues(t, payload)
	if err != nil {
		return nil, err
	}

	var query string
	if len(columns) == 0 {
		if dialect == csql.MySQL {
			query = "INSERT INTO " + d.db.Table(t.Name) + " () VALUES ()"
		} else {
			query = "INSERT INTO " + d.db.Table(t.Name) + " DEFAULT VALUES"
		}
	} else {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = dialect.Quote(c)
		}
		query = "INSERT INTO " + d.db.Table(t.Name) + " (" + strings.Join(quoted, ", ") + ") VALUES (" +
			dialect.Placeholders(0, len(columns)) + ")"
	}
	if returning {
		query += " RETURNING " + dialect.Quote(key.Name)
	}
	query += ";"

	var row Row
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		if !hasKey {
			if _, err := tx.ExecContext(ctx, query, values...); err != nil {
				return d.dbError(ctx, err, t.Name, query)
			}
			row = Row{}
			for i, c := range columns {
				column, _ := t.Column(c)
				row[c] = normalize(column, values[i])
			}
			return nil
		}

		var keyValue interface{}
		if returning {
			if err := tx.QueryRowContext(ctx, query, values...).Scan(&keyValue); err != nil {
				return d.dbError(ctx, err, t.Name, query)
			}
		} else {
			res, err := tx.ExecContext(ctx, query, values...)
			if err != nil {
				return d.dbError(ctx, err, t.Name, query)
			}
			if v, ok := payload[key.Name]; ok {
				keyValue, err = dbValue(key, v)
				if err != nil {
					return err
				}
			} else {
				id, err := res.LastInsertId()
				if err != nil {
					return d.dbError(ctx, err, t.Name, query)
				}
				keyValue = id
			}
		}
		row, err = d.selectRow(ctx, tx, t, key, keyValue)
		return err
	})
	if err != nil {
		return nil, err
	}
	d.notify(ctx, t.Name, core.OperationCreate, row)
	return row, nil
}

// Update changes the supplied columns of the row of table with primary key id and returns
// the updated row. The key column may be part of the payload only with the value of id.
func (d *Dispatcher) Update(ctx context.Context, table, id string, payload map[string]interface{}) (Row, error) {
	t, key, err := d.keyed(table)
	if err != nil {
		return nil, err
	}
	keyValue, err := parseID(key, id)
	if err != nil {
		return nil, err
	}
	if err := d.validate(t, core.OperationUpdate, payload); err != nil {
		return nil, err
	}
	if v, ok := payload[key.Name]; ok {
		supplied, err := dbValue(key, v)
		if err != nil {
			return nil, err
		}
		if !sameKey(supplied, keyValue) {
			return nil, core.Validation("column '%s' of table '%s' cannot be changed", key.Name, t.Name)
		}
		changes := make(map[string]interface{}, len(payload)-1)
		for k, v := range payload {
			if k != key.Name {
				changes[k] = v
			}
		}
		payload = changes
	}
	columns, values, err := bindValues(t, payload)
	if err != nil {
		return nil, err
	}

	dialect := d.db.Dialect
	assignments := make([]string, len(columns))
	for i, c := range columns {
		assignments[i] = dialect.Quote(c) + " = " + dialect.Placeholder(i+1)
	}
	query := "UPDATE " + d.db.Table(t.Name) + " SET " + strings.Join(assignments, ", ") +
		" WHERE " + dialect.Quote(key.Name) + " = " + dialect.Placeholder(len(columns)+1) + ";"

	var row Row
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		// mysql reports zero affected rows if nothing changed, so existence is checked first
		if _, err := d.selectRow(ctx, tx, t, key, keyValue); err != nil {
			return err
		}
		if len(columns) > 0 {
			if _, err := tx.ExecContext(ctx, query, append(values, keyValue)...); err != nil {
				return d.dbError(ctx, err, t.Name, query)
			}
		}
		row, err = d.selectRow(ctx, tx, t, key, keyValue)
		return err
	})
	if err != nil {
		return nil, err
	}
	d.notify(ctx, t.Name, core.OperationUpdate, row)
	return row, nil
}

// Delete deletes the row of table with primary key id
func (d *Dispatcher) Delete(ctx context.Context, table, id string) error {
	t, key, err := d.keyed(table)
	if err != nil {
		return err
	}
	keyValue, err := parseID(key, id)
	if err != nil {
		return err
	}
	query := "DELETE FROM " + d.db.Table(t.Name) + " WHERE " + d.db.Dialect.Quote(key.Name) + " = " + d.db.Dialect.Placeholder(1) + ";"
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, keyValue)
		if err != nil {
			return d.dbError(ctx, err, t.Name, query)
		}
		count, err := res.RowsAffected()
		if err != nil {
			return d.dbError(ctx, err, t.Name, query)
		}
		if count == 0 {
			return core.NotFound("Record with %s=%s not found in '%s'", key.Name, id, t.Name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.notify(ctx, t.Name, core.OperationDelete, Row{key.Name: normalize(key, keyValue)})
	return nil
}

func (d *Dispatcher) selectRow(ctx context.Context, tx *sql.Tx, t *catalog.Table, key catalog.Column, keyValue interface{}) (Row, error) {
	query := "SELECT " + d.selectColumns(t) + " FROM " + d.db.Table(t.Name) +
		" WHERE " + d.db.Dialect.Quote(key.Name) + " = " + d.db.Dialect.Placeholder(1) + ";"
	rows, err := tx.QueryContext(ctx, query, keyValue)
	if err != nil {
		return nil, d.dbError(ctx, err, t.Name, query)
	}
	items, err := scanRows(rows, t)
	if err != nil {
		return nil, d.dbError(ctx, err, t.Name, query)
	}
	if len(items) == 0 {
		return nil, core.NotFound("Record with %s=%v not found in '%s'", key.Name, keyValue, t.Name)
	}
	return items[0], nil
}

func (d *Dispatcher) validate(t *catalog.Table, operation core.Operation, payload map[string]interface{}) error {
	if payload == nil {
		return core.Validation("payload must be a JSON object")
	}
	id := schema.SchemaID(t.Name, operation)
	if !d.validator.HasSchema(id) {
		return core.Internal(nil, "no %s schema for table '%s'", operation, t.Name)
	}
	doc, err := json.Marshal(payload)
	if err != nil {
		return core.Validation("payload cannot be encoded: %v", err)
	}
	return d.validator.ValidateString(string(doc), id)
}

// bindValues returns the payload columns in sorted order and their database values
func bindValues(t *catalog.Table, payload map[string]interface{}) ([]string, []interface{}, error) {
	columns := make([]string, 0, len(payload))
	for name := range payload {
		if _, ok := t.Column(name); !ok {
			return nil, nil, core.Validation("unknown column '%s' in table '%s'", name, t.Name)
		}
		columns = append(columns, name)
	}
	sort.Strings(columns)
	values := make([]interface{}, len(columns))
	for i, name := range columns {
		column, _ := t.Column(name)
		v, err := dbValue(column, payload[name])
		if err != nil {
			return nil, nil, err
		}
		values[i] = v
	}
	return columns, values, nil
}

func (d *Dispatcher) notify(ctx context.Context, table string, operation core.Operation, row Row) {
	if d.notifier == nil || !operation.Modifying() {
		return
	}
	payload, err := json.Marshal(row)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4810: cannot marshal %s notification for %s", operation, table)
		return
	}
	d.notifier.Notify(ctx, table, operation, payload)
}
