// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package catalog reflects the tables of a relational database.

The catalog is loaded exactly once at startup with Load() and is read-only
afterwards. It is therefore safe for concurrent use without locking.

Each table is described by its ordered columns, its primary key and its
foreign keys. A table with a single-column primary key has a designated key,
which is what addresses individual rows in the REST api. Tables without a
primary key, or with a composite one, can be listed and inserted into only.
*/
package catalog

import (
	"context"
	"sort"

	"github.com/relabs-tech/tablerest/core"
	"github.com/relabs-tech/tablerest/core/csql"
	"github.com/relabs-tech/tablerest/core/logger"
)

// Column describes a table column
type Column struct {
	Name          string `json:"name"`
	Type          Type   `json:"type"`
	DBType        string `json:"db_type"`
	Nullable      bool   `json:"nullable"`
	HasDefault    bool   `json:"has_default"`
	AutoIncrement bool   `json:"auto_increment"`
	PrimaryKey    bool   `json:"primary_key"`
	Position      int    `json:"position"`
}

// ForeignKey describes a single column reference to another table
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// Table describes a table
type Table struct {
	Name        string       `json:"table_name"`
	Columns     []Column     `json:"columns"`
	PrimaryKeys []string     `json:"primary_keys"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`

	index map[string]int
	key   int
}

// Key returns the designated key column. ok is false if the table has no
// primary key or a composite one.
func (t *Table) Key() (column Column, ok bool) {
	if t.key < 0 {
		return Column{}, false
	}
	return t.Columns[t.key], true
}

// Column returns the column with the given name
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// ColumnNames returns the column names in table order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Catalog is the immutable set of reflected tables
type Catalog struct {
	tables map[string]*Table
	names  []string
}

// Load reflects all tables of db. It fails with a core.KindConnection error if
// the database is unreachable, and with a core.KindSchema error if there are no
// tables.
func Load(ctx context.Context, db *csql.DB) (*Catalog, error) {
	rlog := logger.FromContext(ctx)
	if err := db.PingContext(ctx); err != nil {
		return nil, core.ConnectionFailed(err, "cannot reach %s database", db.Dialect)
	}

	reflect, ok := reflectors[db.Dialect]
	if !ok {
		return nil, core.SchemaFailed(nil, "cannot reflect dialect '%s'", db.Dialect)
	}
	tables, err := reflect(ctx, db)
	if err != nil {
		return nil, core.SchemaFailed(err, "cannot reflect schema '%s'", db.Schema)
	}
	if len(tables) == 0 {
		return nil, core.SchemaFailed(nil, "no tables found in schema '%s'", db.Schema)
	}

	c, err := New(tables)
	if err != nil {
		return nil, err
	}
	rlog.Infof("reflected %d tables from schema %s: %v", len(c.names), db.Schema, c.names)
	return c, nil
}

// New creates a catalog from table descriptions. It derives the primary key
// flags of the columns and the designated keys. A primary key naming a column
// the table does not have is a core.KindSchema error.
func New(tables []*Table) (*Catalog, error) {
	c := &Catalog{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if _, ok := c.tables[t.Name]; ok {
			return nil, core.SchemaFailed(nil, "duplicate table '%s'", t.Name)
		}
		t.index = make(map[string]int, len(t.Columns))
		for i := range t.Columns {
			t.index[t.Columns[i].Name] = i
		}
		t.key = -1
		for _, pk := range t.PrimaryKeys {
			i, ok := t.index[pk]
			if !ok {
				return nil, core.SchemaFailed(nil, "primary key '%s' of table '%s' is not a column", pk, t.Name)
			}
			t.Columns[i].PrimaryKey = true
			t.Columns[i].Nullable = false
		}
		if len(t.PrimaryKeys) == 1 {
			t.key = t.index[t.PrimaryKeys[0]]
		}
		if t.PrimaryKeys == nil {
			t.PrimaryKeys = []string{}
		}
		if t.ForeignKeys == nil {
			t.ForeignKeys = []ForeignKey{}
		}
		c.tables[t.Name] = t
		c.names = append(c.names, t.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Names returns the sorted table names
func (c *Catalog) Names() []string {
	return append([]string{}, c.names...)
}

// Lookup returns the table with the given name
func (c *Catalog) Lookup(name string) (*Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// Tables returns all tables sorted by name
func (c *Catalog) Tables() []*Table {
	tables := make([]*Table, len(c.names))
	for i, name := range c.names {
		tables[i] = c.tables[name]
	}
	return tables
}
