package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/relabs-tech/tablerest/core/csql"
)

type reflectFunc func(ctx context.Context, db *csql.DB) ([]*Table, error)

var reflectors = map[csql.Dialect]reflectFunc{
	csql.Postgres: reflectPostgres,
	csql.MySQL:    reflectMySQL,
	csql.SQLite:   reflectSQLite,
}

// schemaRows collects the result of the information_schema queries
type schemaRows struct {
	names       []string
	columns     map[string][]Column
	primaryKeys map[string][]string
	foreignKeys map[string][]ForeignKey
}

func newSchemaRows() *schemaRows {
	return &schemaRows{
		columns:     map[string][]Column{},
		primaryKeys: map[string][]string{},
		foreignKeys: map[string][]ForeignKey{},
	}
}

func (s *schemaRows) tables() []*Table {
	tables := make([]*Table, 0, len(s.names))
	for _, name := range s.names {
		tables = append(tables, &Table{
			Name:        name,
			Columns:     s.columns[name],
			PrimaryKeys: s.primaryKeys[name],
			ForeignKeys: s.foreignKeys[name],
		})
	}
	return tables
}

// queryEach runs query and calls scan for each row
func queryEach(ctx context.Context, db *csql.DB, query string, args []interface{}, scan func(rows *sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("cannot scan schema: %w", err)
		}
	}
	return rows.Err()
}

const (
	postgresTablesQuery = `SELECT table_name FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name;`

	postgresColumnsQuery = `SELECT table_name, column_name, data_type, is_nullable, column_default, is_identity, ordinal_position
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position;`

	postgresPrimaryKeysQuery = `SELECT kcu.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1
ORDER BY kcu.table_name, kcu.ordinal_position;`

	postgresForeignKeysQuery = `SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
ON ccu.constraint_name = tc.constraint_name AND ccu.constraint_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
ORDER BY kcu.table_name, kcu.ordinal_position;`
)

func reflectPostgres(ctx context.Context, db *csql.DB) ([]*Table, error) {
	s := newSchemaRows()
	args := []interface{}{db.Schema}

	err := queryEach(ctx, db, postgresTablesQuery, args, func(rows *sql.Rows) error {
		var name string
		err := rows.Scan(&name)
		s.names = append(s.names, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = queryEach(ctx, db, postgresColumnsQuery, args, func(rows *sql.Rows) error {
		var (
			table, nullable, identity string
			def                       sql.NullString
			c                         Column
		)
		if err := rows.Scan(&table, &c.Name, &c.DBType, &nullable, &def, &identity, &c.Position); err != nil {
			return err
		}
		c.Type = semanticType(c.DBType, "")
		c.Nullable = nullable == "YES"
		c.AutoIncrement = identity == "YES" || strings.HasPrefix(def.String, "nextval(")
		c.HasDefault = def.Valid || c.AutoIncrement
		s.columns[table] = append(s.columns[table], c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = queryEach(ctx, db, postgresPrimaryKeysQuery, args, func(rows *sql.Rows) error {
		var table, column string
		err := rows.Scan(&table, &column)
		s.primaryKeys[table] = append(s.primaryKeys[table], column)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = queryEach(ctx, db, postgresForeignKeysQuery, args, func(rows *sql.Rows) error {
		var table string
		var fk ForeignKey
		err := rows.Scan(&table, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn)
		s.foreignKeys[table] = append(s.foreignKeys[table], fk)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.tables(), nil
}

const (
	mysqlTablesQuery = `SELECT TABLE_NAME FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME;`

	mysqlColumnsQuery = `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, EXTRA, ORDINAL_POSITION
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE()
ORDER BY TABLE_NAME, ORDINAL_POSITION;`

	mysqlPrimaryKeysQuery = `SELECT TABLE_NAME, COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE() AND CONSTRAINT_NAME = 'PRIMARY'
ORDER BY TABLE_NAME, ORDINAL_POSITION;`

	mysqlForeignKeysQuery = `SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE() AND REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY TABLE_NAME, ORDINAL_POSITION;`
)

func reflectMySQL(ctx context.Context, db *csql.DB) ([]*Table, error) {
	s := newSchemaRows()

	err := queryEach(ctx, db, mysqlTablesQuery, nil, func(rows *sql.Rows) error {
		var name string
		err := rows.Scan(&name)
		s.names = append(s.names, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = queryEach(ctx, db, mysqlColumnsQuery, nil, func(rows *sql.Rows) error {
		var (
			table, dataType, nullable, extra string
			def                              sql.NullString
			c                                Column
		)
		if err := rows.Scan(&table, &c.Name, &dataType, &c.DBType, &nullable, &def, &extra, &c.Position); err != nil {
			return err
		}
		c.Type = semanticType(dataType, c.DBType)
		c.Nullable = nullable == "YES"
		c.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		c.HasDefault = def.Valid || c.AutoIncrement
		s.columns[table] = append(s.columns[table], c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = queryEach(ctx, db, mysqlPrimaryKeysQuery, nil, func(rows *sql.Rows) error {
		var table, column string
		err := rows.Scan(&table, &column)
		s.primaryKeys[table] = append(s.primaryKeys[table], column)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = queryEach(ctx, db, mysqlForeignKeysQuery, nil, func(rows *sql.Rows) error {
		var table string
		var fk ForeignKey
		err := rows.Scan(&table, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn)
		s.foreignKeys[table] = append(s.foreignKeys[table], fk)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.tables(), nil
}

const (
	sqliteTablesQuery = `SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name;`

	sqliteColumnsQuery = `SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid;`

	sqliteForeignKeysQuery = `SELECT "from", "table", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq;`
)

func reflectSQLite(ctx context.Context, db *csql.DB) ([]*Table, error) {
	s := newSchemaRows()

	err := queryEach(ctx, db, sqliteTablesQuery, nil, func(rows *sql.Rows) error {
		var name string
		err := rows.Scan(&name)
		s.names = append(s.names, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, table := range s.names {
		args := []interface{}{table}
		pkPositions := map[int]string{}
		err = queryEach(ctx, db, sqliteColumnsQuery, args, func(rows *sql.Rows) error {
			var (
				cid, notNull, pk int
				def              sql.NullString
				c                Column
			)
			if err := rows.Scan(&cid, &c.Name, &c.DBType, &notNull, &def, &pk); err != nil {
				return err
			}
			c.Position = cid + 1
			c.Type = semanticType(c.DBType, "")
			c.Nullable = notNull == 0 && pk == 0
			c.HasDefault = def.Valid
			if pk > 0 {
				pkPositions[pk] = c.Name
			}
			s.columns[table] = append(s.columns[table], c)
			return nil
		})
		if err != nil {
			return nil, err
		}
		for i := 1; i <= len(pkPositions); i++ {
			s.primaryKeys[table] = append(s.primaryKeys[table], pkPositions[i])
		}

		// a single INTEGER PRIMARY KEY is an alias for the rowid
		if len(s.primaryKeys[table]) == 1 {
			for i := range s.columns[table] {
				c := &s.columns[table][i]
				if c.Name == s.primaryKeys[table][0] && strings.EqualFold(c.DBType, "INTEGER") {
					c.AutoIncrement = true
					c.HasDefault = true
				}
			}
		}

		err = queryEach(ctx, db, sqliteForeignKeysQuery, args, func(rows *sql.Rows) error {
			var fk ForeignKey
			var to sql.NullString
			err := rows.Scan(&fk.Column, &fk.ReferencedTable, &to)
			fk.ReferencedColumn = to.String
			s.foreignKeys[table] = append(s.foreignKeys[table], fk)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return s.tables(), nil
}
