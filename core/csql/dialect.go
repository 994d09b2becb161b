package csql

import (
	"strconv"
	"strings"
)

// Dialect is one of the supported SQL engines
type Dialect string

// all supported dialects
const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// ParseDialect parses a dialect name. "postgresql" and "sqlite3" are accepted as aliases.
func ParseDialect(s string) (Dialect, bool) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql":
		return Postgres, true
	case "mysql", "mariadb":
		return MySQL, true
	case "sqlite", "sqlite3":
		return SQLite, true
	}
	return "", false
}

// DriverName returns the database/sql driver name
func (d Dialect) DriverName() string {
	return string(d)
}

// DefaultSchema returns the schema used when none is configured
func (d Dialect) DefaultSchema() string {
	switch d {
	case Postgres:
		return "public"
	case SQLite:
		return "main"
	}
	return ""
}

// Placeholder returns the n-th (1-based) bind parameter
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Placeholders returns n bind parameters, starting with the (offset+1)-th, separated
// with commas
func (d Dialect) Placeholders(offset, n int) string {
	result := make([]string, n)
	for i := 0; i < n; i++ {
		result[i] = d.Placeholder(offset + i + 1)
	}
	return strings.Join(result, ", ")
}

// Quote quotes an identifier
func (d Dialect) Quote(identifier string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// SupportsReturning returns true if INSERT ... RETURNING is the way to
// learn generated keys. MySQL reports only auto increment keys, through
// LastInsertId.
func (d Dialect) SupportsReturning() bool {
	return d == Postgres || d == SQLite
}
