// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package csql wraps a pooled database/sql handle with the SQL dialect it speaks.
package csql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq" // load database driver for postgres
	_ "modernc.org/sqlite" // load database driver for sqlite

	"github.com/relabs-tech/tablerest/core"
	"github.com/relabs-tech/tablerest/core/logger"
)

// DB encapsulates a standard sql.DB with its dialect and schema
type DB struct {
	*sql.DB
	Dialect Dialect
	Schema  string
}

// Configuration describes how to reach the database and how to pool connections
type Configuration struct {
	Dialect  Dialect
	Host     string
	Port     int
	User     string
	Password string
	// Database is the database name, or the file path for sqlite
	Database string
	// Schema is the postgres schema to reflect, "public" if empty. Ignored
	// by the other dialects.
	Schema string
	// PoolSize is the maximum number of open connections, 0 means unlimited
	PoolSize int
	// PoolRecycle is the maximum lifetime of a connection, 0 means forever
	PoolRecycle time.Duration
	// Options are additional driver specific parameters
	Options map[string]string
}

// DataSourceName returns the driver specific connection string
func (c Configuration) DataSourceName() (string, error) {
	switch c.Dialect {
	case Postgres:
		return postgresDSN(c), nil
	case MySQL:
		return mysqlDSN(c), nil
	case SQLite:
		if c.Database == "" {
			return "", fmt.Errorf("sqlite needs a database file")
		}
		return sqliteDSN(c), nil
	}
	return "", fmt.Errorf("unknown database dialect '%s'", c.Dialect)
}

func postgresDSN(c Configuration) string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if v, ok := c.Options["sslmode"]; ok {
		sslmode = v
	}
	parts := []string{
		"host=" + pqValue(host),
		"port=" + strconv.Itoa(port),
		"dbname=" + pqValue(c.Database),
		"sslmode=" + pqValue(sslmode),
	}
	if c.User != "" {
		parts = append(parts, "user="+pqValue(c.User))
	}
	if c.Password != "" {
		parts = append(parts, "password="+pqValue(c.Password))
	}
	for _, key := range sortedKeys(c.Options) {
		if key == "sslmode" {
			continue
		}
		parts = append(parts, key+"="+pqValue(c.Options[key]))
	}
	return strings.Join(parts, " ")
}

// pqValue quotes a key/value connection string value if necessary
func pqValue(s string) string {
	if s != "" && !strings.ContainsAny(s, ` '\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

func mysqlDSN(c Configuration) string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	mc.DBName = c.Database
	mc.ParseTime = true
	if len(c.Options) > 0 {
		mc.Params = map[string]string{}
		for key, value := range c.Options {
			mc.Params[key] = value
		}
	}
	return mc.FormatDSN()
}

func sqliteDSN(c Configuration) string {
	params := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	for _, key := range sortedKeys(c.Options) {
		params = append(params, key+"="+c.Options[key])
	}
	return c.Database + "?" + strings.Join(params, "&")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Open opens a pooled database connection and verifies that the database is reachable.
// Failures are returned as core.KindConnection errors.
func Open(ctx context.Context, c Configuration) (*DB, error) {
	dsn, err := c.DataSourceName()
	if err != nil {
		return nil, core.ConnectionFailed(err, "invalid database configuration")
	}

	rlog := logger.FromContext(ctx)
	rlog.Infof("connecting to %s database %s on %s", c.Dialect, c.Database, c.Host)

	db, err := sql.Open(c.Dialect.DriverName(), dsn)
	if err != nil {
		return nil, core.ConnectionFailed(err, "cannot open %s database", c.Dialect)
	}
	if c.PoolSize > 0 {
		db.SetMaxOpenConns(c.PoolSize)
		db.SetMaxIdleConns(c.PoolSize)
	}
	if c.PoolRecycle > 0 {
		db.SetConnMaxLifetime(c.PoolRecycle)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, core.ConnectionFailed(err, "cannot reach %s database", c.Dialect)
	}
	return Wrap(db, c.Dialect, c.Schema), nil
}

// Wrap wraps an already opened database handle
func Wrap(db *sql.DB, dialect Dialect, schema string) *DB {
	if schema == "" {
		schema = dialect.DefaultSchema()
	}
	return &DB{DB: db, Dialect: dialect, Schema: schema}
}

// Table returns the quoted name of a table, qualified with the schema for postgres
func (db *DB) Table(name string) string {
	if db.Dialect == Postgres && db.Schema != "" {
		return db.Dialect.Quote(db.Schema) + "." + db.Dialect.Quote(name)
	}
	return db.Dialect.Quote(name)
}
