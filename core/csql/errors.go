package csql

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/relabs-tech/tablerest/core"
)

// ClassifyError maps a driver error to an error kind. Errors the drivers do not
// attribute to the client's data are core.KindInternal.
func ClassifyError(err error) core.Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.KindNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23503": // unique_violation, foreign_key_violation
			return core.KindConflict
		case "23502", "23514": // not_null_violation, check_violation
			return core.KindValidation
		}
		if pqErr.Code.Class() == "22" { // data exception, e.g. invalid_text_representation
			return core.KindValidation
		}
		return core.KindInternal
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062, 1451, 1452: // duplicate entry, row is referenced, no referenced row
			return core.KindConflict
		case 1048, 1264, 1292, 1366, 1406: // null, out of range, bad date, bad value, too long
			return core.KindValidation
		}
		return core.KindInternal
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return core.KindConflict
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL, sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_MISMATCH:
			return core.KindValidation
		}
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return core.KindConflict
		}
		return core.KindInternal
	}

	return core.KindInternal
}

// DriverMessage returns the message of a driver error without driver prefixes
func DriverMessage(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Message
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Message
	}
	return err.Error()
}
