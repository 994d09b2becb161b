package crud

import (
	"context"
	"database/sql"

	"github.com/relabs-tech/tablerest/core"
	"github.com/relabs-tech/tablerest/core/csql"
	"github.com/relabs-tech/tablerest/core/logger"
)

// withTx runs fn in a transaction. The transaction is committed if fn returns nil,
// and rolled back otherwise, also when fn panics.
func (d *Dispatcher) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	rlog := logger.FromContext(ctx)
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		rlog.WithError(err).Errorf("Error 4801: cannot BeginTx")
		return core.ConnectionFailed(err, "cannot begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
				rlog.WithError(err).Errorf("Error 4802: cannot Rollback")
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		rlog.WithError(err).Errorf("Error 4803: cannot Commit")
		return d.dbError(ctx, err, "", "COMMIT")
	}
	committed = true
	return nil
}

// dbError classifies a driver error. Errors which are not the client's fault are logged.
func (d *Dispatcher) dbError(ctx context.Context, err error, table, query string) error {
	switch csql.ClassifyError(err) {
	case core.KindNotFound:
		return core.NotFound("Record not found in '%s'", table)
	case core.KindConflict:
		return core.Conflict(err, "record conflicts with existing data in '%s': %s", table, csql.DriverMessage(err))
	case core.KindValidation:
		return core.Validation("record rejected by table '%s': %s", table, csql.DriverMessage(err))
	}
	if ctx.Err() != nil {
		return core.Internal(err, "request cancelled")
	}
	logger.FromContext(ctx).WithError(err).Errorf("Error 4804: cannot execute query `%s`", query)
	return core.Internal(err, "database operation failed")
}
