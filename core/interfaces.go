package core

import "context"

// Notifier is an interface to receive table change notifications.
//
// Notify is called after the transaction of a create, update or delete
// operation has been committed. payload is the JSON of the affected row; for
// delete it only carries the primary key.
type Notifier interface {
	Notify(ctx context.Context, table string, operation Operation, payload []byte)
}
