// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/tablerest/core"
	"github.com/relabs-tech/tablerest/core/backend"
	"github.com/relabs-tech/tablerest/core/client"
	"github.com/relabs-tech/tablerest/core/csql"
)

const northwindDDL = `
CREATE TABLE categories (
	CategoryID INTEGER PRIMARY KEY,
	CategoryName VARCHAR(15) NOT NULL UNIQUE,
	Description TEXT
);
CREATE TABLE products (
	ProductID INTEGER PRIMARY KEY,
	ProductName VARCHAR(40) NOT NULL,
	CategoryID INTEGER REFERENCES categories(CategoryID),
	UnitPrice DECIMAL(10,4) DEFAULT 0,
	Discontinued BOOLEAN NOT NULL DEFAULT 0
);
CREATE TABLE order_details (
	OrderID INTEGER NOT NULL,
	ProductID INTEGER NOT NULL,
	Quantity SMALLINT NOT NULL DEFAULT 1,
	PRIMARY KEY (OrderID, ProductID)
);
`

// TestService holds a backend on a fresh sqlite database
type TestService struct {
	Db       *csql.DB
	Router   *mux.Router
	Backend  *backend.Backend
	Client   client.Client
	Notifier *recordingNotifier
	dir      string
}

// Close closes the database and removes its files
func (s *TestService) Close() {
	s.Db.Close()
	os.RemoveAll(s.dir)
}

type notification struct {
	table     string
	operation core.Operation
	payload   string
}

type recordingNotifier struct {
	mutex         sync.Mutex
	notifications []notification
}

func (n *recordingNotifier) Notify(ctx context.Context, table string, operation core.Operation, payload []byte) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.notifications = append(n.notifications, notification{table, operation, string(payload)})
}

func (n *recordingNotifier) all() []notification {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]notification{}, n.notifications...)
}

// CreateTestService creates a new service that can be used for testing
// It is expected to call Close on the returned object when the object is no longer used
func CreateTestService(ddl string, builder backend.Builder) *TestService {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "tablerest")
	if err != nil {
		panic(err)
	}
	db, err := csql.Open(ctx, csql.Configuration{
		Dialect:  csql.SQLite,
		Database: filepath.Join(dir, "northwind.db"),
	})
	if err != nil {
		panic(err)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		panic(err)
	}

	s := &TestService{
		Db:       db,
		Router:   mux.NewRouter(),
		Notifier: &recordingNotifier{},
		dir:      dir,
	}
	builder.DB = db
	builder.Router = s.Router
	builder.Notifier = s.Notifier
	s.Backend, err = backend.New(ctx, &builder)
	if err != nil {
		panic(err)
	}
	s.Client = client.NewWithRouter(s.Router)
	return s
}
