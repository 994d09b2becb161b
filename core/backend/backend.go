// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/relabs-tech/tablerest/core"
	"github.com/relabs-tech/tablerest/core/catalog"
	"github.com/relabs-tech/tablerest/core/crud"
	"github.com/relabs-tech/tablerest/core/csql"
	"github.com/relabs-tech/tablerest/core/logger"
)

// Backend is the generic table rest backend
type Backend struct {
	db         *csql.DB
	router     *mux.Router
	catalog    *catalog.Catalog
	dispatcher *crud.Dispatcher
	corsOrigin string
}

// Builder is a builder helper for the Backend
type Builder struct {
	// DB is the database. This is mandatory.
	DB *csql.DB
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Catalog is the reflected schema of DB. If nil, it is loaded from DB. This is optional.
	Catalog *catalog.Catalog
	// Notifier receives all committed changes. This is optional.
	Notifier core.Notifier
	// DefaultLimit is the page size of list requests without limit, 10 if unset. This is optional.
	DefaultLimit int
	// MaxLimit is the largest page size, 100 if unset. This is optional.
	MaxLimit int
	// CORSOrigin is the allowed origin of cross origin requests, "*" if unset. This is optional.
	CORSOrigin string
}

// New realizes the actual backend. It reflects the database schema, unless a catalog
// is provided, and adds the routes to the router.
//
// Errors are core.KindConnection if the database is unreachable, or core.KindSchema
// if there are no usable tables. Both are fatal, the backend must not serve traffic.
func New(ctx context.Context, bb *Builder) (*Backend, error) {
	if bb.DB == nil {
		panic("DB is missing")
	}
	if bb.Router == nil {
		panic("Router is missing")
	}

	cat := bb.Catalog
	if cat == nil {
		var err error
		cat, err = catalog.Load(ctx, bb.DB)
		if err != nil {
			return nil, err
		}
	}

	dispatcher, err := crud.New(bb.DB, cat, crud.Configuration{
		DefaultLimit: bb.DefaultLimit,
		MaxLimit:     bb.MaxLimit,
		Notifier:     bb.Notifier,
	})
	if err != nil {
		return nil, err
	}

	b := &Backend{
		db:         bb.DB,
		router:     bb.Router,
		catalog:    cat,
		dispatcher: dispatcher,
		corsOrigin: bb.CORSOrigin,
	}
	if b.corsOrigin == "" {
		b.corsOrigin = "*"
	}

	b.handleRecovery()
	logger.AddRequestID(b.router)
	b.handleCORS()
	b.handleCompression()
	b.handleRoutes(b.router)
	return b, nil
}

// Catalog returns the reflected schema
func (b *Backend) Catalog() *catalog.Catalog {
	return b.catalog
}

// Dispatcher returns the table operations behind the routes
func (b *Backend) Dispatcher() *crud.Dispatcher {
	return b.dispatcher
}

// Router returns the router of the backend
func (b *Backend) Router() *mux.Router {
	return b.router
}

func (b *Backend) handleRoutes(router *mux.Router) {
	nillog := logger.FromContext(nil)
	nillog.Debugln("backend: handle routes")

	router.HandleFunc("/", b.root).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/version", b.version).Methods(http.MethodOptions, http.MethodGet)

	// the tables routes must come first, they would match the generic table routes otherwise
	router.HandleFunc("/api/tables", b.listTables).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/api/tables/{table}/schema", b.tableSchema).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc("/api/{table}", b.list).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/api/{table}", b.create).Methods(http.MethodOptions, http.MethodPost)
	router.HandleFunc("/api/{table}/{id}", b.read).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/api/{table}/{id}", b.update).Methods(http.MethodOptions, http.MethodPut)
	router.HandleFunc("/api/{table}/{id}", b.delete).Methods(http.MethodOptions, http.MethodDelete)

	router.NotFoundHandler = http.HandlerFunc(b.notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(b.methodNotAllowed)

	for _, name := range b.catalog.Names() {
		nillog.Debugf("  handle table routes: /api/%s GET,POST and /api/%s/{id} GET,PUT,DELETE", name, name)
	}
}
