// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/tablerest/core"
	"github.com/relabs-tech/tablerest/core/crud"
	"github.com/relabs-tech/tablerest/core/envelope"
	"github.com/relabs-tech/tablerest/core/logger"
)

// RootMessage is the message of the root route
const RootMessage = "Table REST API is running"

var (
	// Version is the version of the current build
	Version = "unset"
)

func (b *Backend) version(w http.ResponseWriter, r *http.Request) {
	b.respond(w, r, http.StatusOK, envelope.Success("Version", map[string]string{"version": Version}))
}

func (b *Backend) root(w http.ResponseWriter, r *http.Request) {
	b.respond(w, r, http.StatusOK, envelope.Success(RootMessage, map[string]interface{}{
		"version": Version,
		"tables":  b.catalog.Names(),
	}))
}

func (b *Backend) listTables(w http.ResponseWriter, r *http.Request) {
	names := b.catalog.Names()
	b.respond(w, r, http.StatusOK, envelope.Success(fmt.Sprintf("Found %d tables", len(names)),
		map[string]interface{}{"tables": names}))
}

func (b *Backend) tableSchema(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["table"]
	table, ok := b.catalog.Lookup(name)
	if !ok {
		b.fail(w, r, core.OperationRead, core.NotFound("Table '%s' not found", name))
		return
	}
	b.respond(w, r, http.StatusOK, envelope.Success("Schema for table '"+name+"'", table))
}

func (b *Backend) list(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	skip, limit := 0, b.dispatcher.DefaultLimit()
	for key, value := range r.URL.Query() {
		if len(value) != 1 {
			b.fail(w, r, core.OperationList, core.Validation("parameter '%s' must be given once", key))
			return
		}
		var err error
		switch key {
		case "skip":
			skip, err = strconv.Atoi(value[0])
		case "limit":
			limit, err = strconv.Atoi(value[0])
		default:
			continue
		}
		if err != nil {
			b.fail(w, r, core.OperationList, core.Validation("parameter '%s' must be an integer", key))
			return
		}
	}

	page, err := b.dispatcher.List(r.Context(), table, skip, limit)
	if err != nil {
		b.fail(w, r, core.OperationList, err)
		return
	}
	b.respond(w, r, http.StatusOK, envelope.Success(fmt.Sprintf("Retrieved %d records from %s", len(page.Items), table), page))
}

func (b *Backend) read(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	row, err := b.dispatcher.Get(r.Context(), vars["table"], vars["id"])
	if err != nil {
		b.fail(w, r, core.OperationRead, err)
		return
	}
	b.respond(w, r, http.StatusOK, envelope.Success("Record retrieved", row))
}

func (b *Backend) create(w http.ResponseWriter, r *http.Request) {
	payload, err := readPayload(r)
	if err != nil {
		b.fail(w, r, core.OperationCreate, err)
		return
	}
	row, err := b.dispatcher.Create(r.Context(), mux.Vars(r)["table"], payload)
	if err != nil {
		b.fail(w, r, core.OperationCreate, err)
		return
	}
	b.respond(w, r, http.StatusCreated, envelope.Success("Record created", row))
}

func (b *Backend) update(w http.ResponseWriter, r *http.Request) {
	payload, err := readPayload(r)
	if err != nil {
		b.fail(w, r, core.OperationUpdate, err)
		return
	}
	vars := mux.Vars(r)
	row, err := b.dispatcher.Update(r.Context(), vars["table"], vars["id"], payload)
	if err != nil {
		b.fail(w, r, core.OperationUpdate, err)
		return
	}
	b.respond(w, r, http.StatusOK, envelope.Success("Record updated", row))
}

func (b *Backend) delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := b.dispatcher.Delete(r.Context(), vars["table"], vars["id"]); err != nil {
		b.fail(w, r, core.OperationDelete, err)
		return
	}
	b.respond(w, r, http.StatusOK, envelope.Success("Record deleted", nil))
}

func (b *Backend) notFound(w http.ResponseWriter, r *http.Request) {
	b.fail(w, r, core.OperationRead, core.NotFound("no route for %s %s", r.Method, r.URL.Path))
}

func (b *Backend) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	b.respond(w, r, http.StatusMethodNotAllowed, envelope.Envelope{
		Message: "method not allowed",
		Error:   fmt.Sprintf("method %s is not allowed on %s", r.Method, r.URL.Path),
	})
}

func readPayload(r *http.Request) (map[string]interface{}, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, core.Validation("cannot read request body: %s", err.Error())
	}
	return crud.DecodePayload(body)
}

// fail responds with the failure envelope of err. Server side failures are logged.
func (b *Backend) fail(w http.ResponseWriter, r *http.Request, operation core.Operation, err error) {
	rlog := logger.FromContext(r.Context())
	status := envelope.Status(err)
	if status >= http.StatusInternalServerError {
		rlog.WithError(err).Errorf("Error 4702: %s failed on %s", operation, r.URL.Path)
	} else {
		rlog.Debugf("%s rejected on %s: %s", operation, r.URL.Path, err.Error())
	}
	b.respond(w, r, status, envelope.Failure(err))
}

func (b *Backend) respond(w http.ResponseWriter, r *http.Request, status int, e envelope.Envelope) {
	jsonData, err := json.MarshalWithOption(e, json.DisableHTMLEscape())
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4703: cannot marshal response")
		http.Error(w, "Error 4703", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}
