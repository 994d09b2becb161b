// Package envelope wraps every api response in the same JSON shape.
//
//	{"success": true, "message": "...", "data": ...}
//	{"success": false, "message": "...", "error": "..."}
package envelope

import (
	"errors"
	"net/http"

	"github.com/relabs-tech/tablerest/core"
)

// Envelope is the body of every api response
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success returns a successful envelope
func Success(message string, data interface{}) Envelope {
	return Envelope{Success: true, Message: message, Data: data}
}

// Failure returns the envelope for err. Messages of internal errors are not
// passed on to clients.
func Failure(err error) Envelope {
	kind := core.KindOf(err)
	e := Envelope{Success: false, Message: message(kind), Error: "internal server error"}
	var coreErr *core.Error
	if kind != core.KindInternal && errors.As(err, &coreErr) {
		e.Error = coreErr.Message
	}
	return e
}

func message(kind core.Kind) string {
	switch kind {
	case core.KindNotFound:
		return "not found"
	case core.KindValidation:
		return "validation failed"
	case core.KindConflict:
		return "conflict"
	case core.KindConnection:
		return "database unavailable"
	}
	return "request failed"
}

// Status returns the http status code for err
func Status(err error) int {
	switch core.KindOf(err) {
	case "":
		return http.StatusOK
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindConflict:
		return http.StatusConflict
	case core.KindConnection:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
