// Package respond writes JSON bodies and maps domain errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/ingest"
	"catalog_agent/pkg/core/reconcile"
	"catalog_agent/pkg/core/session"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
	Written *int              `json:"written,omitempty"`
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error writes err with the status that matches its kind.
func Error(w http.ResponseWriter, err error) {
	body := ErrorBody{Error: err.Error()}

	var verrs reconcile.ValidationErrors
	if errors.As(err, &verrs) {
		body.Fields = verrs.ByField()
	}
	var partial *reconcile.PartialWriteError
	if errors.As(err, &partial) {
		written := partial.Written
		body.Written = &written
	}

	JSON(w, Status(err), body)
}

// Status maps err to an HTTP status code. Anything unrecognised is treated as
// a failure of the store or the completion service.
func Status(err error) int {
	var partial *reconcile.PartialWriteError
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrInvalidSecret):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrGateDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &partial):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrUnknownProposal):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrDuplicateIdentity):
		return http.StatusConflict
	case errors.As(err, new(reconcile.ValidationErrors)):
		return http.StatusUnprocessableEntity
	case errors.Is(err, catalog.ErrIdentityNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrNotConfirmed):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrUnsupportedKind):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ingest.ErrNoText), errors.Is(err, ingest.ErrUnreadable):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

// BadRequest reports a malformed request body or parameter.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: msg})
}

// MethodNotAllowed rejects an unexpected HTTP method.
func MethodNotAllowed(w http.ResponseWriter) {
	JSON(w, http.StatusMethodNotAllowed, ErrorBody{Error: "method not allowed"})
}
