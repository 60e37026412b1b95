package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/pavkata12/app/internal/ledger"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps ledger errors to HTTP status codes and stable error codes
func statusFor(err error) (int, string) {
	switch {
	case ledger.IsNotFoundError(err):
		return http.StatusNotFound, "not_found"
	case ledger.IsConflictError(err):
		return http.StatusConflict, "conflict"
	case ledger.IsDuplicateError(err):
		return http.StatusConflict, "duplicate"
	case ledger.IsInvalidStateError(err):
		return http.StatusConflict, "invalid_state"
	case ledger.IsOverpaymentError(err):
		return http.StatusUnprocessableEntity, "overpayment"
	case ledger.IsValidationError(err):
		return http.StatusBadRequest, "invalid_argument"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// decodeJSON reads a JSON body into v. An empty body is accepted when optional is set.
func decodeJSON(r *http.Request, v interface{}, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return &ledger.ValidationError{Field: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ledger.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not a valid id", raw)}
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ledger.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a valid id", raw)}
	}
	return id, nil
}
