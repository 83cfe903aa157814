package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/nucleus/pm-sync/internal/database"
	"github.com/nucleus/pm-sync/internal/endpoint"
	"github.com/nucleus/pm-sync/internal/logging"
	"github.com/nucleus/pm-sync/internal/validation"
)

const maxBodyBytes = 1 << 20

// Response is the envelope of every API reply.
type Response struct {
	Status    string    `json:"status"`
	Data      any       `json:"data"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	writeResponse(w, status, &Response{Status: "success", Data: data, Timestamp: time.Now().UTC()})
}

func writeResponse(w http.ResponseWriter, status int, resp *Response) {
	body, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Debug().Err(err).Msg("failed to write response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		ev := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			ev = logging.Ctx(r.Context()).Error()
		}
		if principal, ok := Principal(r.Context()); ok {
			ev = ev.Str("principal", principal)
		}
		ev.Err(err).Str("code", code).Str("path", r.URL.Path).Msg("request failed")
	}
	apiErr := &APIError{Code: code, Message: message}
	var verr *validation.Error
	if errors.As(err, &verr) {
		apiErr.Fields = verr.Fields
	}
	writeResponse(w, status, &Response{Status: "error", Error: apiErr, Timestamp: time.Now().UTC()})
}

// respondFailure maps domain errors onto HTTP statuses.
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	var cerr *endpoint.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), err)
	case errors.As(err, &cerr):
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", cerr.Error(), err)
	case errors.Is(err, endpoint.ErrInvalidCredentials):
		respondError(w, r, http.StatusBadRequest, "INVALID_CREDENTIALS", "service credentials were rejected", err)
	case errors.Is(err, endpoint.ErrServiceNotFound):
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "service not found", err)
	case errors.Is(err, endpoint.ErrServiceDisabled):
		respondError(w, r, http.StatusBadRequest, "SERVICE_DISABLED", "service is disabled", err)
	case errors.Is(err, endpoint.ErrClientNotConnected):
		respondError(w, r, http.StatusBadRequest, "NOT_CONNECTED", "service is not connected", err)
	case errors.Is(err, endpoint.ErrUnsupported):
		respondError(w, r, http.StatusBadRequest, "UNSUPPORTED", err.Error(), err)
	case errors.Is(err, endpoint.ErrUnregisteredType):
		respondError(w, r, http.StatusBadRequest, "UNSUPPORTED_SERVICE_TYPE", err.Error(), err)
	case errors.Is(err, database.ErrConflict):
		respondError(w, r, http.StatusConflict, "CONFLICT", "resource already exists", err)
	default:
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", err)
	}
}

func notFound(w http.ResponseWriter, r *http.Request, what string) {
	respondError(w, r, http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

// decodeJSON reads a bounded JSON body into dst and validates it.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &validation.Error{Fields: []validation.FieldError{{Field: "body", Tag: "json", Message: "invalid JSON body: " + err.Error()}}}
	}
	return validation.Struct(dst)
}

// queryInt parses a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def, upper int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if upper > 0 && n > upper {
		return upper
	}
	return n
}
