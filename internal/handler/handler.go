package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"foodorder/internal/middleware"
	"foodorder/internal/model"

	"github.com/rs/zerolog"
)

// statusByCode maps domain error codes to HTTP status codes.
var statusByCode = map[string]int{
	model.ErrCodeInvalidJSON:          http.StatusBadRequest,
	model.ErrCodeMissingField:         http.StatusBadRequest,
	model.ErrCodeInvalidParameter:     http.StatusBadRequest,
	model.ErrCodeInvalidQuantity:      http.StatusBadRequest,
	model.ErrCodeEmptyCart:            http.StatusBadRequest,
	model.ErrCodeItemNotAvailable:     http.StatusBadRequest,
	model.ErrCodeOrderPersistFailure:  http.StatusServiceUnavailable,
	model.ErrCodeDataStoreUnavailable: http.StatusServiceUnavailable,
	model.ErrCodeInvalidTransition:    http.StatusConflict,
	model.ErrCodeAlreadyAssigned:      http.StatusConflict,
	model.ErrCodeNotFound:             http.StatusNotFound,
	model.ErrCodeUnauthorised:         http.StatusUnauthorized,
	model.ErrCodeForbidden:            http.StatusForbidden,
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code, code and message.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, logger zerolog.Logger) {
	correlationID := middleware.CorrelationIDFromContext(r.Context())

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("code", code).
		Int("status", status).
		Str("correlation_id", correlationID).
		Msg(message)

	writeJSON(w, status, model.ErrorResponse{
		Error:         code,
		Message:       message,
		CorrelationID: correlationID,
	})
}

// writeServiceError translates an error returned by a service into a
// response. Anything that is not a domain error is reported as a 500
// without its details.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		status, ok := statusByCode[domainErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		if domainErr.Err != nil {
			logger.Debug().Err(domainErr.Err).Str("code", domainErr.Code).Msg("domain error cause")
		}
		writeError(w, r, status, domainErr.Code, domainErr.Message, logger)
		return
	}

	logger.Error().Err(err).Str("path", r.URL.Path).Msg("unexpected service error")
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
}

// decodeJSON decodes the request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return model.ErrInvalidJSON.Wrap(err)
	}
	return nil
}

// principal returns the authenticated caller. Routes are mounted behind the
// authentication middleware, so a missing principal is a wiring bug that is
// answered with 401.
func principal(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) (model.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, model.ErrUnauthorised, logger)
	}
	return p, ok
}
