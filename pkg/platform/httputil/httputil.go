// Package httputil holds the JSON helpers shared by all HTTP handlers.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	derrors "warden/pkg/domain-errors"
)

// errorResponse is the wire shape for all error replies.
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

var codeStatus = map[derrors.Code]int{
	derrors.CodeBadRequest:   http.StatusBadRequest,
	derrors.CodeInvalidInput: http.StatusBadRequest,
	derrors.CodeUnauthorized: http.StatusUnauthorized,
	derrors.CodeForbidden:    http.StatusForbidden,
	derrors.CodeNotFound:     http.StatusNotFound,
	derrors.CodeConflict:     http.StatusConflict,
	derrors.CodeInternal:     http.StatusInternalServerError,
	derrors.CodeUnavailable:  http.StatusServiceUnavailable,
}

// WriteError renders a domain error as JSON. Internal errors keep their
// detail out of the response body; everything else carries its message so
// callers can act on it.
func WriteError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := errorResponse{Error: string(code)}
	if status < http.StatusInternalServerError {
		resp.Description = derrors.MessageOf(err)
	}

	WriteJSON(w, status, resp)
}

// WriteJSON renders v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeAndPrepare decodes the request body into T and writes a bad_request
// response on failure. The bool result reports whether the handler should
// continue.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "failed to decode request body",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed JSON body"))
		var zero T
		return zero, false
	}
	return req, true
}
