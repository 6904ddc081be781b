package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
	"github.com/jocelyn-stericker/satie-sub004/pkg/observability"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("json encode failed", "err", err)
	}
}

type errResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func errorBody(err error) errResponse {
	return errResponse{Error: errors.UserMessage(err), Code: string(errors.GetCode(err))}
}

// statusFor maps an error to an HTTP status by its code.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeDivisionOverflow, errors.ErrCodeFixupLoop, errors.ErrCodeMissingElement:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeUnsupported, errors.ErrCodeMissingCapability:
		return http.StatusNotImplemented
	}
	if errors.IsInput(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observability.HTTP().OnError(r.Context(), r.Method, routePattern(r), err)
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	s.writeJSON(w, status, errorBody(err))
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
