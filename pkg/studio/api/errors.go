package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-studio/pkg/studio"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Issues    []studio.Issue `json:"issues,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// statusFor maps an error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, studio.ErrCollectionNotFound),
		errors.Is(err, studio.ErrEntryNotFound),
		errors.Is(err, studio.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, studio.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, studio.ErrMethodNotImplemented):
		return http.StatusNotImplemented, "not_implemented"
	case errors.Is(err, studio.ErrDuplicateSlug):
		return http.StatusConflict, "duplicate_slug"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	body := ErrorBody{Code: code, Message: err.Error(), RequestID: RequestID(r.Context())}

	var verr *studio.ValidationError
	if errors.As(err, &verr) {
		body.Issues = verr.Issues
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed", "path", r.URL.Path, "status", status, "error", err)

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: body})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{
		Code:      "bad_request",
		Message:   message,
		RequestID: RequestID(r.Context()),
	}})
}
