package web

// errors.go turns handler errors into responses.
//
// The technical error is logged with the request ID; the client receives the
// mapped user message from importer.MapError as JSON, or as an HTML fragment
// for HTMX requests.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/JonMunkholm/boardimport/internal/importer"
	"github.com/JonMunkholm/boardimport/internal/logging"
	"github.com/JonMunkholm/boardimport/internal/web/templates"
	"github.com/go-playground/validator/v10"
)

var (
	errFileTooLarge = errors.New("file too large")
	errNoInput      = errors.New("no import data provided")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	switch {
	case errors.Is(err, importer.ErrRunNotFound), errors.Is(err, board.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, importer.ErrNotCancellable), errors.Is(err, board.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrUnknownFormat),
		errors.Is(err, importer.ErrUnrecognizedJSON),
		errors.Is(err, importer.ErrNoDefaultColumn),
		errors.Is(err, errNoInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	if strings.Contains(strings.ToLower(err.Error()), "export:") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := importer.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
		return
	}

	writeJSONStatus(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondBadRequest reports malformed input. Validation errors are listed
// per field.
func respondBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{
		Error:   "invalid request",
		Message: err.Error(),
		Code:    "REQ001",
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Message = "Some fields are missing or invalid"
		resp.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			resp.Fields[fe.Field()] = fe.Tag()
		}
	}

	logging.FromContext(r.Context()).Warn("bad request", "path", r.URL.Path, "error", err.Error())

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_ = templates.ErrorAlert(resp.Message, "Check the form and try again", resp.Code).Render(r.Context(), w)
		return
	}
	writeJSONStatus(w, http.StatusBadRequest, resp)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
