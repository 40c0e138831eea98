// Package handlers provides HTTP request handlers for the agent endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/project"
	"github.com/demos-sh/demos/validation"
)

// ErrInvalidPort means the port form field is missing or not a TCP port number.
var ErrInvalidPort = errors.New("invalid port")

const keyFileName = "id_ed25519"

// ErrorResponse is the body of every failed agent request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SuccessResponse is the body of agent requests that return no data.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// GetConnectionInfo leases a port for the project's agent and returns it
// with the OS account to forward through.
func GetConnectionInfo(w http.ResponseWriter, r *http.Request) {
	domainName := r.FormValue("domain")

	info, err := app.GetProjectService().ConnectionInfo(r.Context(), domainName)
	if err != nil {
		WriteError(w, "get_connection_info", err, "domain", domainName)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// GetKeyFile returns a short-lived private key for the project owner's account.
func GetKeyFile(w http.ResponseWriter, r *http.Request) {
	domainName := r.FormValue("domain")

	key, err := app.GetProjectService().KeyFile(r.Context(), domainName, r.FormValue("secret_key"))
	if err != nil {
		WriteError(w, "get_key_file", err, "domain", domainName)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+keyFileName+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(key); err != nil {
		LogOperationError("get_key_file_write", "handlers", err, "domain", domainName)
	}
}

// Connect switches the project's vhost to proxy to the leased port.
func Connect(w http.ResponseWriter, r *http.Request) {
	domainName := r.FormValue("domain")

	port, err := ParsePort(r.FormValue("port"))
	if err != nil {
		WriteError(w, "connect", err, "domain", domainName)
		return
	}

	if err := app.GetProjectService().Connect(r.Context(), domainName, r.FormValue("secret_key"), port); err != nil {
		WriteError(w, "connect", err, "domain", domainName, "port", port)
		return
	}
	WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Disconnect puts the project back on its placeholder page.
func Disconnect(w http.ResponseWriter, r *http.Request) {
	domainName := r.FormValue("domain")

	if err := app.GetProjectService().Disconnect(r.Context(), domainName, r.FormValue("secret_key")); err != nil {
		WriteError(w, "disconnect", err, "domain", domainName)
		return
	}
	WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// KeepAlive extends the project's connection.
func KeepAlive(w http.ResponseWriter, r *http.Request) {
	domainName := r.FormValue("domain")

	if err := app.GetProjectService().KeepAlive(r.Context(), domainName); err != nil {
		WriteError(w, "keep_alive", err, "domain", domainName)
		return
	}
	WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Health reports that the process is serving requests.
func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		LogOperationError("health_check", "handlers", err)
	}
}

// NotFound answers unknown paths and methods the way a missing project is answered.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
}

// ParsePort parses a TCP port number from a form value.
func ParsePort(v string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || port < 1 || port > 65535 {
		return 0, ErrInvalidPort
	}
	return port, nil
}

// StatusForError maps service errors to HTTP status codes.
func StatusForError(err error) int {
	var verr *validation.ValidationError
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPortNotLeased), errors.Is(err, domain.ErrNoSSHAccount):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPortsExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidPort), errors.As(err, &verr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError logs err and writes the matching status and error body.
func WriteError(w http.ResponseWriter, operation string, err error, fields ...any) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		LogOperationError(operation, "handlers", err, fields...)
	} else {
		args := []any{"layer", "handlers", "operation", operation, "status", status, "error", err}
		slog.Debug("Request rejected", append(args, fields...)...)
	}

	message := project.FormatErrorForUser(err)
	if errors.Is(err, ErrInvalidPort) {
		message = ErrInvalidPort.Error()
	}
	WriteJSON(w, status, ErrorResponse{Success: false, Error: message})
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		LogOperationError("write_json", "handlers", err)
	}
}

// LogOperationError logs errors with consistent structure
func LogOperationError(operation, layer string, err error, fields ...any) {
	args := []any{"layer", layer, "operation", operation, "error", err}
	args = append(args, fields...)
	slog.Error("Operation failed", args...)
}

// WithFormParsing middleware parses form data before calling the next handler
func WithFormParsing(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			LogOperationError("parse_form", "handlers", err)
			WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "malformed form body"})
			return
		}
		next(w, r)
	}
}
