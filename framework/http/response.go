package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/km-arc/go-wiring/framework/container"
)

// ── Response ─────────────────────────────────────────────────────────────────

// Response wraps http.ResponseWriter with JSON helpers.
type Response struct {
	w http.ResponseWriter
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Raw returns the underlying ResponseWriter.
func (res *Response) Raw() http.ResponseWriter { return res.w }

// Result is what a handler service may return to control the status code.
type Result struct {
	Status int
	Data   any
}

// ── JSON responses ────────────────────────────────────────────────────────────

// JSON sends a JSON response.
//
//	res.JSON(http.StatusOK, map[string]any{"message": "ok"})
func (res *Response) JSON(status int, data any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(data)
}

// Success sends 200 JSON: {"data": v}
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, envelope{"data": v})
}

// Created sends 201 JSON: {"data": v}
func (res *Response) Created(v any) {
	res.JSON(http.StatusCreated, envelope{"data": v})
}

// NoContent sends 204 with no body.
func (res *Response) NoContent() {
	res.w.WriteHeader(http.StatusNoContent)
}

// Error sends a JSON error response.
//
//	res.Error(http.StatusNotFound, "Resource not found")
func (res *Response) Error(status int, message string) {
	res.JSON(status, envelope{"message": message})
}

// NotFound sends 404.
func (res *Response) NotFound(message ...string) {
	res.Error(http.StatusNotFound, first(message, "Not found."))
}

// ServerError sends 500.
func (res *Response) ServerError(message ...string) {
	res.Error(http.StatusInternalServerError, first(message, "Server Error."))
}

// Render writes whatever a handler service returned: nothing becomes 204,
// a Result keeps its status, bytes and strings are sent as they are and
// anything else is wrapped as {"data": v}.
func (res *Response) Render(v any) {
	switch out := v.(type) {
	case nil:
		res.NoContent()
	case Result:
		if out.Data == nil {
			res.w.WriteHeader(out.Status)
			return
		}
		res.JSON(out.Status, envelope{"data": out.Data})
	case *Result:
		res.Render(*out)
	case []byte:
		res.w.WriteHeader(http.StatusOK)
		_, _ = res.w.Write(out)
	case string:
		res.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		res.w.WriteHeader(http.StatusOK)
		_, _ = res.w.Write([]byte(out))
	default:
		if container.IsAbsent(v) {
			res.NoContent()
			return
		}
		res.Success(v)
	}
}

// Fail maps an error to a status. Unknown services are 404; every other
// resolution failure is a server error. The message is only exposed when
// debug is true.
func (res *Response) Fail(err error, debug bool) {
	status := StatusOf(err)
	message := http.StatusText(status)
	if debug {
		message = err.Error()
	}
	res.Error(status, message)
}

// StatusOf returns the HTTP status for a resolution error. An oversized
// request body is 413.
func StatusOf(err error) int {
	if errors.Is(err, ErrBodyTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	var missing *container.MissingDependencyError
	var build *container.BuildError
	if errors.As(err, &missing) && !errors.As(err, &build) {
		// Only the requested service itself is unknown; a missing
		// dependency of a declared service is a server error.
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
