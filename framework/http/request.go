package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// MaxBodySize is the largest body a Request buffers by default.
const MaxBodySize = 32 << 20 // 32 MB

// ErrBodyTooLarge is returned when a body exceeds the buffering limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Runtime variable names filled from every request.
const (
	VarRequest = "request"
	VarBody    = "body"
	VarQuery   = "query"
	VarPost    = "post"
	VarServer  = "server"
	VarHeaders = "headers"
	VarCookies = "cookies"
	VarRoute   = "route"
)

// Request wraps *http.Request with input helpers and keeps the body
// readable more than once.
type Request struct {
	raw   *http.Request
	body  []byte
	err   error
	read  bool
	limit int64
}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r, limit: MaxBodySize}
}

// LimitBody sets the largest body Body will buffer. It has no effect once
// the body has been read.
func (req *Request) LimitBody(n int64) *Request {
	req.limit = n
	return req
}

// Raw returns the underlying *http.Request.
func (req *Request) Raw() *http.Request { return req.raw }

// Body returns the raw request body. The body is buffered on first use and
// the underlying reader is reset so later readers still see it.
//
// A body larger than the limit is never truncated: Body fails with
// ErrBodyTooLarge, every later call fails the same way.
func (req *Request) Body() ([]byte, error) {
	if req.read {
		return req.body, req.err
	}
	req.read = true
	if req.raw.Body == nil {
		return nil, nil
	}
	defer req.raw.Body.Close()
	body, err := io.ReadAll(io.LimitReader(req.raw.Body, req.limit+1))
	if err == nil && int64(len(body)) > req.limit {
		err = fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, req.limit)
	}
	if err != nil {
		req.err = err
		return nil, err
	}
	req.body = body
	req.raw.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// Variables returns the runtime variables a container built for this
// request starts with.
//
//	vars, err := gohttp.NewRequest(r).Variables()
//	c, err := container.New(reg, descriptors, vars)
func (req *Request) Variables() (map[string]any, error) {
	body, err := req.Body()
	if err != nil {
		return nil, err
	}
	post := map[string]string{}
	if !strings.Contains(req.ContentType(), "application/json") {
		post = req.Post()
	}
	return map[string]any{
		VarRequest: req,
		VarBody:    string(body),
		VarQuery:   flatten(req.raw.URL.Query()),
		VarPost:    post,
		VarServer:  req.Server(),
		VarHeaders: req.Headers(),
		VarCookies: req.Cookies(),
		VarRoute:   req.RouteParams(),
	}, nil
}

// ── Binding ──────────────────────────────────────────────────────────────────

// Bind decodes the request body into v.
// Supports JSON and application/x-www-form-urlencoded.
func (req *Request) Bind(v any) error {
	if strings.Contains(req.ContentType(), "application/json") {
		body, err := req.Body()
		if err != nil {
			return err
		}
		if len(body) == 0 {
			return errors.New("empty request body")
		}
		return json.Unmarshal(body, v)
	}
	return bindForm(req.Post(), v)
}

// bindForm maps form values onto a struct through its json tags.
func bindForm(values map[string]string, v any) error {
	b, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ── Input helpers ────────────────────────────────────────────────────────────

// Input returns a single input value (query string OR post body).
func (req *Request) Input(key string, fallback ...string) string {
	if v, ok := req.Post()[key]; ok && v != "" {
		return v
	}
	return req.Query(key, fallback...)
}

// Query returns a query-string value.
func (req *Request) Query(key string, fallback ...string) string {
	v := req.raw.URL.Query().Get(key)
	if v == "" && len(fallback) > 0 {
		return fallback[0]
	}
	return v
}

// Post returns the url-encoded form body as a flat map.
func (req *Request) Post() map[string]string {
	body, err := req.Body()
	if err != nil || !strings.Contains(req.ContentType(), "application/x-www-form-urlencoded") {
		return map[string]string{}
	}
	r := req.raw.Clone(req.raw.Context())
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.Form, r.PostForm = nil, nil
	if err := r.ParseForm(); err != nil {
		return map[string]string{}
	}
	return flatten(r.PostForm)
}

// All returns all input as a flat map (query + post).
func (req *Request) All() map[string]string {
	out := flatten(req.raw.URL.Query())
	maps.Copy(out, req.Post())
	return out
}

// Has returns true if the key is present and non-empty.
func (req *Request) Has(key string) bool {
	return req.Input(key) != ""
}

// RouteParam returns a URL route parameter (chi).
func (req *Request) RouteParam(key string) string {
	return chi.URLParam(req.raw, key)
}

// RouteParams returns every matched chi URL parameter.
func (req *Request) RouteParams() map[string]string {
	out := map[string]string{}
	rctx := chi.RouteContext(req.raw.Context())
	if rctx == nil {
		return out
	}
	for i, key := range rctx.URLParams.Keys {
		if key == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		out[key] = rctx.URLParams.Values[i]
	}
	return out
}

// Header returns a request header value.
func (req *Request) Header(key string) string {
	return req.raw.Header.Get(key)
}

// Headers returns the first value of every header, keyed canonically.
func (req *Request) Headers() map[string]string {
	return flatten(req.raw.Header)
}

// Cookies returns every cookie value by name.
func (req *Request) Cookies() map[string]string {
	out := map[string]string{}
	for _, c := range req.raw.Cookies() {
		out[c.Name] = c.Value
	}
	return out
}

// Server describes the request line and the connection.
func (req *Request) Server() map[string]any {
	return map[string]any{
		"method":      req.raw.Method,
		"path":        req.raw.URL.Path,
		"uri":         req.raw.RequestURI,
		"host":        req.raw.Host,
		"proto":       req.raw.Proto,
		"remote_addr": req.raw.RemoteAddr,
	}
}

// BearerToken extracts the token from Authorization: Bearer <token>.
func (req *Request) BearerToken() string {
	auth := req.raw.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// IP returns the client IP (respects RealIP middleware).
func (req *Request) IP() string {
	return req.raw.RemoteAddr
}

// Method returns the HTTP method.
func (req *Request) Method() string { return req.raw.Method }

// Path returns the URL path.
func (req *Request) Path() string { return req.raw.URL.Path }

// ContentType returns the Content-Type header value.
func (req *Request) ContentType() string {
	return req.raw.Header.Get("Content-Type")
}

// IsJSON returns true when the request expects a JSON response.
func (req *Request) IsJSON() bool {
	return strings.Contains(req.raw.Header.Get("Accept"), "application/json") ||
		strings.Contains(req.ContentType(), "application/json")
}

func flatten(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
