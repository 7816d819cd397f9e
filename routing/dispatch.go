package routing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/km-arc/go-wiring/framework/container"
	gohttp "github.com/km-arc/go-wiring/framework/http"
)

type ctxKey struct{}

// ContainerFactory builds the container that serves one request.
type ContainerFactory func(r *http.Request) (*container.Container, error)

// Handler is a service that answers requests. Its result is rendered with
// gohttp.Response.Render.
type Handler interface {
	Handle(req *gohttp.Request) (any, error)
}

// Containers builds a fresh container per request and stores it in the
// request context. Nothing built for one request is visible to another.
func Containers(factory ContainerFactory, debug bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := factory(r)
			if err != nil {
				gohttp.NewResponse(w).Fail(err, debug)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithContainer(r.Context(), c)))
		})
	}
}

// WithContainer returns ctx carrying c.
func WithContainer(ctx context.Context, c *container.Container) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the request's container.
func FromContext(ctx context.Context) (*container.Container, bool) {
	c, ok := ctx.Value(ctxKey{}).(*container.Container)
	return c, ok
}

// Service returns a handler that resolves ref (for example "@front" or
// "@front::handle") in the request's container and lets it answer.
//
// The resolved value may be an http.Handler, a Handler, or a callable that
// takes the request wrapper.
func Service(ref string, debug bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := gohttp.NewResponse(w)
		c, ok := FromContext(r.Context())
		if !ok {
			res.ServerError("no container for this request")
			return
		}
		target, err := c.Resolve(ref)
		if err != nil {
			res.Fail(err, debug)
			return
		}

		switch h := target.(type) {
		case http.Handler:
			h.ServeHTTP(w, r)
			return
		case Handler:
			out, err := h.Handle(requestOf(c, r))
			respond(res, out, err, debug)
			return
		}
		fn, ok := target.(container.Callable)
		if !ok {
			res.Fail(fmt.Errorf("%s resolved to %T which cannot handle requests", ref, target), debug)
			return
		}
		out, err := fn.Call(requestOf(c, r))
		respond(res, out, err, debug)
	}
}

// Dispatch mounts Service(ref) on pattern for every method.
func (r *Router) Dispatch(pattern, ref string, debug bool) {
	r.mux.Handle(pattern, Service(ref, debug))
}

// requestOf reuses the wrapper stored as $request so the buffered body is
// shared with services that received it as an argument.
func requestOf(c *container.Container, r *http.Request) *gohttp.Request {
	if v, err := c.GetVariable(gohttp.VarRequest); err == nil {
		if req, ok := v.(*gohttp.Request); ok {
			return req
		}
	}
	return gohttp.NewRequest(r)
}

func respond(res *gohttp.Response, out any, err error, debug bool) {
	if err != nil {
		res.Fail(err, debug)
		return
	}
	res.Render(out)
}
