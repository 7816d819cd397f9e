package app

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/km-arc/go-wiring/framework/container"
	gohttp "github.com/km-arc/go-wiring/framework/http"
)

// Front is the front controller. It picks a handler by the first path
// segment among the members of its handler group; handlers are lazy so
// only the one a request needs is ever built.
type Front struct {
	handlers *container.Group
	log      *zap.Logger
}

func NewFront(handlers *container.Group, log *zap.Logger) *Front {
	if log == nil {
		log = zap.NewNop()
	}
	return &Front{handlers: handlers, log: log}
}

func (f *Front) Handle(req *gohttp.Request) (any, error) {
	name, _, _ := strings.Cut(strings.Trim(req.Path(), "/"), "/")
	if name == "" {
		return map[string]any{"handlers": f.handlers.Names()}, nil
	}

	v, ok := f.handlers.Get(name)
	if !ok {
		return gohttp.Result{
			Status: http.StatusNotFound,
			Data:   map[string]any{"error": "no handler " + name, "handlers": f.handlers.Names()},
		}, nil
	}
	handler, ok := v.(container.Callable)
	if !ok {
		return nil, &container.BadConfigurationError{Service: name, Reason: "handler group members must be callable"}
	}
	f.log.Debug("dispatching", zap.String("handler", name))
	return handler.Call(req)
}
