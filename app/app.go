// Package app holds the application's own services and registers them in
// the type registry the descriptors in config/services.yaml refer to.
package app

import (
	"strings"

	"github.com/km-arc/go-wiring/framework/container"
)

// Register fills reg with every type and function of the application.
func Register(reg *container.Registry) error {
	for name, ctor := range map[string]any{
		"Front":     NewFront,
		"Greeter":   NewGreeter,
		"Echo":      NewEcho,
		"Inspector": NewInspector,
		"Audit":     NewAudit,
	} {
		if err := reg.RegisterConstructor(name, ctor); err != nil {
			return err
		}
	}
	return reg.RegisterFunc("trim", Trim)
}

// Trim is an argument filter: it trims surrounding whitespace from every
// string argument.
func Trim(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		if s, ok := arg.(string); ok {
			arg = strings.TrimSpace(s)
		}
		out[i] = arg
	}
	return out
}
