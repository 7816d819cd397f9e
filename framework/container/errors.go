package container

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrBadConfiguration   = errors.New("bad configuration")
	ErrMissingType        = errors.New("missing type")
	ErrMissingDependency  = errors.New("missing dependency")
	ErrUndefinedVariable  = errors.New("undefined variable")
	ErrInvalidReference   = errors.New("invalid reference")
	ErrCircularDependency = errors.New("circular dependency")
)

// BadConfigurationError reports a structurally invalid descriptor.
type BadConfigurationError struct {
	Service string
	Reason  string
}

func (e *BadConfigurationError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("bad configuration: %s", e.Reason)
	}
	return fmt.Sprintf("bad configuration for service %s: %s", e.Service, e.Reason)
}

func (e *BadConfigurationError) Is(target error) bool { return target == ErrBadConfiguration }

// MissingTypeError represents a type or factory that is not registered
// or not callable.
type MissingTypeError struct {
	Type    string
	Factory string
	Reason  string
}

func (e *MissingTypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("type %s cannot be instantiated: %s", e.Type, e.Reason)
	}
	if e.Factory != "" {
		if e.Type == "" {
			return fmt.Sprintf("no callable factory registered as %s", e.Factory)
		}
		return fmt.Sprintf("no callable factory %s registered for type %s", e.Factory, e.Type)
	}
	return fmt.Sprintf("no constructor registered for type %s", e.Type)
}

func (e *MissingTypeError) Is(target error) bool { return target == ErrMissingType }

// MissingDependencyError represents a reference to an undeclared service.
type MissingDependencyError struct {
	Name string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("no service declared as %s", e.Name)
}

func (e *MissingDependencyError) Is(target error) bool { return target == ErrMissingDependency }

// UndefinedVariableError represents a reference to an unset runtime variable.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("runtime variable %s is not defined", e.Name)
}

func (e *UndefinedVariableError) Is(target error) bool { return target == ErrUndefinedVariable }

// InvalidReferenceError represents a token that does not follow the
// reference grammar.
type InvalidReferenceError struct {
	Token  string
	Reason string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid reference %q: %s", e.Token, e.Reason)
}

func (e *InvalidReferenceError) Is(target error) bool { return target == ErrInvalidReference }

// CircularDependencyError represents a service that depends on itself
// while it is being constructed.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Chain, " -> "))
}

func (e *CircularDependencyError) Is(target error) bool { return target == ErrCircularDependency }

// BuildError names the service whose construction failed.
type BuildError struct {
	Service string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building service %s: %v", e.Service, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

func badConfig(service, format string, args ...any) error {
	return &BadConfigurationError{Service: service, Reason: fmt.Sprintf(format, args...)}
}
