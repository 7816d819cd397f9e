package container

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Reference sigils.
const (
	SigilVariable = '$'
	SigilService  = '@'
	SigilLazy     = '%'

	optionalMark = '?'
	groupMark    = ':'
	methodSep    = "::"
	escapeMark   = '\\'
)

// Argument is a parsed argument token. The set of implementations is closed:
// Scalar, VariableRef, ServiceRef, LazyRef, GroupRef, ListArg and MapArg.
type Argument interface {
	fmt.Stringer
	argument()
}

// Scalar is a literal passed through unchanged.
type Scalar struct {
	Value any
}

// VariableRef reads a runtime variable: $name or $?name.
type VariableRef struct {
	Name     string
	Optional bool
}

// ServiceRef builds another service eagerly: @name, @?name, @name::method.
// With a Method it resolves to a *BoundMethod.
type ServiceRef struct {
	Name     string
	Optional bool
	Method   string
}

// LazyRef resolves to a *Lazy: %name, %?name, %name::method.
type LazyRef struct {
	Name     string
	Optional bool
	Method   string
}

// GroupRef expands every member of a group: @:group, %:group, @:group::method.
type GroupRef struct {
	Group  string
	Lazy   bool
	Method string
}

// ListArg is a nested positional structure.
type ListArg []Argument

// MapArg is a nested keyed structure.
type MapArg map[string]Argument

func (Scalar) argument()      {}
func (VariableRef) argument() {}
func (ServiceRef) argument()  {}
func (LazyRef) argument()     {}
func (GroupRef) argument()    {}
func (ListArg) argument()     {}
func (MapArg) argument()      {}

func (a Scalar) String() string { return fmt.Sprint(a.Value) }

func (a VariableRef) String() string {
	return string(SigilVariable) + optional(a.Optional) + a.Name
}

func (a ServiceRef) String() string {
	return string(SigilService) + optional(a.Optional) + a.Name + method(a.Method)
}

func (a LazyRef) String() string {
	return string(SigilLazy) + optional(a.Optional) + a.Name + method(a.Method)
}

func (a GroupRef) String() string {
	sigil := SigilService
	if a.Lazy {
		sigil = SigilLazy
	}
	return string(sigil) + string(groupMark) + a.Group + method(a.Method)
}

func (a ListArg) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (a MapArg) String() string {
	keys := a.keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + a[k].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (a MapArg) keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func optional(b bool) string {
	if b {
		return string(optionalMark)
	}
	return ""
}

func method(m string) string {
	if m == "" {
		return ""
	}
	return methodSep + m
}

// ParseArgument turns a raw descriptor value into an Argument. Strings go
// through ParseToken, slices and string-keyed maps are parsed recursively and
// everything else is a Scalar.
func ParseArgument(raw any) (Argument, error) {
	switch v := raw.(type) {
	case Argument:
		return v, nil
	case string:
		return ParseToken(v)
	case []any:
		list := make(ListArg, len(v))
		for i, item := range v {
			arg, err := ParseArgument(item)
			if err != nil {
				return nil, err
			}
			list[i] = arg
		}
		return list, nil
	case []string:
		list := make(ListArg, len(v))
		for i, item := range v {
			arg, err := ParseToken(item)
			if err != nil {
				return nil, err
			}
			list[i] = arg
		}
		return list, nil
	case map[string]any:
		m := make(MapArg, len(v))
		for key, item := range v {
			arg, err := ParseArgument(item)
			if err != nil {
				return nil, err
			}
			m[key] = arg
		}
		return m, nil
	default:
		return Scalar{Value: raw}, nil
	}
}

// ParseToken parses one string token of the reference grammar.
func ParseToken(token string) (Argument, error) {
	if token == "" {
		return Scalar{Value: token}, nil
	}
	if token[0] == escapeMark && len(token) > 1 && isSigil(token[1]) {
		return Scalar{Value: token[1:]}, nil
	}
	sigil := token[0]
	if !isSigil(sigil) {
		return Scalar{Value: token}, nil
	}

	body := token[1:]
	var opt, group bool
	if body != "" {
		switch body[0] {
		case optionalMark:
			opt, body = true, body[1:]
		case groupMark:
			group, body = true, body[1:]
		}
	}

	name, meth, hasMethod := strings.Cut(body, methodSep)
	if err := checkName(name); err != nil {
		return nil, &InvalidReferenceError{Token: token, Reason: err.Error()}
	}
	if hasMethod {
		if err := checkMethod(meth); err != nil {
			return nil, &InvalidReferenceError{Token: token, Reason: err.Error()}
		}
	}

	switch sigil {
	case SigilVariable:
		if group {
			return nil, &InvalidReferenceError{Token: token, Reason: "variables cannot be grouped"}
		}
		if hasMethod {
			return nil, &InvalidReferenceError{Token: token, Reason: "variables cannot be bound to a method"}
		}
		return VariableRef{Name: name, Optional: opt}, nil
	case SigilService:
		if group {
			return GroupRef{Group: name, Method: meth}, nil
		}
		return ServiceRef{Name: name, Optional: opt, Method: meth}, nil
	default:
		if group {
			return GroupRef{Group: name, Lazy: true, Method: meth}, nil
		}
		return LazyRef{Name: name, Optional: opt, Method: meth}, nil
	}
}

// MustParseToken is like ParseToken but panics on malformed tokens.
func MustParseToken(token string) Argument {
	arg, err := ParseToken(token)
	if err != nil {
		panic(err)
	}
	return arg
}

func isSigil(b byte) bool {
	return b == SigilVariable || b == SigilService || b == SigilLazy
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if name[0] == groupMark || name[len(name)-1] == groupMark {
		return fmt.Errorf("name %q cannot start or end with %q", name, groupMark)
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		switch r {
		case '_', '-', '.', ':', '/', '\\':
			continue
		}
		return fmt.Errorf("illegal character %q in name %q", r, name)
	}
	return nil
}

func checkMethod(m string) error {
	if m == "" {
		return fmt.Errorf("empty method")
	}
	for i, r := range m {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return fmt.Errorf("illegal method name %q", m)
	}
	return nil
}
