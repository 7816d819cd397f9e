// Package loader reads service descriptors from YAML or JSON files.
//
// A descriptor file looks like:
//
//	imports:
//	  - common.yaml
//	variables:
//	  greeting: hello
//	services:
//	  Engine:
//	    type: Engine
//	  Widget:
//	    type: Widget
//	    arguments: ["@Engine", "@Painter", red]
//	    calls:
//	      setLogger: "@?Logger"
//	    listeners: ["@Audit::widgetBuilt"]
//
// Services and calls keep their file order.
package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-wiring/framework/container"
)

// File is the decoded content of one or more descriptor files.
type File struct {
	Descriptors []container.Descriptor
	Variables   map[string]any
}

type document struct {
	Imports   []string       `yaml:"imports"`
	Variables map[string]any `yaml:"variables"`
	Services  yaml.Node      `yaml:"services"`
}

type service struct {
	Type      string         `yaml:"type"`
	Factory   string         `yaml:"factory"`
	Arguments []any          `yaml:"arguments"`
	Config    map[string]any `yaml:"config"`
	Shared    *bool          `yaml:"shared"`
	Filters   []string       `yaml:"filters"`
	Calls     yaml.Node      `yaml:"calls"`
	Listeners []string       `yaml:"listeners"`
	Parent    string         `yaml:"parent"`
}

// Load reads path and every file it imports. Imports are resolved relative
// to the importing file and merged before it, so the importing file wins.
func Load(path string) (*File, error) {
	out := &File{Variables: make(map[string]any)}
	if err := load(out, path, map[string]bool{}); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadAll loads several files in order; later files override earlier ones.
func LoadAll(paths ...string) (*File, error) {
	out := &File{Variables: make(map[string]any)}
	seen := map[string]bool{}
	for _, path := range paths {
		if err := load(out, path, seen); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func load(out *File, path string, seen map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("loader: %w", err)
	}
	if seen[abs] {
		return nil
	}
	seen[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("loader: failed to read %s: %w", path, err)
	}
	doc, err := decode(data)
	if err != nil {
		return fmt.Errorf("loader: %s: %w", path, err)
	}
	for _, imp := range doc.Imports {
		if !filepath.IsAbs(imp) {
			imp = filepath.Join(filepath.Dir(abs), imp)
		}
		if err := load(out, imp, seen); err != nil {
			return err
		}
	}
	ds, err := doc.descriptors()
	if err != nil {
		return fmt.Errorf("loader: %s: %w", path, err)
	}
	out.merge(ds, doc.Variables)
	return nil
}

// Parse decodes a single document. Imports are not followed.
func Parse(data []byte) (*File, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	ds, err := doc.descriptors()
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	out := &File{Variables: make(map[string]any)}
	out.merge(ds, doc.Variables)
	return out, nil
}

func decode(data []byte) (*document, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse descriptors: %w", err)
	}
	return &doc, nil
}

// merge appends descriptors, replacing earlier ones of the same name in
// place.
func (f *File) merge(ds []container.Descriptor, variables map[string]any) {
	index := make(map[string]int, len(f.Descriptors))
	for i, d := range f.Descriptors {
		index[d.Name] = i
	}
	for _, d := range ds {
		if i, ok := index[d.Name]; ok {
			f.Descriptors[i] = d
			continue
		}
		index[d.Name] = len(f.Descriptors)
		f.Descriptors = append(f.Descriptors, d)
	}
	for k, v := range variables {
		f.Variables[k] = v
	}
}

func (doc *document) descriptors() ([]container.Descriptor, error) {
	node := &doc.Services
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: services must be a mapping", node.Line)
	}
	out := make([]container.Descriptor, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var s service
		if value.Kind != yaml.ScalarNode || value.Tag != "!!null" {
			if err := value.Decode(&s); err != nil {
				return nil, fmt.Errorf("service %s: %w", key.Value, err)
			}
		}
		calls, err := decodeCalls(&s.Calls)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", key.Value, err)
		}
		out = append(out, container.Descriptor{
			Name:      key.Value,
			Type:      s.Type,
			Arguments: s.Arguments,
			Config:    s.Config,
			Factory:   s.Factory,
			Shared:    s.Shared,
			Filters:   s.Filters,
			Calls:     calls,
			Listeners: s.Listeners,
			Parent:    s.Parent,
		})
	}
	return out, nil
}

// decodeCalls accepts a mapping of method to argument, or a sequence of
// single-entry mappings when one method is called more than once.
func decodeCalls(node *yaml.Node) ([]container.MethodCall, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.MappingNode:
		calls := make([]container.MethodCall, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var arg any
			if err := node.Content[i+1].Decode(&arg); err != nil {
				return nil, fmt.Errorf("call %s: %w", node.Content[i].Value, err)
			}
			calls = append(calls, container.MethodCall{Method: node.Content[i].Value, Argument: arg})
		}
		return calls, nil
	case yaml.SequenceNode:
		var calls []container.MethodCall
		for _, item := range node.Content {
			more, err := decodeCalls(item)
			if err != nil {
				return nil, err
			}
			calls = append(calls, more...)
		}
		return calls, nil
	}
	return nil, fmt.Errorf("line %d: calls must be a mapping or a sequence", node.Line)
}
