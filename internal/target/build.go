package target

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mbs-build/mbs/internal/pkgconfig"
)

// RawTarget is the typed output of the manifest parser: resolved absolute
// source paths, a kind, flag appends and named requirements. It is the only
// contract between the parser and the graph.
type RawTarget struct {
	Name           string
	Path           string // absolute directory of the declaring manifest
	Kind           Kind
	Sources        []string // absolute paths
	CXXFlagsAppend []string
	CPPFlagsAppend []string
	Defines        map[string]string
	Requirements   []RawRequirement
}

func (r *RawTarget) key() Key { return Key{Path: r.Path, Name: r.Name} }

// RawRequirement names either another target in the input set (Path set) or
// an external pkg-config package (Package set).
type RawRequirement struct {
	Name    string
	Path    string // internal: absolute directory of the required target
	Package string // external: pkg-config package name
	Origin  Origin
}

// ExternalResolver resolves a named external dependency. Implemented by
// pkgconfig.PkgConfig.
type ExternalResolver interface {
	Resolve(name string) (*pkgconfig.Resolved, error)
}

// ConstructionError reports a graph construction failure attributed to a
// target.
type ConstructionError struct {
	Target Key
	Err    error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("target %q: %v", e.Target.Name, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// CyclicDependencyError names the internal requirement cycle.
type CyclicDependencyError struct {
	Cycle []Key
}

func (e *CyclicDependencyError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, key := range e.Cycle {
		names[i] = key.Name
	}
	return "cyclic dependency detected: " + strings.Join(names, " -> ")
}

// Build constructs the registry from parsed target declarations, resolving
// every external requirement through resolver and rejecting cycles eagerly.
// Construction is atomic: on error no registry is returned.
func Build(raws []RawTarget, resolver ExternalResolver) (*Registry, error) {
	registry := NewRegistry()

	for i := range raws {
		raw := &raws[i]
		node := registry.getOrCreate(raw.key())
		if node.defined {
			return nil, &ConstructionError{
				Target: raw.key(),
				Err:    fmt.Errorf("target %q declared more than once in %s", raw.Name, raw.Path),
			}
		}
		if err := populate(node, raw, registry, resolver); err != nil {
			return nil, &ConstructionError{Target: raw.key(), Err: err}
		}
	}

	// every forward reference must have been defined by now
	for _, key := range registry.Keys() {
		node, _ := registry.Get(key)
		if !node.defined {
			return nil, &ConstructionError{
				Target: key,
				Err:    fmt.Errorf("requirement does not name a target in the input set"),
			}
		}
	}

	if err := detectCycles(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

func populate(node *Descriptor, raw *RawTarget, registry *Registry, resolver ExternalResolver) error {
	node.Kind = raw.Kind
	node.CXXFlagsAppend = slices.Clone(raw.CXXFlagsAppend)
	node.CPPFlagsAppend = slices.Clone(raw.CPPFlagsAppend)
	node.defined = true

	for _, path := range raw.Sources {
		file, err := ClassifySourceFile(path)
		if err != nil {
			return err
		}
		node.Sources = append(node.Sources, file)
	}

	names := make([]string, 0, len(raw.Defines))
	for name := range raw.Defines {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		node.Defines = append(node.Defines, Define{Name: name, Value: raw.Defines[name]})
	}

	for _, req := range raw.Requirements {
		if req.Package != "" {
			resolved, err := resolver.Resolve(req.Package)
			if err != nil {
				return fmt.Errorf("failed to resolve requirement %q: %w", req.Name, err)
			}
			node.Requirements = append(node.Requirements, ExternalRequirement{
				Origin:   req.Origin,
				Resolved: resolved,
			})
			continue
		}
		required := registry.getOrCreate(Key{Path: req.Path, Name: req.Name})
		node.Requirements = append(node.Requirements, InternalRequirement{Key: required.Key})
	}

	return nil
}

// detectCycles walks internal requirement edges depth-first with a recursion
// stack so cycles fail at construction time, not during generation.
func detectCycles(registry *Registry) error {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[Key]int, registry.Len())
	var stack []Key

	var visit func(key Key) error
	visit = func(key Key) error {
		switch state[key] {
		case done:
			return nil
		case inStack:
			start := slices.Index(stack, key)
			cycle := slices.Clone(stack[start:])
			return &CyclicDependencyError{Cycle: append(cycle, key)}
		}

		state[key] = inStack
		stack = append(stack, key)

		node, _ := registry.Get(key)
		for _, req := range node.InternalRequirements() {
			if err := visit(req.Key); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		state[key] = done
		return nil
	}

	for _, key := range registry.Keys() {
		if err := visit(key); err != nil {
			return err
		}
	}
	return nil
}
