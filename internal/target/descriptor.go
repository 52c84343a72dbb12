// Package target holds the in-memory build target graph: descriptors for
// executables and libraries, their requirements, and the deduplicating
// registry the makefile generator traverses.
package target

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mbs-build/mbs/internal/pkgconfig"
)

type Kind int

const (
	Executable Kind = iota
	StaticLibrary
	DynamicLibrary
)

func (k Kind) String() string {
	switch k {
	case StaticLibrary:
		return "static library"
	case DynamicLibrary:
		return "dynamic library"
	}
	return "executable"
}

type FileType int

const (
	FileSource FileType = iota
	FileHeader
)

// SourceFile is a classified file belonging to a target.
type SourceFile struct {
	Path string // absolute
	Type FileType
}

// MissingSourceFileError reports a declared source file absent from disk.
type MissingSourceFileError struct {
	Path string
}

func (e *MissingSourceFileError) Error() string {
	return fmt.Sprintf("source file %s does not exist", e.Path)
}

// UnclassifiableFileError reports a file whose extension is neither a known
// source nor header suffix.
type UnclassifiableFileError struct {
	Path string
}

func (e *UnclassifiableFileError) Error() string {
	return fmt.Sprintf("could not classify file %s from its extension", e.Path)
}

var (
	sourceSuffixes = map[string]bool{".cpp": true, ".cc": true, ".cxx": true, ".c": true}
	headerSuffixes = map[string]bool{".h": true, ".hpp": true}
)

// ClassifySourceFile classifies a file by extension and verifies it exists.
func ClassifySourceFile(path string) (SourceFile, error) {
	if _, err := os.Stat(path); err != nil {
		return SourceFile{}, &MissingSourceFileError{Path: path}
	}
	ext := filepath.Ext(path)
	switch {
	case sourceSuffixes[ext]:
		return SourceFile{Path: path, Type: FileSource}, nil
	case headerSuffixes[ext]:
		return SourceFile{Path: path, Type: FileHeader}, nil
	}
	return SourceFile{}, &UnclassifiableFileError{Path: path}
}

// Key is the stable identity of a target in the registry.
type Key struct {
	Path string // directory the target was declared in, absolute
	Name string
}

func (k Key) String() string { return k.Path + ":" + k.Name }

type Origin int

const (
	OriginInclude Origin = iota
	OriginSystem
)

// Requirement is either a reference into the registry (internal) or a
// resolved external package (owned by the declaring descriptor).
type Requirement interface {
	requirement()
}

// InternalRequirement references another target through its registry key;
// the registry owns the canonical descriptor.
type InternalRequirement struct {
	Key Key
}

func (InternalRequirement) requirement() {}

// ExternalRequirement is a resolved pkg-config package.
type ExternalRequirement struct {
	Origin   Origin
	Resolved *pkgconfig.Resolved
}

func (ExternalRequirement) requirement() {}

// Status tracks rule-file generation for a node.
type Status int

const (
	NotGenerated Status = iota
	Generating
	Generated
)

// Define is an ordered preprocessor define.
type Define struct {
	Name  string
	Value string // empty for a bare define
}

func (d Define) Flag() string {
	if d.Value == "" {
		return "-D" + d.Name
	}
	return "-D" + d.Name + "=" + d.Value
}

// Descriptor is the graph-ready form of a target. Descriptors live in the
// registry; requirers never hold copies.
type Descriptor struct {
	Key            Key
	Kind           Kind
	Sources        []SourceFile
	CXXFlagsAppend []string
	CPPFlagsAppend []string
	Defines        []Define
	Requirements   []Requirement

	Status Status

	// defined flips when the descriptor's own declaration has been
	// consumed, as opposed to a node created by forward reference.
	defined bool
}

func (d *Descriptor) Name() string { return d.Key.Name }

// LibraryFileName is the artifact name for library targets, empty for
// executables.
func (d *Descriptor) LibraryFileName() string {
	switch d.Kind {
	case StaticLibrary:
		return "lib" + d.Key.Name + ".a"
	case DynamicLibrary:
		return "lib" + d.Key.Name + ".so"
	}
	return ""
}

// SourcesOnly returns the files classified as compilable sources.
func (d *Descriptor) SourcesOnly() []SourceFile {
	var sources []SourceFile
	for _, file := range d.Sources {
		if file.Type == FileSource {
			sources = append(sources, file)
		}
	}
	return sources
}

// InternalRequirements returns the internal edges in declaration order.
func (d *Descriptor) InternalRequirements() []InternalRequirement {
	var reqs []InternalRequirement
	for _, req := range d.Requirements {
		if internal, ok := req.(InternalRequirement); ok {
			reqs = append(reqs, internal)
		}
	}
	return reqs
}

// ExternalRequirements returns the resolved external requirements in
// declaration order.
func (d *Descriptor) ExternalRequirements() []ExternalRequirement {
	var reqs []ExternalRequirement
	for _, req := range d.Requirements {
		if external, ok := req.(ExternalRequirement); ok {
			reqs = append(reqs, external)
		}
	}
	return reqs
}

// Registry maps target identity to its single canonical descriptor. Two
// targets requiring the same internal target resolve to the identical entry,
// which is what makes the generator's at-most-once guarantee structural.
type Registry struct {
	nodes map[Key]*Descriptor
	order []Key
}

func NewRegistry() *Registry {
	return &Registry{nodes: make(map[Key]*Descriptor)}
}

func (r *Registry) Get(key Key) (*Descriptor, bool) {
	node, ok := r.nodes[key]
	return node, ok
}

// getOrCreate returns the canonical node for key, creating a placeholder on
// first reference so declaration order does not matter.
func (r *Registry) getOrCreate(key Key) *Descriptor {
	if node, ok := r.nodes[key]; ok {
		return node
	}
	node := &Descriptor{Key: key}
	r.nodes[key] = node
	r.order = append(r.order, key)
	return node
}

// Keys returns all registered keys in first-reference order.
func (r *Registry) Keys() []Key {
	return r.order
}

func (r *Registry) Len() int { return len(r.nodes) }
