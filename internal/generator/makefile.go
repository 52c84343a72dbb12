package generator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mbs-build/mbs/internal/configure"
	"github.com/mbs-build/mbs/internal/msg"
	"github.com/mbs-build/mbs/internal/target"
	"github.com/mbs-build/mbs/internal/toolchain"
)

// ErrGenerationReentered signals a node observed in Generating state during
// traversal of its own requirement chain. Cycles are rejected at graph
// construction, so hitting this is an internal invariant violation.
var ErrGenerationReentered = errors.New("internal error: target re-entered while its makefile was being generated")

// GenerationError attributes a generation failure to a node.
type GenerationError struct {
	Target target.Key
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate makefile for target %q: %v", e.Target.Name, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// MakefileGenerator walks the target graph exactly once per node and writes
// one rule file per target. Single-threaded by design: the registry is only
// ever mutated by this traversal.
type MakefileGenerator struct {
	registry  *target.Registry
	toolchain *toolchain.Toolchain
	config    *configure.BuildConfiguration
}

func NewMakefileGenerator(registry *target.Registry, tc *toolchain.Toolchain, config *configure.BuildConfiguration) *MakefileGenerator {
	return &MakefileGenerator{registry: registry, toolchain: tc, config: config}
}

// OutputDir is where a node's makefile and objects go: the node's source
// directory joined with the build subdirectory, the build-type segment and
// the target name. The build-type segment keeps debug and release artifacts
// apart; the name segment keeps targets declared in the same directory from
// overwriting each other's files.
func OutputDir(node *target.Descriptor, config *configure.BuildConfiguration) string {
	return filepath.Join(node.Key.Path, config.DirName(), config.Subdir(), node.Key.Name)
}

func (g *MakefileGenerator) outputDir(node *target.Descriptor) string {
	return OutputDir(node, g.config)
}

// GenerateAll traverses the graph from root, pre-order and depth-first over
// internal requirements, emitting each node's rule file at most once.
func (g *MakefileGenerator) GenerateAll(root *target.Descriptor) error {
	return g.generate(root)
}

func (g *MakefileGenerator) generate(node *target.Descriptor) error {
	switch node.Status {
	case target.Generated:
		// already emitted through another requirer
		return nil
	case target.Generating:
		return &GenerationError{Target: node.Key, Err: ErrGenerationReentered}
	}
	node.Status = target.Generating

	dir := g.outputDir(node)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &GenerationError{Target: node.Key, Err: err}
	}
	// object subdirectories must exist before make runs the compile rules
	for _, source := range node.SourcesOnly() {
		if err := os.MkdirAll(filepath.Dir(g.objectPath(node, source)), 0o755); err != nil {
			return &GenerationError{Target: node.Key, Err: err}
		}
	}
	path := filepath.Join(dir, "makefile")
	if err := os.WriteFile(path, []byte(g.render(node)), 0o644); err != nil {
		return &GenerationError{Target: node.Key, Err: err}
	}
	msg.Debug("generated %s", path)

	for _, req := range node.InternalRequirements() {
		required, ok := g.registry.Get(req.Key)
		if !ok {
			return &GenerationError{Target: node.Key, Err: fmt.Errorf("internal error: requirement %q not in registry", req.Key.Name)}
		}
		if required.Status == target.Generated {
			continue
		}
		if err := g.generate(required); err != nil {
			return err
		}
	}

	node.Status = target.Generated
	return nil
}

// render produces the full makefile text for a node. Pure string assembly:
// generating twice from the same inputs is byte-identical.
func (g *MakefileGenerator) render(node *target.Descriptor) string {
	var sb strings.Builder
	g.renderHeader(&sb)
	g.renderAppendingFlags(&sb, node)
	if node.Kind == target.Executable {
		g.renderExecutableRule(&sb, node)
	} else {
		g.renderLibraryRule(&sb, node)
	}
	g.renderObjectRules(&sb, node)
	g.renderHeaderIncludes(&sb, node)
	return sb.String()
}

func (g *MakefileGenerator) renderHeader(sb *strings.Builder) {
	includeDir := g.config.IncludeDir()

	write(sb, doNotEdit)
	writeln(sb)
	writeln(sb, "# ----- INCLUDES -----")
	writeln(sb, "include ", filepath.Join(includeDir, "defines.mk"))
	writeln(sb, "include ", filepath.Join(includeDir, "default_make.mk"))
	writeln(sb, "include ", filepath.Join(includeDir, "warnings.mk"))
	if g.config.BuildType == configure.Debug {
		writeln(sb, "include ", filepath.Join(includeDir, "debug.mk"))
	} else {
		writeln(sb, "include ", filepath.Join(includeDir, "release.mk"))
	}
	writeln(sb)
	writeln(sb, ".SUFFIXES:")
	writeln(sb, ".PHONY: all")
}

// renderAppendingFlags emits the target's declared flag appends and defines,
// plus compiler flags of resolved externals. These land after the build-type
// fragments so later entries override earlier conflicting switches.
func (g *MakefileGenerator) renderAppendingFlags(sb *strings.Builder, node *target.Descriptor) {
	var cxxflags, cppflags []string
	cxxflags = append(cxxflags, node.CXXFlagsAppend...)
	cppflags = append(cppflags, node.CPPFlagsAppend...)
	for _, define := range node.Defines {
		cppflags = append(cppflags, define.Flag())
	}
	for _, ext := range node.ExternalRequirements() {
		cxxflags = append(cxxflags, ext.Resolved.CXXFlags...)
	}

	if len(cxxflags) == 0 && len(cppflags) == 0 {
		return
	}
	writeln(sb)
	if len(cxxflags) > 0 {
		writeln(sb, "CXXFLAGS += ", strings.Join(cxxflags, " "))
	}
	if len(cppflags) > 0 {
		writeln(sb, "CPPFLAGS += ", strings.Join(cppflags, " "))
	}
}

// includeFlags composes -I/-isystem switches: internal requirement source
// directories first, then external include directories. Order is part of the
// contract and must not change.
func (g *MakefileGenerator) includeFlags(node *target.Descriptor) []string {
	var flags []string
	for _, req := range node.InternalRequirements() {
		flags = append(flags, "-I"+req.Key.Path)
	}
	for _, ext := range node.ExternalRequirements() {
		flag := "-I"
		if ext.Origin == target.OriginSystem {
			flag = "-isystem "
		}
		for _, dir := range ext.Resolved.IncludeDirs {
			flags = append(flags, flag+dir)
		}
	}
	return flags
}

// artifactRel is the output-relative path of a source's build artifact. The
// source's subdirectories are preserved so same-named sources in different
// directories never map to the same object file.
func (g *MakefileGenerator) artifactRel(node *target.Descriptor, source target.SourceFile, suffix string) string {
	rel, err := filepath.Rel(node.Key.Path, source.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(source.Path)
	}
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + suffix
}

func (g *MakefileGenerator) objectPath(node *target.Descriptor, source target.SourceFile) string {
	return filepath.Join(g.outputDir(node), g.artifactRel(node, source, ".o"))
}

func (g *MakefileGenerator) dependencyFilePath(node *target.Descriptor, source target.SourceFile) string {
	return filepath.Join(g.outputDir(node), g.artifactRel(node, source, ".d"))
}

// prerequisites lists the objects, required libraries and mandatory runtime
// libraries of a node's link or archive rule.
func (g *MakefileGenerator) prerequisites(node *target.Descriptor) []string {
	var prereqs []string
	for _, source := range node.SourcesOnly() {
		prereqs = append(prereqs, g.objectPath(node, source))
	}
	for _, req := range node.InternalRequirements() {
		required, ok := g.registry.Get(req.Key)
		if !ok || required.LibraryFileName() == "" {
			continue
		}
		prereqs = append(prereqs, filepath.Join(g.outputDir(required), required.LibraryFileName()))
	}
	for _, ext := range node.ExternalRequirements() {
		for _, lib := range ext.Resolved.Libraries {
			prereqs = append(prereqs, lib.Path())
		}
	}
	// the C++ runtime comes last
	prereqs = append(prereqs, "-lstdc++")
	return prereqs
}

func renderRule(sb *strings.Builder, name string, prereqs []string, recipe string) {
	writeln(sb, name, ": \\")
	for i, prereq := range prereqs {
		if i < len(prereqs)-1 {
			writeln(sb, "\t", prereq, " \\")
		} else {
			writeln(sb, "\t", prereq)
		}
	}
	writeln(sb, "\t", recipe)
}

func (g *MakefileGenerator) renderExecutableRule(sb *strings.Builder, node *target.Descriptor) {
	includes := strings.Join(g.includeFlags(node), " ")
	if includes != "" {
		includes += " "
	}
	writeln(sb)
	writeln(sb, "all: ", node.Name())
	writeln(sb)
	writeln(sb, ".PHONY: ", node.Name())
	recipe := fmt.Sprintf("$(strip $(CXX) $(WARNINGS) $(CXXFLAGS) $(CPPFLAGS) $(LDFLAGS) %s$^ -o $@)", includes)
	renderRule(sb, node.Name(), g.prerequisites(node), recipe)
}

func (g *MakefileGenerator) renderLibraryRule(sb *strings.Builder, node *target.Descriptor) {
	artifact := filepath.Join(g.outputDir(node), node.LibraryFileName())
	writeln(sb)
	writeln(sb, "all: ", artifact)
	writeln(sb)
	var recipe string
	if node.Kind == target.DynamicLibrary {
		recipe = "$(strip $(CXX) $(CXXFLAGS) $(LDFLAGS) -shared $^ -o $@)"
	} else {
		recipe = "$(strip $(AR) $(ARFLAGS) $@ $?)"
	}
	renderRule(sb, artifact, g.prerequisites(node), recipe)
}

func (g *MakefileGenerator) renderObjectRules(sb *strings.Builder, node *target.Descriptor) {
	includes := g.includeFlags(node)
	// a target's own source directory is always searchable
	includes = append(includes, "-I"+node.Key.Path)
	includeStr := strings.Join(includes, " ")

	for _, source := range node.SourcesOnly() {
		writeln(sb)
		writeln(sb, g.objectPath(node, source), ": \\")
		writeln(sb, "\t", source.Path)
		writeln(sb, "\t", fmt.Sprintf("$(strip $(CXX) $(WARNINGS) $(CXXFLAGS) $(CPPFLAGS) %s $< -c -o $@)", includeStr))
	}
}

// renderHeaderIncludes emits sinclude directives for the compiler-generated
// dependency files, so header edits retrigger the right objects.
func (g *MakefileGenerator) renderHeaderIncludes(sb *strings.Builder, node *target.Descriptor) {
	sources := node.SourcesOnly()
	if len(sources) == 0 {
		return
	}
	writeln(sb)
	for _, source := range sources {
		writeln(sb, "sinclude ", g.dependencyFilePath(node, source))
	}
}
