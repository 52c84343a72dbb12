// Package builder ties one invocation together: toolchain resolution, graph
// construction, file generation and the optional make run.
package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mbs-build/mbs/internal/configure"
	"github.com/mbs-build/mbs/internal/generator"
	"github.com/mbs-build/mbs/internal/manifest"
	"github.com/mbs-build/mbs/internal/msg"
	"github.com/mbs-build/mbs/internal/pkgconfig"
	"github.com/mbs-build/mbs/internal/runner"
	"github.com/mbs-build/mbs/internal/target"
	"github.com/mbs-build/mbs/internal/toolchain"
)

// Options configures one invocation.
type Options struct {
	ManifestDir   string
	BuildDirName  string // defaults to .build
	BuildType     configure.BuildType
	Standard      configure.CXXStandard
	Sanitizer     configure.Sanitizer
	ToolchainFile string
	// PkgConfigPaths are extra search paths handed to the pkg-config helper.
	PkgConfigPaths []string
	DotGraph       bool // export the graph and exit instead of generating
	GenerateOnly   bool // skip the make run
	Jobs           int
	MakeArgs       []string
}

// lazyResolver defers locating pkg-config until the first external
// requirement actually needs it, so projects without externals never
// require the helper.
type lazyResolver struct {
	searchPaths []string
	pc          *pkgconfig.PkgConfig
	err         error
	inited      bool
}

func (r *lazyResolver) Resolve(name string) (*pkgconfig.Resolved, error) {
	if !r.inited {
		r.inited = true
		r.pc, r.err = pkgconfig.New()
		if r.err == nil {
			for _, dir := range r.searchPaths {
				r.pc.AddSearchPath(dir)
			}
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.pc.Resolve(name)
}

// Run performs a full invocation. The toolchain probe gates everything: no
// graph work happens without a validated compiler.
func Run(opts Options) error {
	tc, err := toolchain.Resolve(toolchain.Options{File: opts.ToolchainFile})
	if err != nil {
		return err
	}
	msg.Debug("resolved %s toolchain at %s", tc.Vendor, tc.CompilerPath)

	project, err := manifest.Load(opts.ManifestDir)
	if err != nil {
		return err
	}

	registry, err := target.Build(project.Targets, &lazyResolver{searchPaths: opts.PkgConfigPaths})
	if err != nil {
		return err
	}

	roots := make([]*target.Descriptor, 0, len(project.Roots))
	for _, key := range project.Roots {
		node, ok := registry.Get(key)
		if !ok {
			return fmt.Errorf("internal error: root target %q not in registry", key.Name)
		}
		roots = append(roots, node)
	}

	config := &configure.BuildConfiguration{
		BuildType:    opts.BuildType,
		Standard:     opts.Standard,
		Sanitizer:    opts.Sanitizer,
		BuildDirName: opts.BuildDirName,
	}
	config.OutputRoot = filepath.Join(project.RootDir, config.DirName())

	if opts.DotGraph {
		for _, root := range roots {
			path, err := target.ExportDot(project.RootDir, root, registry)
			if err != nil {
				return fmt.Errorf("failed to export dependency graph: %w", err)
			}
			msg.Info("wrote %s", path)
		}
		return nil
	}

	if err := os.MkdirAll(config.OutputRoot, 0o755); err != nil {
		return err
	}

	// shared fragments are emitted once per invocation, before any target
	if err := generator.NewIncludeFileGenerator(tc, config).Generate(); err != nil {
		return err
	}

	gen := generator.NewMakefileGenerator(registry, tc, config)
	for _, root := range roots {
		if err := gen.GenerateAll(root); err != nil {
			return err
		}
	}

	if err := runner.SaveInvocation(config.OutputRoot, os.Args); err != nil {
		msg.Warn("failed to record invocation: %v", err)
	}

	if opts.GenerateOnly {
		msg.Info("generated build files under %s", config.OutputRoot)
		return nil
	}

	make := &runner.Make{Jobs: opts.Jobs, Args: opts.MakeArgs}
	return make.RunAll(buildOrder(roots, registry, config))
}

// buildOrder lists the output directories of every reachable node,
// dependencies before their requirers, deduplicated.
func buildOrder(roots []*target.Descriptor, registry *target.Registry, config *configure.BuildConfiguration) []string {
	var dirs []string
	visited := make(map[target.Key]bool)
	seenDir := make(map[string]bool)

	var visit func(node *target.Descriptor)
	visit = func(node *target.Descriptor) {
		if visited[node.Key] {
			return
		}
		visited[node.Key] = true
		for _, req := range node.InternalRequirements() {
			if required, ok := registry.Get(req.Key); ok {
				visit(required)
			}
		}
		dir := generator.OutputDir(node, config)
		if !seenDir[dir] {
			seenDir[dir] = true
			dirs = append(dirs, dir)
		}
	}
	for _, root := range roots {
		visit(root)
	}
	return dirs
}
