package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mbs-build/mbs/internal/target"
)

// Project is the flat input set produced by recursively loading the root
// manifest and every manifest reachable through internal requirements.
type Project struct {
	RootDir string
	// Roots identify the targets declared by the root manifest itself.
	Roots []target.Key
	// Targets holds every declaration, roots first, in deterministic order.
	Targets []target.RawTarget
}

// Load parses the manifest in dir and follows internal requirement paths
// recursively, deduplicating directories so shared requirements are loaded
// once.
func Load(dir string) (*Project, error) {
	rootDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	project := &Project{RootDir: rootDir}
	visited := map[string]bool{rootDir: true}
	queue := []string{rootDir}

	for i := 0; i < len(queue); i++ {
		manifestDir := queue[i]
		raws, requiredDirs, err := loadOne(manifestDir)
		if err != nil {
			return nil, err
		}

		if manifestDir == rootDir {
			for _, raw := range raws {
				project.Roots = append(project.Roots, target.Key{Path: raw.Path, Name: raw.Name})
			}
		}
		project.Targets = append(project.Targets, raws...)

		for _, required := range requiredDirs {
			if !visited[required] {
				visited[required] = true
				queue = append(queue, required)
			}
		}
	}

	return project, nil
}

// loadOne parses a single manifest directory into raw targets and the
// internal requirement directories it references.
func loadOne(dir string) ([]target.RawTarget, []string, error) {
	path := filepath.Join(dir, FileName)
	env := NewEnv(dir)
	m, err := ParseFile(path, env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load manifest %s: %w", path, err)
	}

	var raws []target.RawTarget
	var requiredDirs []string

	appendTargets := func(sections map[string]TargetSection, isLibrary bool) error {
		names := make([]string, 0, len(sections))
		for name := range sections {
			names = append(names, name)
		}
		slices.Sort(names)

		for _, name := range names {
			section := sections[name]
			raw, dirs, err := rawFromSection(dir, name, section, isLibrary)
			if err != nil {
				return err
			}
			raws = append(raws, raw)
			requiredDirs = append(requiredDirs, dirs...)
		}
		return nil
	}

	if err := appendTargets(m.Executables, false); err != nil {
		return nil, nil, err
	}
	if err := appendTargets(m.Libraries, true); err != nil {
		return nil, nil, err
	}
	return raws, requiredDirs, nil
}

func rawFromSection(dir, name string, section TargetSection, isLibrary bool) (target.RawTarget, []string, error) {
	raw := target.RawTarget{
		Name:           name,
		Path:           dir,
		CXXFlagsAppend: section.CXXFlagsAppend,
		CPPFlagsAppend: section.CPPFlagsAppend,
		Defines:        section.Defines,
	}

	switch {
	case !isLibrary:
		raw.Kind = target.Executable
	case section.LibType == "" || section.LibType == "static":
		raw.Kind = target.StaticLibrary
	case section.LibType == "dynamic":
		raw.Kind = target.DynamicLibrary
	default:
		return raw, nil, fmt.Errorf("target %q: unknown lib_type %q", name, section.LibType)
	}

	sources, err := collectSources(dir, section.Sources)
	if err != nil {
		return raw, nil, fmt.Errorf("target %q: %w", name, err)
	}
	raw.Sources = sources

	var requiredDirs []string
	reqNames := make([]string, 0, len(section.Requires))
	for reqName := range section.Requires {
		reqNames = append(reqNames, reqName)
	}
	slices.Sort(reqNames)

	for _, reqName := range reqNames {
		req := section.Requires[reqName]
		origin, err := parseOrigin(req.Origin)
		if err != nil {
			return raw, nil, fmt.Errorf("target %q, requirement %q: %w", name, reqName, err)
		}

		switch {
		case req.Package != "":
			raw.Requirements = append(raw.Requirements, target.RawRequirement{
				Name:    reqName,
				Package: req.Package,
				Origin:  origin,
			})
		case req.Path != "":
			reqDir := req.Path
			if !filepath.IsAbs(reqDir) {
				reqDir = filepath.Join(dir, reqDir)
			}
			reqDir = filepath.Clean(reqDir)
			raw.Requirements = append(raw.Requirements, target.RawRequirement{
				Name:   reqName,
				Path:   reqDir,
				Origin: origin,
			})
			requiredDirs = append(requiredDirs, reqDir)
		default:
			return raw, nil, fmt.Errorf("target %q, requirement %q: needs either path or package", name, reqName)
		}
	}

	return raw, requiredDirs, nil
}

func parseOrigin(s string) (target.Origin, error) {
	switch s {
	case "", "include":
		return target.OriginInclude, nil
	case "system":
		return target.OriginSystem, nil
	}
	return 0, fmt.Errorf("unknown origin %q, must be \"include\" or \"system\"", s)
}

// collectSources expands doublestar glob patterns relative to the manifest
// directory. Absolute paths pass through untouched; existence is checked at
// graph construction.
func collectSources(dir string, patterns []string) ([]string, error) {
	var files []string
	fsys := os.DirFS(dir)

	for _, pattern := range patterns {
		if filepath.IsAbs(pattern) {
			files = append(files, filepath.Clean(pattern))
			continue
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad source pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			files = append(files, filepath.Join(dir, match))
		}
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}
