// Package pkgconfig resolves named external dependencies into include
// directories, compiler flags and located library files by querying the
// pkg-config helper and searching its reported library paths on disk.
package pkgconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mbs-build/mbs/internal/msg"
)

const (
	// PathEnv overrides the location of the pkg-config executable.
	PathEnv = "MBS_PKG_CONFIG"
	// SearchPathEnv is pkg-config's own search path variable, extended with
	// any paths added through AddSearchPath.
	SearchPathEnv = "PKG_CONFIG_PATH"

	staticLibSuffix  = ".a"
	dynamicLibSuffix = ".so"
)

var ErrHelperNotFound = errors.New("could not find pkg-config executable")

// QueryError reports a non-zero exit from the helper, with its diagnostic
// output verbatim.
type QueryError struct {
	Args   []string
	Stderr string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("pkg-config %s failed:\n%s", strings.Join(e.Args, " "), e.Stderr)
}

// LibraryNotFoundError reports a library name the helper returned that could
// not be located in any of its reported search paths.
type LibraryNotFoundError struct {
	Library     string
	SearchPaths []string
}

func (e *LibraryNotFoundError) Error() string {
	return fmt.Sprintf("failed to locate library %q in any of: %s", e.Library, strings.Join(e.SearchPaths, ", "))
}

type LibraryType int

const (
	Static LibraryType = iota
	Dynamic
)

// Library is a located external library file.
type Library struct {
	Name string // filename, e.g. libssl.so
	Type LibraryType
	Dir  string
}

func (l Library) Path() string { return filepath.Join(l.Dir, l.Name) }

// Resolved is the concrete form of an external requirement. Each resolution
// is independent; resolved externals are owned by the declaring target.
type Resolved struct {
	Name        string
	IncludeDirs []string
	CXXFlags    []string
	Libraries   []Library
}

// PkgConfig wraps the pkg-config executable.
type PkgConfig struct {
	path        string
	searchPaths []string
}

// New locates pkg-config through the MBS_PKG_CONFIG override or PATH. If the
// helper cannot be found at all, resolution fails fast before any query.
func New() (*PkgConfig, error) {
	if override := os.Getenv(PathEnv); override != "" {
		if _, err := os.Stat(override); err != nil {
			return nil, fmt.Errorf("%w: %s from %s: %v", ErrHelperNotFound, override, PathEnv, err)
		}
		return FromPath(override), nil
	}
	path, err := exec.LookPath("pkg-config")
	if err != nil {
		return nil, ErrHelperNotFound
	}
	return FromPath(path), nil
}

func FromPath(path string) *PkgConfig {
	return &PkgConfig{path: path}
}

// AddSearchPath appends a directory to PKG_CONFIG_PATH for helper queries.
func (p *PkgConfig) AddSearchPath(dir string) {
	p.searchPaths = append(p.searchPaths, dir)
}

// Resolve turns a package name into include directories, compiler flags and
// located library files. Partial resolution is never returned: a library the
// helper names but the filesystem search cannot find is an error.
func (p *PkgConfig) Resolve(name string) (*Resolved, error) {
	cxxflags, err := p.query(name, "--cflags-only-other")
	if err != nil {
		return nil, err
	}

	includesRaw, err := p.query(name, "--cflags-only-I")
	if err != nil {
		return nil, err
	}
	var includeDirs []string
	for _, flag := range includesRaw {
		includeDirs = append(includeDirs, strings.TrimPrefix(flag, "-I"))
	}

	libNamesRaw, err := p.query(name, "--libs-only-l")
	if err != nil {
		return nil, err
	}
	var libNames []string
	for _, flag := range libNamesRaw {
		libNames = append(libNames, strings.TrimPrefix(flag, "-l"))
	}

	searchPathsRaw, err := p.query(name, "--libs-only-L")
	if err != nil {
		return nil, err
	}
	var searchPaths []string
	for _, flag := range searchPathsRaw {
		searchPaths = append(searchPaths, strings.TrimPrefix(flag, "-L"))
	}

	var libraries []Library
	for _, libName := range libNames {
		lib, ok := findLibrary(libName, searchPaths)
		if !ok {
			return nil, &LibraryNotFoundError{Library: libName, SearchPaths: searchPaths}
		}
		msg.Debug("found library %s for package %s", lib.Path(), name)
		libraries = append(libraries, lib)
	}

	return &Resolved{
		Name:        name,
		IncludeDirs: includeDirs,
		CXXFlags:    cxxflags,
		Libraries:   libraries,
	}, nil
}

func (p *PkgConfig) query(name string, arg string) ([]string, error) {
	args := []string{name, arg}
	cmd := exec.Command(p.path, args...)
	if len(p.searchPaths) > 0 {
		env := os.Environ()
		value := strings.Join(p.searchPaths, string(os.PathListSeparator))
		if existing := os.Getenv(SearchPathEnv); existing != "" {
			value = existing + string(os.PathListSeparator) + value
		}
		cmd.Env = append(env, SearchPathEnv+"="+value)
	}

	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, &QueryError{Args: args, Stderr: stderr.String()}
	}
	return strings.Fields(string(out)), nil
}

// candidateFileNames returns the platform file names a library may appear
// under, static convention first.
func candidateFileNames(library string) []string {
	return []string{
		"lib" + library + staticLibSuffix,
		"lib" + library + dynamicLibSuffix,
	}
}

// findLibrary searches every search path recursively. The first match per
// library name wins; the type is inferred from the matched extension,
// defaulting to static.
func findLibrary(library string, searchPaths []string) (Library, bool) {
	candidates := candidateFileNames(library)

	for _, dir := range searchPaths {
		var found *Library
		walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil // unreadable entries are simply not matches
			}
			base := filepath.Base(path)
			for _, candidate := range candidates {
				if base != candidate {
					continue
				}
				ty := Static
				if strings.HasSuffix(base, dynamicLibSuffix) {
					ty = Dynamic
				}
				found = &Library{Name: base, Type: ty, Dir: filepath.Dir(path)}
				return fs.SkipAll
			}
			return nil
		})
		if walkErr == nil && found != nil {
			return *found, true
		}
	}
	return Library{}, false
}
