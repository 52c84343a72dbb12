// Package toolchain locates and validates the C++ toolchain used to derive
// build flags. Resolution reads the CXX environment variable, classifies the
// compiler vendor and proves the compiler works by building a trivial
// translation unit in a scratch directory before any files are generated.
package toolchain

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

var (
	ErrCompilerNotConfigured = errors.New("environment variable CXX is not set, please set it to a valid C++ compiler")
	ErrUnrecognizedCompiler  = errors.New("could not determine compiler vendor from CXX, expected a gcc or clang executable")
)

// ValidationError reports a failed probe compilation, carrying the compiler's
// diagnostic output verbatim.
type ValidationError struct {
	CompilerPath string
	Stderr       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("compiler %s failed to build the probe translation unit:\n%s", e.CompilerPath, e.Stderr)
}

type Vendor int

const (
	GCC Vendor = iota
	Clang
)

func (v Vendor) String() string {
	if v == Clang {
		return "clang"
	}
	return "gcc"
}

type Linker int

const (
	LinkerDefault Linker = iota
	LinkerGold
	LinkerLLD
	LinkerBFD
)

// Flag returns the LDFLAGS addition selecting the linker, empty for the
// system default.
func (l Linker) Flag() string {
	switch l {
	case LinkerGold:
		return "-fuse-ld=gold"
	case LinkerLLD:
		return "-fuse-ld=lld"
	case LinkerBFD:
		return "-fuse-ld=bfd"
	}
	return ""
}

type StdLib int

const (
	LibStdCXX StdLib = iota
	LibCXX
)

// Flag returns the compiler flag selecting the standard library
// implementation, empty for the platform default libstdc++.
func (s StdLib) Flag() string {
	if s == LibCXX {
		return "-stdlib=libc++"
	}
	return ""
}

// Toolchain is immutable once resolved and shared by reference across all
// generation steps of one invocation.
type Toolchain struct {
	CompilerPath string
	Vendor       Vendor
	ArchiverPath string
	Linker       Linker
	StdLib       StdLib
}

var (
	gccPattern   = regexp.MustCompile(`^(g\+\+|gcc)`)
	clangPattern = regexp.MustCompile(`^clang`)
)

func classifyVendor(compilerPath string) (Vendor, error) {
	base := filepath.Base(compilerPath)
	switch {
	case gccPattern.MatchString(base):
		return GCC, nil
	case clangPattern.MatchString(base):
		return Clang, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnrecognizedCompiler, base)
}

// Options controls resolution. All fields are optional.
type Options struct {
	File       string // toolchain file overriding linker/stdlib/archiver
	ScratchDir string // parent directory for the probe scratch dir, defaults to os.TempDir()
}

// Resolve locates the configured compiler, classifies it and validates it
// with a live probe compilation. It gates everything else: no graph work
// proceeds without a resolved toolchain.
func Resolve(opts Options) (*Toolchain, error) {
	compiler := os.Getenv("CXX")
	if compiler == "" {
		return nil, ErrCompilerNotConfigured
	}

	vendor, err := classifyVendor(compiler)
	if err != nil {
		return nil, err
	}

	tc := &Toolchain{
		CompilerPath: compiler,
		Vendor:       vendor,
	}

	if opts.File != "" {
		if err := tc.applyFile(opts.File); err != nil {
			return nil, err
		}
	}
	if tc.ArchiverPath == "" {
		tc.ArchiverPath = findArchiver()
	}

	if err := tc.validate(opts.ScratchDir); err != nil {
		return nil, err
	}
	return tc, nil
}

func findArchiver() string {
	if path, err := exec.LookPath("ar"); err == nil {
		return path
	}
	return "/usr/bin/ar"
}

const probeSource = "int main()\n{\n    return 0;\n}\n"

// validate compiles a trivial main in a throwaway directory. A broken
// toolchain must surface here, not later in the downstream make run.
func (tc *Toolchain) validate(scratchBase string) error {
	if scratchBase == "" {
		scratchBase = os.TempDir()
	}
	scratch := filepath.Join(scratchBase, "mbs-probe-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("failed to create probe directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	mainCpp := filepath.Join(scratch, "main.cpp")
	if err := os.WriteFile(mainCpp, []byte(probeSource), 0o644); err != nil {
		return fmt.Errorf("failed to write probe source: %w", err)
	}

	cmd := exec.Command(tc.CompilerPath, mainCpp, "-I"+scratch, "-o", filepath.Join(scratch, "a.out"))
	cmd.Dir = scratch
	cmd.Env = append(os.Environ(), "TMPDIR="+scratch)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &ValidationError{CompilerPath: tc.CompilerPath, Stderr: string(out)}
	}
	return nil
}
