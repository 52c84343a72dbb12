// Package generator emits the generated build files: the shared .mk
// configuration fragments and one makefile per build target.
package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mbs-build/mbs/internal/configure"
	"github.com/mbs-build/mbs/internal/toolchain"
)

const doNotEdit = "# Generated by mbs. DO NOT EDIT THIS FILE.\n"

var commonWarnings = []string{
	"-Wall",
	"-Wextra",
	"-Wshadow",
	"-Wnon-virtual-dtor",
	"-Wold-style-cast",
	"-Wcast-align",
	"-Wunused",
	"-Woverloaded-virtual",
	"-Wpedantic",
	"-Wconversion",
	"-Wsign-conversion",
	"-Wnull-dereference",
	"-Wdouble-promotion",
	"-Wformat=2",
}

// gccWarnings extends the baseline for GCC, which knows warnings clang does
// not implement.
var gccWarnings = []string{
	"-Wmisleading-indentation",
	"-Wduplicated-cond",
	"-Wduplicated-branches",
	"-Wlogical-op",
	"-Wuseless-cast",
}

// IncludeFileGenerator writes the shared toolchain-derived fragments under
// the make_include directory, once per invocation. Re-running against the
// same configuration overwrites the same files with identical content.
type IncludeFileGenerator struct {
	toolchain *toolchain.Toolchain
	config    *configure.BuildConfiguration
}

func NewIncludeFileGenerator(tc *toolchain.Toolchain, config *configure.BuildConfiguration) *IncludeFileGenerator {
	return &IncludeFileGenerator{toolchain: tc, config: config}
}

// Generate emits warnings.mk, debug.mk, release.mk, default_make.mk and
// defines.mk.
func (g *IncludeFileGenerator) Generate() error {
	dir := g.config.IncludeDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	fragments := map[string]string{
		"warnings.mk":     g.warningsMk(),
		"debug.mk":        g.debugMk(),
		"release.mk":      g.releaseMk(),
		"default_make.mk": g.defaultMk(),
		"defines.mk":      g.definesMk(),
	}
	for _, name := range []string{"warnings.mk", "debug.mk", "release.mk", "default_make.mk", "defines.mk"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(fragments[name]), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

// continuedFlags renders flags as a backslash-continued make assignment.
func continuedFlags(assignment string, flags []string) string {
	indent := strings.Repeat(" ", len(assignment))
	return assignment + strings.Join(flags, " \\\n"+indent)
}

func (g *IncludeFileGenerator) warningFlags() []string {
	flags := append([]string{}, commonWarnings...)
	if g.toolchain.Vendor == toolchain.GCC {
		flags = append(flags, gccWarnings...)
	}
	return flags
}

func (g *IncludeFileGenerator) warningsMk() string {
	var sb strings.Builder
	write(&sb, doNotEdit)
	writeln(&sb)
	writeln(&sb, "# Warning flags for ", g.toolchain.Vendor.String())
	writeln(&sb, continuedFlags("WARNINGS := ", g.warningFlags()))
	writeln(&sb)
	writeln(&sb, "CXXFLAGS += ", g.config.Standard.Flag())
	return sb.String()
}

// sanitizerSection is the compile and link flag appends implied by the
// configured sanitizer, empty when none is requested.
func (g *IncludeFileGenerator) sanitizerSection() string {
	flags := g.config.Sanitizer.Flags()
	if len(flags) == 0 {
		return ""
	}
	joined := strings.Join(flags, " ")
	var sb strings.Builder
	writeln(&sb)
	writeln(&sb, "CXXFLAGS += ", joined)
	writeln(&sb)
	writeln(&sb, "LDFLAGS += ", joined)
	return sb.String()
}

func (g *IncludeFileGenerator) debugMk() string {
	var sb strings.Builder
	write(&sb, doNotEdit)
	writeln(&sb, continuedFlags("CXXFLAGS += ", []string{"-g", "-O0", "-gdwarf"}))
	write(&sb, g.sanitizerSection())
	writeln(&sb)
	writeln(&sb, `# When building with sanitizer options, certain linker options must be added.
# For thread sanitizers, -fPIE and -pie are added to linker and C++ flag
# options. This is done to support address space layout randomization (ASLR):
# PIE enables C++ code to be compiled and linked as position-independent code.`)
	return sb.String()
}

func (g *IncludeFileGenerator) releaseMk() string {
	var sb strings.Builder
	write(&sb, doNotEdit)
	writeln(&sb, continuedFlags("CXXFLAGS += ", []string{"-O3", "-DNDEBUG"}))
	return sb.String()
}

func (g *IncludeFileGenerator) defaultMk() string {
	var sb strings.Builder
	write(&sb, doNotEdit)
	writeln(&sb)
	writeln(&sb, "# Automatic dependency generation, excluding system header files.")
	writeln(&sb, continuedFlags("CPPFLAGS += ", []string{"-MMD", "-MP"}))
	writeln(&sb)
	writeln(&sb, "# Generate position independent code suitable for shared libraries.")
	writeln(&sb, continuedFlags("CXXFLAGS += ", []string{"-pthread", "-fPIC"}))
	writeln(&sb)
	writeln(&sb, "# Flags passed to the static library archiver.")
	writeln(&sb, "ARFLAGS = rs")
	return sb.String()
}

func (g *IncludeFileGenerator) definesMk() string {
	var sb strings.Builder
	write(&sb, doNotEdit)
	writeln(&sb)
	writeln(&sb, "# Toolchain definitions")
	writeln(&sb, "CXX := ", g.toolchain.CompilerPath)
	writeln(&sb, "AR := ", g.toolchain.ArchiverPath)
	writeln(&sb, "CXX_USES_GCC := ", fmt.Sprintf("%t", g.toolchain.Vendor == toolchain.GCC))
	writeln(&sb, "CXX_USES_CLANG := ", fmt.Sprintf("%t", g.toolchain.Vendor == toolchain.Clang))
	writeln(&sb)
	writeln(&sb, "# Linker selection, empty for the system default.")
	writeln(&sb, "LDFLAGS += ", g.toolchain.Linker.Flag())
	writeln(&sb)
	writeln(&sb, "# Standard library selection, empty for libstdc++.")
	writeln(&sb, "CXXFLAGS += ", g.toolchain.StdLib.Flag())
	return sb.String()
}
