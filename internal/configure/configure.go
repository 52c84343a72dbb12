// Package configure holds the per-invocation build configuration: build type,
// C++ standard, sanitizer selection and the output root for generated files.
package configure

import (
	"fmt"
	"path/filepath"
	"strings"
)

type BuildType int

const (
	Debug BuildType = iota
	Release
)

func (b BuildType) String() string {
	if b == Release {
		return "release"
	}
	return "debug"
}

// ParseBuildType accepts the values exposed on the command line.
func ParseBuildType(s string) (BuildType, error) {
	switch strings.ToLower(s) {
	case "debug":
		return Debug, nil
	case "release":
		return Release, nil
	}
	return Debug, fmt.Errorf("unknown build type %q, must be \"debug\" or \"release\"", s)
}

// CXXStandard is the -std= value passed to the compiler.
type CXXStandard string

const DefaultCXXStandard = CXXStandard("c++20")

var knownStandards = []CXXStandard{"c++98", "c++03", "c++11", "c++14", "c++17", "c++20"}

func ParseCXXStandard(s string) (CXXStandard, error) {
	std := CXXStandard(strings.ToLower(s))
	for _, known := range knownStandards {
		if std == known {
			return std, nil
		}
	}
	return "", fmt.Errorf("unknown C++ standard %q", s)
}

// Flag returns the compiler flag selecting the standard.
func (s CXXStandard) Flag() string {
	if s == "" {
		s = DefaultCXXStandard
	}
	return "-std=" + string(s)
}

type Sanitizer string

const (
	SanitizerAddress   Sanitizer = "address"
	SanitizerThread    Sanitizer = "thread"
	SanitizerLeak      Sanitizer = "leak"
	SanitizerUndefined Sanitizer = "undefined"
)

func ParseSanitizer(s string) (Sanitizer, error) {
	switch san := Sanitizer(strings.ToLower(s)); san {
	case SanitizerAddress, SanitizerThread, SanitizerLeak, SanitizerUndefined:
		return san, nil
	}
	return "", fmt.Errorf("unknown sanitizer %q", s)
}

// Flags returns the compile and link flags implied by the sanitizer. The
// thread sanitizer additionally needs position independent executables so
// address space layout randomization keeps working.
func (s Sanitizer) Flags() []string {
	if s == "" {
		return nil
	}
	flags := []string{"-fsanitize=" + string(s)}
	if s == SanitizerThread {
		flags = append(flags, "-fPIE", "-pie")
	}
	return flags
}

// BuildConfiguration is shared by reference across one generator invocation.
type BuildConfiguration struct {
	BuildType    BuildType
	Standard     CXXStandard
	Sanitizer    Sanitizer // empty when no sanitizer is requested
	OutputRoot   string    // absolute path of the root build directory
	BuildDirName string    // per-target build subdirectory, DirName() applies the default
}

// DirName is the build subdirectory created next to every target's sources.
func (c *BuildConfiguration) DirName() string {
	if c.BuildDirName == "" {
		return ".build"
	}
	return c.BuildDirName
}

// Subdir is the build-type specific path segment keeping debug and release
// artifacts from ever colliding.
func (c *BuildConfiguration) Subdir() string {
	return c.BuildType.String()
}

// IncludeDir is where the shared .mk fragments are written.
func (c *BuildConfiguration) IncludeDir() string {
	return filepath.Join(c.OutputRoot, "make_include")
}
