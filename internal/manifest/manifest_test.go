package manifest

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv() Env {
	return Env{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    map[string]string{"HOME": "/home/dev"},
	}
}

func TestParseBasic(t *testing.T) {
	input := `
[executable.app]
sources = ["src/main.cpp"]
cxxflags_append = ["-fno-exceptions"]

[executable.app.defines]
APP_DEBUG = "1"

[library.math]
sources = ["src/math.cpp"]
lib_type = "static"
`
	m, err := Parse(strings.NewReader(input), testEnv())
	require.NoError(t, err)

	require.Contains(t, m.Executables, "app")
	app := m.Executables["app"]
	assert.Equal(t, []string{"src/main.cpp"}, app.Sources)
	assert.Equal(t, []string{"-fno-exceptions"}, app.CXXFlagsAppend)
	assert.Equal(t, map[string]string{"APP_DEBUG": "1"}, app.Defines)

	require.Contains(t, m.Libraries, "math")
	assert.Equal(t, "static", m.Libraries["math"].LibType)
}

func TestParseRequirements(t *testing.T) {
	input := `
[executable.app]
sources = ["main.cpp"]

[executable.app.requires.math]
path = "../math"

[executable.app.requires.ssl]
package = "openssl"
origin = "system"
`
	m, err := Parse(strings.NewReader(input), testEnv())
	require.NoError(t, err)

	app := m.Executables["app"]
	require.Len(t, app.Requires, 2)
	assert.Equal(t, "../math", app.Requires["math"].Path)
	assert.Equal(t, "openssl", app.Requires["ssl"].Package)
	assert.Equal(t, "system", app.Requires["ssl"].Origin)
}

func TestParseNoTargets(t *testing.T) {
	_, err := Parse(strings.NewReader("# nothing here\n"), testEnv())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares no executable or library targets")
}

func TestParseInvalidTOML(t *testing.T) {
	_, err := Parse(strings.NewReader("[executable.app\n"), testEnv())
	assert.Error(t, err)
}

func TestConditionalSection(t *testing.T) {
	input := `
[executable.app]
sources = ["main.cpp"]
cxxflags_append = ["-Wall"]

[executable.app.'target_os == "` + runtime.GOOS + `"']
cxxflags_append = ["-DMATCHED"]

[executable.app.'target_os == "plan9-not-really"']
cxxflags_append = ["-DNOT_MATCHED"]
`
	m, err := Parse(strings.NewReader(input), testEnv())
	require.NoError(t, err)

	app := m.Executables["app"]
	assert.Contains(t, app.CXXFlagsAppend, "-Wall")
	assert.Contains(t, app.CXXFlagsAppend, "-DMATCHED")
	assert.NotContains(t, app.CXXFlagsAppend, "-DNOT_MATCHED")
}

func TestConditionalSectionMergesMaps(t *testing.T) {
	input := `
[executable.app]
sources = ["main.cpp"]

[executable.app.defines]
BASE = "1"

[executable.app.'target_arch == "` + runtime.GOARCH + `"'.defines]
ARCH_SPECIFIC = "1"
`
	m, err := Parse(strings.NewReader(input), testEnv())
	require.NoError(t, err)

	app := m.Executables["app"]
	assert.Equal(t, "1", app.Defines["BASE"])
	assert.Equal(t, "1", app.Defines["ARCH_SPECIFIC"])
}

func TestStringInterpolation(t *testing.T) {
	input := `
[executable.app]
sources = ["main.cpp"]
cxxflags_append = ["-DARCH={{ target_arch }}"]

[executable.app.defines]
HOME_DIR = "{{ environ.HOME }}"
`
	m, err := Parse(strings.NewReader(input), testEnv())
	require.NoError(t, err)

	app := m.Executables["app"]
	assert.Contains(t, app.CXXFlagsAppend, "-DARCH="+runtime.GOARCH)
	assert.Equal(t, "/home/dev", app.Defines["HOME_DIR"])
}

func TestInterpolationBadExpression(t *testing.T) {
	input := `
[executable.app]
sources = ["{{ no_such_variable_here( }}"]
`
	_, err := Parse(strings.NewReader(input), testEnv())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile expression")
}

func TestEvaluateString(t *testing.T) {
	env := testEnv()

	out, err := evaluateString("plain text", env)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = evaluateString("os={{ target_os }} arch={{ target_arch }}", env)
	require.NoError(t, err)
	assert.Equal(t, "os="+runtime.GOOS+" arch="+runtime.GOARCH, out)
}

func TestMergeSections(t *testing.T) {
	dst := TargetSection{
		Sources: []string{"a.cpp"},
		Defines: map[string]string{"A": "1"},
		LibType: "static",
	}
	src := TargetSection{
		Sources: []string{"b.cpp"},
		Defines: map[string]string{"B": "2"},
		LibType: "dynamic",
	}
	mergeSections(&dst, &src)

	assert.Equal(t, []string{"a.cpp", "b.cpp"}, dst.Sources)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, dst.Defines)
	assert.Equal(t, "dynamic", dst.LibType)
}

func TestMergeSectionsKeepsScalarWhenSrcZero(t *testing.T) {
	dst := TargetSection{LibType: "static"}
	src := TargetSection{Sources: []string{"extra.cpp"}}
	mergeSections(&dst, &src)
	assert.Equal(t, "static", dst.LibType)
	assert.Equal(t, []string{"extra.cpp"}, dst.Sources)
}
