package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbs-build/mbs/internal/configure"
)

// stubCompiler installs a fake g++ so toolchain validation succeeds without
// a real compiler on the test host.
func stubCompiler(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "g++")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	t.Setenv("CXX", path)
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, contents := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}
	return root
}

func TestRunGenerateOnly(t *testing.T) {
	stubCompiler(t)
	root := writeProject(t, map[string]string{
		"mbs.toml": `
[executable.demo]
sources = ["src/*.cpp"]

[executable.demo.requires.util]
path = "util"
`,
		"src/main.cpp": "int main() { return 0; }\n",
		"util/mbs.toml": `
[library.util]
sources = ["util.cpp"]
`,
		"util/util.cpp": "void util() {}\n",
	})

	err := Run(Options{
		ManifestDir:  root,
		BuildType:    configure.Debug,
		Standard:     "c++20",
		GenerateOnly: true,
	})
	require.NoError(t, err)

	// shared fragments
	for _, name := range []string{"warnings.mk", "debug.mk", "release.mk", "default_make.mk", "defines.mk"} {
		_, err := os.Stat(filepath.Join(root, ".build", "make_include", name))
		assert.NoError(t, err, name)
	}

	// one makefile per target, under each target's own source directory
	_, err = os.Stat(filepath.Join(root, ".build", "debug", "demo", "makefile"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "util", ".build", "debug", "util", "makefile"))
	assert.NoError(t, err)

	// the invocation line is recorded for remake
	_, err = os.Stat(filepath.Join(root, ".build", ".mbs_invocation"))
	assert.NoError(t, err)
}

func TestRunDotGraph(t *testing.T) {
	stubCompiler(t)
	root := writeProject(t, map[string]string{
		"mbs.toml": `
[executable.demo]
sources = ["main.cpp"]
`,
		"main.cpp": "int main() { return 0; }\n",
	})

	require.NoError(t, Run(Options{ManifestDir: root, DotGraph: true}))

	data, err := os.ReadFile(filepath.Join(root, "dependency.gv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph G {")

	// graph export never generates build files
	_, err = os.Stat(filepath.Join(root, ".build"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunFailsWithoutCompiler(t *testing.T) {
	t.Setenv("CXX", "")
	err := Run(Options{ManifestDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CXX is not set")
}

func TestRunFailsOnMissingManifest(t *testing.T) {
	stubCompiler(t)
	err := Run(Options{ManifestDir: t.TempDir(), GenerateOnly: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load manifest")
}

func TestRunCustomBuildDirName(t *testing.T) {
	stubCompiler(t)
	root := writeProject(t, map[string]string{
		"mbs.toml": `
[executable.demo]
sources = ["main.cpp"]
`,
		"main.cpp": "int main() { return 0; }\n",
	})

	err := Run(Options{
		ManifestDir:  root,
		BuildDirName: "out",
		BuildType:    configure.Release,
		GenerateOnly: true,
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "out", "release", "demo", "makefile"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "out", "make_include", "release.mk"))
	assert.NoError(t, err)
}

func TestRunMultipleTargetsInOneManifest(t *testing.T) {
	stubCompiler(t)
	root := writeProject(t, map[string]string{
		"mbs.toml": `
[executable.alpha]
sources = ["alpha.cpp"]

[executable.beta]
sources = ["beta.cpp"]
`,
		"alpha.cpp": "int main() { return 0; }\n",
		"beta.cpp":  "int main() { return 1; }\n",
	})

	err := Run(Options{ManifestDir: root, GenerateOnly: true})
	require.NoError(t, err)

	alphaOut, err := os.ReadFile(filepath.Join(root, ".build", "debug", "alpha", "makefile"))
	require.NoError(t, err)
	betaOut, err := os.ReadFile(filepath.Join(root, ".build", "debug", "beta", "makefile"))
	require.NoError(t, err)
	assert.Contains(t, string(alphaOut), "all: alpha")
	assert.Contains(t, string(betaOut), "all: beta")
}

func TestRunForwardsPkgConfigPaths(t *testing.T) {
	stubCompiler(t)
	t.Setenv("PKG_CONFIG_PATH", "")

	// the stub helper reports the search path it was handed as an include dir
	helper := filepath.Join(t.TempDir(), "pkg-config")
	script := `#!/bin/sh
case "$2" in
--cflags-only-I) echo "-I$PKG_CONFIG_PATH/include" ;;
*) echo "" ;;
esac
`
	require.NoError(t, os.WriteFile(helper, []byte(script), 0o755))
	t.Setenv("MBS_PKG_CONFIG", helper)

	root := writeProject(t, map[string]string{
		"mbs.toml": `
[executable.demo]
sources = ["main.cpp"]

[executable.demo.requires.dep]
package = "dep"
`,
		"main.cpp": "int main() { return 0; }\n",
	})

	err := Run(Options{
		ManifestDir:    root,
		PkgConfigPaths: []string{"/opt/custom"},
		GenerateOnly:   true,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, ".build", "debug", "demo", "makefile"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "-I/opt/custom/include")
}
