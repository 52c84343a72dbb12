package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbs-build/mbs/internal/target"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, contents := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}
}

func TestLoadSingleManifest(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"mbs.toml": `
[executable.app]
sources = ["src/*.cpp"]
`,
		"src/main.cpp": "int main() { return 0; }\n",
		"src/util.cpp": "void util() {}\n",
	})

	project, err := Load(root)
	require.NoError(t, err)

	rootAbs, _ := filepath.Abs(root)
	assert.Equal(t, rootAbs, project.RootDir)
	require.Len(t, project.Targets, 1)
	require.Len(t, project.Roots, 1)
	assert.Equal(t, target.Key{Path: rootAbs, Name: "app"}, project.Roots[0])

	app := project.Targets[0]
	assert.Equal(t, target.Executable, app.Kind)
	assert.Equal(t, []string{
		filepath.Join(rootAbs, "src", "main.cpp"),
		filepath.Join(rootAbs, "src", "util.cpp"),
	}, app.Sources)
}

func TestLoadFollowsRequirements(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app/mbs.toml": `
[executable.app]
sources = ["main.cpp"]

[executable.app.requires.math]
path = "../math"
`,
		"app/main.cpp": "int main() { return 0; }\n",
		"math/mbs.toml": `
[library.math]
sources = ["math.cpp"]
`,
		"math/math.cpp": "int add(int a, int b) { return a + b; }\n",
	})

	project, err := Load(filepath.Join(root, "app"))
	require.NoError(t, err)
	require.Len(t, project.Targets, 2)

	rootAbs, _ := filepath.Abs(root)
	mathKey := target.Key{Path: filepath.Join(rootAbs, "math"), Name: "math"}

	// roots only cover the entry manifest
	require.Len(t, project.Roots, 1)
	assert.Equal(t, "app", project.Roots[0].Name)

	app := project.Targets[0]
	require.Len(t, app.Requirements, 1)
	assert.Equal(t, mathKey.Path, app.Requirements[0].Path)

	math := project.Targets[1]
	assert.Equal(t, "math", math.Name)
	assert.Equal(t, target.StaticLibrary, math.Kind)
}

func TestLoadSharedRequirementLoadedOnce(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app/mbs.toml": `
[executable.app]
sources = ["main.cpp"]

[executable.app.requires.a]
path = "../a"

[executable.app.requires.b]
path = "../b"
`,
		"app/main.cpp": "int main() { return 0; }\n",
		"a/mbs.toml": `
[library.a]
sources = ["a.cpp"]

[library.a.requires.core]
path = "../core"
`,
		"a/a.cpp": "void a() {}\n",
		"b/mbs.toml": `
[library.b]
sources = ["b.cpp"]

[library.b.requires.core]
path = "../core"
`,
		"b/b.cpp": "void b() {}\n",
		"core/mbs.toml": `
[library.core]
sources = ["core.cpp"]
`,
		"core/core.cpp": "void core() {}\n",
	})

	project, err := Load(filepath.Join(root, "app"))
	require.NoError(t, err)

	// app, a, b and exactly one core
	require.Len(t, project.Targets, 4)
	coreCount := 0
	for _, raw := range project.Targets {
		if raw.Name == "core" {
			coreCount++
		}
	}
	assert.Equal(t, 1, coreCount)
}

func TestLoadMissingManifest(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load manifest")
}

func TestLoadDynamicLibrary(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"mbs.toml": `
[library.plugin]
sources = ["plugin.cpp"]
lib_type = "dynamic"
`,
		"plugin.cpp": "void plugin() {}\n",
	})

	project, err := Load(root)
	require.NoError(t, err)
	require.Len(t, project.Targets, 1)
	assert.Equal(t, target.DynamicLibrary, project.Targets[0].Kind)
}

func TestLoadUnknownLibType(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"mbs.toml": `
[library.plugin]
sources = ["plugin.cpp"]
lib_type = "header-only"
`,
		"plugin.cpp": "void plugin() {}\n",
	})

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown lib_type "header-only"`)
}

func TestLoadRequirementNeedsPathOrPackage(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"mbs.toml": `
[executable.app]
sources = ["main.cpp"]

[executable.app.requires.mystery]
origin = "include"
`,
		"main.cpp": "int main() { return 0; }\n",
	})

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs either path or package")
}

func TestParseOrigin(t *testing.T) {
	origin, err := parseOrigin("")
	require.NoError(t, err)
	assert.Equal(t, target.OriginInclude, origin)

	origin, err = parseOrigin("include")
	require.NoError(t, err)
	assert.Equal(t, target.OriginInclude, origin)

	origin, err = parseOrigin("system")
	require.NoError(t, err)
	assert.Equal(t, target.OriginSystem, origin)

	_, err = parseOrigin("global")
	assert.Error(t, err)
}

func TestCollectSources(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/main.cpp":        "",
		"src/util.cpp":        "",
		"src/nested/deep.cpp": "",
		"src/util.h":          "",
	})

	t.Run("doublestar matches nested files", func(t *testing.T) {
		files, err := collectSources(dir, []string{"src/**/*.cpp"})
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "src", "main.cpp"),
			filepath.Join(dir, "src", "nested", "deep.cpp"),
			filepath.Join(dir, "src", "util.cpp"),
		}, files)
	})

	t.Run("overlapping patterns deduplicate", func(t *testing.T) {
		files, err := collectSources(dir, []string{"src/*.cpp", "src/main.cpp"})
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "src", "main.cpp"),
			filepath.Join(dir, "src", "util.cpp"),
		}, files)
	})

	t.Run("absolute paths pass through", func(t *testing.T) {
		abs := filepath.Join(dir, "src", "main.cpp")
		files, err := collectSources(dir, []string{abs})
		require.NoError(t, err)
		assert.Equal(t, []string{abs}, files)
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := collectSources(dir, []string{"src/[.cpp"})
		require.Error(t, err)
	})
}
