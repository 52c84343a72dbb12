package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Env is the expression environment available to conditional manifest
// sections and {{...}} interpolations.
type Env struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	basedir    string
}

func NewEnv(basedir string) Env {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return Env{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		basedir:    basedir,
	}
}

// Patch applies a unified patch to a file inside the manifest directory.
// Returns whether anything was applied. Exposed to manifest expressions for
// vendored source fixups.
func (env Env) Patch(path, patchText string) bool {
	fullPath := filepath.Join(env.basedir, path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		panic(err)
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		panic(err)
	}
	patchedText, results := dmp.PatchApply(patches, string(data))

	applied := false
	for _, ok := range results {
		if ok {
			applied = true
			break
		}
	}
	if !applied {
		return false
	}

	if err := os.WriteFile(fullPath, []byte(patchedText), 0o644); err != nil {
		panic(err)
	}
	return true
}

// ReadFile reads a file relative to the manifest directory.
func (env Env) ReadFile(path string) (string, error) {
	fullPath := filepath.Join(env.basedir, path)
	if _, err := filepath.Rel(env.basedir, fullPath); err != nil {
		panic(fmt.Sprintf("path %q is outside of manifest directory %q", path, env.basedir))
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		panic(err)
	}
	return string(data), nil
}
