// Package runner invokes the external build executor on generated rule
// files and records the invocation line for replay.
package runner

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mbs-build/mbs/internal/msg"
)

// InvocationFileName records the command line of the previous run inside the
// build directory.
const InvocationFileName = ".mbs_invocation"

// Make runs the make executable against generated makefiles.
type Make struct {
	Jobs int
	Args []string // extra arguments forwarded to make
}

// Run invokes make in dir, streaming its output indented under our own
// diagnostics. Blocking; the caller decides about timeouts.
func (m *Make) Run(dir string) error {
	jobs := m.Jobs
	if jobs <= 0 {
		jobs = 1
	}
	args := append([]string{"-C", dir, "-j", strconv.Itoa(jobs)}, m.Args...)

	msg.Info("make %s", strings.Join(args, " "))
	cmd := exec.Command("make", args...)
	cmd.Stdout = &msg.IndentWriter{Indent: "  ", W: os.Stdout}
	cmd.Stderr = &msg.IndentWriter{Indent: "  ", W: os.Stderr}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("make failed in %s: %w", dir, err)
	}
	return nil
}

// RunAll invokes make once per directory, dependency order first.
func (m *Make) RunAll(dirs []string) error {
	for _, dir := range dirs {
		if err := m.Run(dir); err != nil {
			return err
		}
	}
	return nil
}

// SaveInvocation writes the program invocation line into the build
// directory so it can be replayed later.
func SaveInvocation(buildDir string, argv []string) error {
	path := filepath.Join(buildDir, InvocationFileName)
	line := strings.Join(argv, " ") + "\n"
	return os.WriteFile(path, []byte(line), 0o644)
}

// ReadInvocation returns the recorded invocation line of the previous run.
func ReadInvocation(buildDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(buildDir, InvocationFileName))
	if err != nil {
		return "", fmt.Errorf("no previous invocation recorded in %s: %w", buildDir, err)
	}
	return strings.TrimSpace(string(data)), nil
}
