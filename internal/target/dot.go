package target

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteDot writes the dependency graph rooted at root in Graphviz dot
// format. Edges point from a requirement to its requirer. Read-only: the
// traversal never touches generation status.
func WriteDot(w io.Writer, root *Descriptor, registry *Registry) error {
	var sb strings.Builder
	sb.WriteString("digraph G {\n")

	visited := make(map[Key]bool)
	var walk func(node *Descriptor)
	walk = func(node *Descriptor) {
		if visited[node.Key] {
			return
		}
		visited[node.Key] = true
		for _, req := range node.InternalRequirements() {
			required, _ := registry.Get(req.Key)
			fmt.Fprintf(&sb, "\t%q -> %q\n", required.Name(), node.Name())
			walk(required)
		}
		for _, ext := range node.ExternalRequirements() {
			fmt.Fprintf(&sb, "\t%q -> %q\n", ext.Resolved.Name, node.Name())
		}
	}
	walk(root)

	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// ExportDot writes the graph to dependency.gv inside dir.
func ExportDot(dir string, root *Descriptor, registry *Registry) (string, error) {
	path := filepath.Join(dir, "dependency.gv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := WriteDot(f, root, registry); err != nil {
		return "", err
	}
	return path, nil
}
