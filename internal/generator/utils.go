package generator

import "strings"

// write and writeln append the parts of one build file line.
func write(sb *strings.Builder, parts ...string) {
	for _, p := range parts {
		sb.WriteString(p)
	}
}

func writeln(sb *strings.Builder, parts ...string) {
	write(sb, parts...)
	sb.WriteByte('\n')
}
