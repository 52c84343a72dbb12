// Package manifest parses mbs.toml project descriptions into the raw target
// declarations consumed by the graph builder. Sections support conditional
// sub-tables keyed by boolean expressions and {{...}} string interpolation.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
)

// FileName is the manifest file searched for in every target directory.
const FileName = "mbs.toml"

// Manifest is a parsed mbs.toml: any number of executable and library
// targets, keyed by name.
type Manifest struct {
	Executables map[string]TargetSection
	Libraries   map[string]TargetSection
}

// TargetSection is the body of an [executable.*] or [library.*] table.
type TargetSection struct {
	Sources        []string                      `toml:"sources"`
	CXXFlagsAppend []string                      `toml:"cxxflags_append"`
	CPPFlagsAppend []string                      `toml:"cppflags_append"`
	Defines        map[string]string             `toml:"defines"`
	Requires       map[string]RequirementSection `toml:"requires"`
	LibType        string                        `toml:"lib_type"` // static (default) or dynamic, libraries only
}

// RequirementSection declares one requirement: a path to another target
// directory, or a pkg-config package name.
type RequirementSection struct {
	Path    string `toml:"path"`
	Package string `toml:"package"`
	Origin  string `toml:"origin"` // include (default) or system
}

// mergeSections merges src fields into dst: slices append, maps overlay,
// scalars overwrite when non-zero.
func mergeSections(dst, src *TargetSection) {
	dstVal := reflect.ValueOf(dst).Elem()
	srcVal := reflect.ValueOf(src).Elem()

	for i := 0; i < srcVal.NumField(); i++ {
		srcField := srcVal.Field(i)
		dstField := dstVal.Field(i)

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		case reflect.Map:
			if !srcField.IsNil() {
				if dstField.IsNil() {
					dstField.Set(reflect.MakeMap(dstField.Type()))
				}
				for _, key := range srcField.MapKeys() {
					dstField.SetMapIndex(key, srcField.MapIndex(key))
				}
			}
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalTargetSection parses one target table, evaluating conditional
// sub-tables whose keys compile as boolean expressions against env.
func unmarshalTargetSection(raw map[string]any, name string, env Env) (TargetSection, error) {
	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range raw {
		if subMap, ok := val.(map[string]any); ok && !knownSubTable(key) {
			if _, err := expr.Compile(key, expr.Env(env)); err == nil {
				conditionalFields[key] = subMap
				continue
			}
		}
		baseFields[key] = val
	}

	var section TargetSection
	if len(baseFields) > 0 {
		if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), &section); err != nil {
			return section, fmt.Errorf("failed to parse target %q: %w", name, err)
		}
	}

	for expression, condMap := range conditionalFields {
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return section, fmt.Errorf("failed to compile expression %q in target %q: %w", expression, name, err)
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return section, fmt.Errorf("failed to run expression %q in target %q: %w", expression, name, err)
		}
		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection TargetSection
		if err := toml.Unmarshal([]byte(mustMarshal(condMap)), &condSection); err != nil {
			return section, fmt.Errorf("failed to parse conditional section %q in target %q: %w", expression, name, err)
		}
		mergeSections(&section, &condSection)
	}

	return section, nil
}

// knownSubTable keeps structural sub-tables from being mistaken for
// conditional expressions ("defines" and "requires" both compile as
// identifiers).
func knownSubTable(key string) bool {
	return key == "defines" || key == "requires"
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string.
func evaluateString(s string, env Env) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		builder.WriteString(s[lastIndex:matchIndexes[0]])

		expression := strings.TrimSpace(s[matchIndexes[2]:matchIndexes[3]])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		builder.WriteString(fmt.Sprintf("%v", result))
		lastIndex = matchIndexes[1]
	}
	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates
// expressions in strings.
func processExpressions(data any, env Env) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processed, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processed
		}
		return v, nil
	case []any:
		for i, item := range v {
			processed, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processed
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

// Parse reads a manifest from rdr.
func Parse(rdr io.Reader, env Env) (*Manifest, error) {
	var rawManifest map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawManifest); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	processed, err := processExpressions(rawManifest, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in manifest: %w", err)
	}
	rawManifest = processed.(map[string]any)

	m := &Manifest{
		Executables: make(map[string]TargetSection),
		Libraries:   make(map[string]TargetSection),
	}
	if err := parseKind(rawManifest, "executable", m.Executables, env); err != nil {
		return nil, err
	}
	if err := parseKind(rawManifest, "library", m.Libraries, env); err != nil {
		return nil, err
	}
	if len(m.Executables) == 0 && len(m.Libraries) == 0 {
		return nil, errors.New("manifest declares no executable or library targets")
	}
	return m, nil
}

func parseKind(rawManifest map[string]any, kind string, out map[string]TargetSection, env Env) error {
	kindData, ok := rawManifest[kind]
	if !ok {
		return nil
	}
	kindMap, ok := kindData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table of targets", kind)
	}

	for name, sectionData := range kindMap {
		sectionMap, ok := sectionData.(map[string]any)
		if !ok {
			return fmt.Errorf("invalid [%s.%s] section format: expected a table", kind, name)
		}
		section, err := unmarshalTargetSection(sectionMap, name, env)
		if err != nil {
			return err
		}
		out[name] = section
	}
	return nil
}

// ParseFile parses a manifest from a filepath.
func ParseFile(path string, env Env) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(bufio.NewReader(f), env)
}
