// Package queryfile loads a query.Query from disk in either of two surface
// formats (§6.2[FULL]): JSON-with-comments (.json/.jsonc) or YAML
// (.yaml/.yml). Both formats are first turned into a generic
// map[string]any/[]any tree — the JSON path via a comment-stripping scanner
// plus encoding/json, the YAML path via gopkg.in/yaml.v3 — and from there
// share one decode pass that builds the typed query.Query and rejects
// unknown keys at every level, per §6.2's UnknownKey rule.
package queryfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starlitlog/dr-web-engine/query"
)

// Load reads path, detects its format from the extension, and decodes it
// into a query.Query.
func Load(path string) (*query.Query, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("queryfile: read %s: %w", path, err)
	}

	var tree map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		tree, err = decodeYAML(raw)
	case ".json", ".jsonc", "":
		tree, err = decodeJSONC(raw)
	default:
		return nil, fmt.Errorf("queryfile: unrecognized extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("queryfile: parse %s: %w", path, err)
	}

	return decodeQuery(tree)
}

// DecodeJSON decodes a query.Query from an in-memory JSON document (no
// comment-stripping; callers posting a query body over HTTP send plain
// JSON), sharing the same schema validation Load applies to files.
func DecodeJSON(raw []byte) (*query.Query, error) {
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("queryfile: parse request body: %w", err)
	}
	return decodeQuery(tree)
}

func decodeYAML(raw []byte) (map[string]any, error) {
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	normalized := normalizeYAML(generic)
	m, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document root must be a mapping")
	}
	return m, nil
}

// normalizeYAML converts yaml.v3's map[string]interface{} (already the
// default for string-keyed mappings) and any nested map[any]any keys into
// map[string]any, so the rest of the decoder only ever deals with
// map[string]any/[]any/scalars, identical to what encoding/json produces.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

func decodeJSONC(raw []byte) (map[string]any, error) {
	stripped := stripJSONComments(raw)
	var m map[string]any
	if err := json.Unmarshal(stripped, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// stripJSONComments removes `//` line comments and `/* */` block comments
// from a JSON document, respecting string literals (including escaped
// quotes) so a `//` inside a quoted string is never mistaken for a comment
// start (§6.2[FULL]).
func stripJSONComments(src []byte) []byte {
	out := make([]byte, 0, len(src))
	inString := false
	escaped := false
	inLineComment := false
	inBlockComment := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if inLineComment {
			if c == '\n' {
				inLineComment = false
				out = append(out, c)
			}
			continue
		}
		if inBlockComment {
			if c == '*' && i+1 < len(src) && src[i+1] == '/' {
				inBlockComment = false
				i++
			}
			continue
		}
		if inString {
			out = append(out, c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if c == '/' && i+1 < len(src) {
			if src[i+1] == '/' {
				inLineComment = true
				i++
				continue
			}
			if src[i+1] == '*' {
				inBlockComment = true
				i++
				continue
			}
		}
		out = append(out, c)
	}
	return out
}
