package mapping

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed default_mapping.json
var defaultMappingJSON []byte

// Document is a generic JSON object used for default and override mapping
// documents before they are resolved into typed configuration.
type Document map[string]any

// LoadDefaultDocument reads the default mapping from path, or the embedded
// document when path is empty.
func LoadDefaultDocument(path string) (Document, error) {
	data := defaultMappingJSON
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read default mapping: %w", err)
		}
		data = raw
	}
	return ParseDocument(data)
}

// ParseDocument decodes a JSON object and strips comment keys (those that
// start with an underscore) at every depth.
func ParseDocument(data []byte) (Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode mapping document: %w", err)
	}
	if raw == nil {
		return Document{}, nil
	}
	stripped, _ := stripComments(raw).(map[string]any)
	return Document(stripped), nil
}

func stripComments(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			if strings.HasPrefix(key, "_") {
				continue
			}
			out[key] = stripComments(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = stripComments(child)
		}
		return out
	default:
		return v
	}
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(deepCopy(map[string]any(d)).(map[string]any))
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			out[key] = deepCopy(child)
		}
		return out
	case Document:
		return deepCopy(map[string]any(v))
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return v
	}
}

// Merge deep-merges override onto a copy of base. Objects merge recursively;
// any other override value replaces the base value. Neither input is modified.
func Merge(base, override Document) Document {
	merged := base.Clone()
	if merged == nil {
		merged = Document{}
	}
	mergeInto(merged, deepCopy(map[string]any(override)).(map[string]any))
	return merged
}

func mergeInto(target, source map[string]any) {
	for key, value := range source {
		if child, ok := value.(map[string]any); ok {
			if existing, ok := target[key].(map[string]any); ok {
				mergeInto(existing, child)
				continue
			}
		}
		target[key] = value
	}
}

// setPath writes value at the nested key path, creating intermediate objects
// and replacing non-object values that sit in the way.
func (d Document) setPath(value any, path ...string) {
	current := map[string]any(d)
	for _, key := range path[:len(path)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

// Marshal encodes the document as JSON.
func (d Document) Marshal() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(d))
}
