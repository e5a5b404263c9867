package blueprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Load reads a blueprint document from disk. Both JSON and YAML sources are
// accepted; YAML is normalized into the JSON object shape so every
// downstream stage works on one representation.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(data)
	default:
		return decodeJSON(data)
	}
}

func decodeJSON(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse blueprint json: %w", err)
	}
	return doc, nil
}

func decodeYAML(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse blueprint yaml: %w", err)
	}

	// Round-trip through JSON so numeric types match JSON-decoded documents.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize blueprint yaml: %w", err)
	}
	return decodeJSON(buf)
}

// IsLegacy reports whether the document predates the current schema and must
// be migrated. A missing version always means legacy; an unparseable version
// is left for the validator to reject.
func IsLegacy(doc map[string]any) bool {
	v, _ := doc["version"].(string)
	if strings.TrimSpace(v) == "" {
		return true
	}
	canon := canonicalVersion(v)
	if !semver.IsValid(canon) {
		return false
	}
	return semver.Compare(canon, canonicalVersion(CurrentVersion)) < 0
}

func canonicalVersion(v string) string {
	return "v" + strings.TrimPrefix(strings.TrimSpace(v), "v")
}
