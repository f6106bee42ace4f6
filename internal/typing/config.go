package typing

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// coreConfigSchema validates the shape described in spec §6: a JSON
// document with a "paths" array of {path, methods[]} entries.
const coreConfigSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["paths"],
  "properties": {
    "paths": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path", "methods"],
        "properties": {
          "path": { "type": "string" },
          "methods": {
            "type": "array",
            "items": { "type": "string" },
            "minItems": 1
          }
        }
      }
    }
  }
}`

// CoreConfig is the decoded form of the typing stage's install-path JSON
// document.
type CoreConfig struct {
	Paths []struct {
		Path    string   `json:"path"`
		Methods []string `json:"methods"`
	} `json:"paths"`
}

// LoadCoreConfig reads and validates the core-topology document at path,
// per spec §4.4.2 step 2.
func LoadCoreConfig(path string) (*CoreConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("typing: read core config: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("typing-core.schema.json", strings.NewReader(coreConfigSchema)); err != nil {
		return nil, fmt.Errorf("typing: add schema resource: %w", err)
	}
	schema, err := compiler.Compile("typing-core.schema.json")
	if err != nil {
		return nil, fmt.Errorf("typing: compile schema: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("typing: unmarshal core config: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("typing: validate core config: %w", err)
	}

	var cfg CoreConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("typing: decode core config: %w", err)
	}
	return &cfg, nil
}

// Bootstrap seeds the tree's core topology from cfg, per spec §4.4.2.
func (t *Tree) Bootstrap(cfg *CoreConfig) {
	for _, entry := range cfg.Paths {
		for _, method := range entry.Methods {
			t.CorePath(method, entry.Path)
		}
	}
}
