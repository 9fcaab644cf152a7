package config

import (
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["background_color"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "background_color": {"$ref": "#/$defs/hex"},
    "node_colors": {
      "type": "object",
      "additionalProperties": {"$ref": "#/$defs/hex"}
    },
    "sufficient_alpha": {"$ref": "#/$defs/alpha"},
    "target_alpha": {"$ref": "#/$defs/alpha"},
    "transparent_nodes": {"type": "boolean"},
    "hill_shading": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "min_alpha": {"$ref": "#/$defs/alpha"}
      }
    }
  },
  "$defs": {
    "hex": {"type": "string", "pattern": "^[0-9a-fA-F]{6}([0-9a-fA-F]{2})?$"},
    "alpha": {"type": "integer", "minimum": 0, "maximum": 255}
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("config.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

func validate(doc map[string]any) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	v, err := normalize(doc)
	if err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
