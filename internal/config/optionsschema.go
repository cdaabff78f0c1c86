package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// optionsSchemaRaw is the JSON Schema for the Enqueue options bag. It sets
// additionalProperties false so unknown keys are rejected up front rather
// than silently ignored (open question resolved in favor of rejection).
const optionsSchemaRaw = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "ocr_engine": {"type": "string"},
    "language": {"type": "string"},
    "chunk_size": {"type": "integer", "minimum": 1},
    "extract_tables": {"type": "boolean"},
    "extract_images": {"type": "boolean"},
    "preferred_strategy": {"type": "string", "enum": ["speed", "accuracy"]}
  }
}`

var (
	optionsSchemaOnce    sync.Once
	optionsSchemaCompiled *jsonschema.Schema
	optionsSchemaErr     error
)

func compiledOptionsSchema() (*jsonschema.Schema, error) {
	optionsSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("task_options.json", bytes.NewReader([]byte(optionsSchemaRaw))); err != nil {
			optionsSchemaErr = fmt.Errorf("loading task options schema: %w", err)
			return
		}
		optionsSchemaCompiled, optionsSchemaErr = compiler.Compile("task_options.json")
	})
	return optionsSchemaCompiled, optionsSchemaErr
}

// ValidateTaskOptionsJSON rejects a raw submission bag that carries unknown
// keys or fails basic type/enum constraints, before it is ever decoded into
// docmodel.TaskOptions. Returns a nil error (and thus a nil *jsonschema
// ValidationError) for an empty/omitted bag.
func ValidateTaskOptionsJSON(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	schema, err := compiledOptionsSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("options is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("options failed schema validation: %w", err)
	}
	return nil
}
