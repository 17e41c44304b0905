package tasks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const collectionSchemaURL = "tasks.schema.json"

// collectionSchemaJSON describes the persisted document. Description, tags and
// dueDate may be missing or null; dueDate takes any form ParseDueDate reads.
const collectionSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "title", "status", "createdAt", "updatedAt"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "title": {"type": "string"},
      "description": {"type": ["string", "null"]},
      "status": {"enum": ["to_do", "process", "done"]},
      "tags": {"type": ["array", "null"], "items": {"type": "string"}},
      "dueDate": {"type": ["string", "null"], "format": "due-date"},
      "createdAt": {"type": "string", "format": "date-time"},
      "updatedAt": {"type": "string", "format": "date-time"}
    }
  }
}`

var collectionSchema = compileCollectionSchema()

func compileCollectionSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	compiler.Formats["due-date"] = isDueDate
	if err := compiler.AddResource(collectionSchemaURL, bytes.NewReader([]byte(collectionSchemaJSON))); err != nil {
		panic(err)
	}
	return compiler.MustCompile(collectionSchemaURL)
}

func isDueDate(v any) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return true
	}
	_, err := ParseDueDate(s)
	return err == nil
}

// SchemaError reports a stored document that does not match the collection schema.
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "invalid tasks document: " + e.Message
	}
	return fmt.Sprintf("invalid tasks document at %s: %s", e.Path, e.Message)
}

func validateDocument(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode tasks: %w", err)
	}
	if err := collectionSchema.Validate(doc); err != nil {
		return schemaError(err)
	}
	return nil
}

func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &SchemaError{Message: err.Error()}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return &SchemaError{Path: ve.InstanceLocation, Message: ve.Message}
}
