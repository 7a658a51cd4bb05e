package templates

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const indexSchema = `{
	"type": "object",
	"required": ["templates"],
	"properties": {
		"templates": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "path"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"path": {"type": "string"},
					"module": {"type": "string"},
					"version": {"type": "string"},
					"files": {
						"type": "object",
						"properties": {
							"html": {"type": "string"},
							"logic": {"type": "string"},
							"test": {"type": "string"}
						}
					},
					"args": {
						"type": "object",
						"properties": {
							"required": {"type": "array", "items": {"type": "string"}},
							"optional": {"type": "array", "items": {"type": "string"}},
							"defaults": {"type": "object"}
						}
					},
					"meta": {"type": "object"},
					"pdf": {"type": "object"}
				}
			}
		}
	}
}`

var loadIndexSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(indexSchema))
})

// validateIndexDocument checks the raw index document against the index JSON schema.
func validateIndexDocument(raw []byte) error {
	schema, err := loadIndexSchema()
	if err != nil {
		return fmt.Errorf("failed to compile index schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("invalid index document: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return errors.New("index schema validation failed: " + strings.Join(messages, "; "))
	}

	return nil
}
