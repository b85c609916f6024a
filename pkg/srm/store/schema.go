package store

import (
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaResource = "inmemory://srm/metadata.schema.json"

// metadataSchema describes the on-disk metadata document.
const metadataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["original_path", "stored_path", "trashed_at", "expires_at"],
    "properties": {
      "original_path": {"type": "string", "minLength": 1},
      "stored_path": {"type": "string", "minLength": 1},
      "created_at": {"type": "string"},
      "trashed_at": {"type": "string"},
      "expires_at": {"type": "string"},
      "size_bytes": {"type": "integer", "minimum": 0},
      "checksum": {"type": "string", "pattern": "^([0-9a-f]{64})?$"},
      "is_dir": {"type": "boolean"},
      "rule": {
        "type": "object",
        "properties": {
          "max_age": {"type": "string"},
          "absolute_expiry": {"type": "string"},
          "max_size": {"type": "integer", "minimum": 0}
        },
        "additionalProperties": false
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, strings.NewReader(metadataSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile(schemaResource)
})
