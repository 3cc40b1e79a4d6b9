package typemetadata

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/kaptinlin/jsonschema"
)

// SchemaValidator compiles a type's embedded JSON Schema once and validates serialized
// attribute trees against it (§4.3 "JSON-Schema validation", Draft 2020-12,
// should_validate_formats = true so date-format claims reject impossible dates).
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// CompileSchema compiles the raw JSON Schema document embedded in a SchemaSource. Compiling
// it (meta-)validates the schema document itself, mirroring the original's JsonSchema::try_new.
func CompileSchema(raw map[string]interface{}) (*SchemaValidator, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindMessageParsing, "could not serialize JSON schema", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.SetAssertFormat(true)
	schema, err := compiler.Compile(encoded)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindMessageParsing, "could not compile JSON schema", err)
	}

	return &SchemaValidator{schema: schema}, nil
}

// Validate checks attestationJSON (the normalized attribute tree, serialized to a plain JSON
// value) against the compiled schema.
func (v *SchemaValidator) Validate(attestationJSON interface{}) error {
	result := v.schema.Validate(attestationJSON)
	if result.IsValid() {
		return nil
	}

	var details []string
	for path, e := range result.Errors {
		details = append(details, fmt.Sprintf("%s: %s", path, e))
	}

	return apierror.Newf(apierror.KindMessageParsing, "json schema validation failed: %s", strings.Join(details, "; "))
}
