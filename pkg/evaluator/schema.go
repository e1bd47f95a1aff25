package evaluator

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaCompatibility scores how well-formed a processor's declared
// input/output schemas are (spec §4.8.3): 1.0 if both present and valid,
// 0.3 if both present and at least one malformed, 0.6 if exactly one is
// present and it is valid, 0.3 if exactly one is present and it is
// malformed, 0.2 if neither is present.
func schemaCompatibility(inputSchema, outputSchema string) float64 {
	inputPresent, inputValid := classifySchema(inputSchema)
	outputPresent, outputValid := classifySchema(outputSchema)

	switch {
	case inputPresent && outputPresent && inputValid && outputValid:
		return 1.0
	case inputPresent && outputPresent:
		return 0.3 // both present, at least one malformed
	case inputPresent != outputPresent:
		if (inputPresent && inputValid) || (outputPresent && outputValid) {
			return 0.6
		}
		return 0.3
	default:
		return 0.2 // neither present
	}
}

// classifySchema reports whether raw is non-empty, and whether it compiles
// as a JSON Schema document, grounded on goadesign-goa-ai's
// validatePayloadJSONAgainstSchema (compile-then-validate via
// jsonschema/v6's Compiler.AddResource/Compile).
func classifySchema(raw string) (present, valid bool) {
	if raw == "" {
		return false, false
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return true, false
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return true, false
	}
	if _, err := c.Compile("schema.json"); err != nil {
		return true, false
	}
	return true, true
}
