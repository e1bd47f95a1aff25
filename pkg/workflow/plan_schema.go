package workflow

import (
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// planSchemaDoc is the JSON Schema for a workflow plan (spec §3/§4.8.4):
// workflowId, steps[] (each with stepId/description/assignedProcessorId/
// dependencies/inputMapping/outputMapping), executionMode.
const planSchemaDoc = `{
	"type": "object",
	"required": ["workflowId", "steps", "executionMode"],
	"properties": {
		"workflowId": {"type": "string"},
		"executionMode": {"type": "string", "enum": ["sequential", "parallel"]},
		"steps": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["stepId", "description", "assignedProcessorId", "dependencies"],
				"properties": {
					"stepId": {"type": "string"},
					"description": {"type": "string"},
					"assignedProcessorId": {"type": "string"},
					"dependencies": {"type": "array", "items": {"type": "string"}},
					"inputMapping": {"type": "object"},
					"outputMapping": {"type": "object"}
				}
			}
		}
	}
}`

var (
	planSchemaOnce sync.Once
	planSchema     *jsonschema.Schema
	planSchemaErr  error
)

// compiledPlanSchema compiles planSchemaDoc once at first use (spec §4.8.4:
// "compiled once at package init"), grounded on goadesign-goa-ai's
// jsonschema/v6 compiler usage.
func compiledPlanSchema() (*jsonschema.Schema, error) {
	planSchemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(planSchemaDoc), &doc); err != nil {
			planSchemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("workflow-plan.json", doc); err != nil {
			planSchemaErr = err
			return
		}
		planSchema, planSchemaErr = c.Compile("workflow-plan.json")
	})
	return planSchema, planSchemaErr
}
