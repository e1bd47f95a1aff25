package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaCompatibility(t *testing.T) {
	validSchema := `{"type": "object", "properties": {"x": {"type": "string"}}}`
	malformed := `{not json`

	cases := []struct {
		name          string
		input, output string
		want          float64
	}{
		{"both valid", validSchema, validSchema, 1.0},
		{"both missing", "", "", 0.2},
		{"one present valid", validSchema, "", 0.6},
		{"one present malformed", malformed, "", 0.3},
		{"both present one malformed", validSchema, malformed, 0.3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, schemaCompatibility(tc.input, tc.output))
		})
	}
}
