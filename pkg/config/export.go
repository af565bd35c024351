package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/ormasoftchile/confix/pkg/engine"
)

// GenerateInspectionSchema produces a JSON Schema Draft 2020-12 document for
// inspection reports, reflected from the Go Inspection struct.
func GenerateInspectionSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&engine.Inspection{})
	s.ID = "https://github.com/ormasoftchile/confix/schemas/inspection-v0.json"
	s.Title = "Confix Inspection Report v0"
	s.Description = "Schema for the static inspection report of a configuration"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
