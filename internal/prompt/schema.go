package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// profileSchema returns the JSON-Schema (draft 2020-12 subset) for a
// profile file, as a generic map.
func profileSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":         map[string]any{"type": "string", "minLength": 1},
			"instructions": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"name", "instructions"},
	}
}

// validateProfileJSON validates "data" against the profile schema.
func validateProfileJSON(data []byte) error {
	b, err := json.Marshal(profileSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("profile.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("profile.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal profile: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("profile does not match schema: %w", err)
	}
	return nil
}
