package tools

import (
	"fmt"
	"slices"
)

// ValidateArgs checks args against the definition's schema: required fields
// present, declared fields of the declared JSON type, enum values respected.
func ValidateArgs(def *ToolDefinition, args map[string]any) error {
	for _, name := range def.InputSchema.Required {
		if v, ok := args[name]; !ok || v == nil {
			return fmt.Errorf("%s: missing required argument '%s'", def.Name, name)
		}
	}
	for name, value := range args {
		prop, ok := def.InputSchema.Properties[name]
		if !ok || value == nil {
			continue
		}
		if err := checkType(&prop, value); err != nil {
			return fmt.Errorf("%s: argument '%s' %w", def.Name, name, err)
		}
	}
	return nil
}

func checkType(prop *Property, value any) error {
	switch prop.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("must be a string, got %T", value)
		}
		if len(prop.Enum) > 0 && !slices.Contains(prop.Enum, s) {
			return fmt.Errorf("must be one of %v, got %q", prop.Enum, s)
		}
	case "number", "integer":
		switch value.(type) {
		case float64, float32, int, int64, int32:
		default:
			return fmt.Errorf("must be a number, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("must be a boolean, got %T", value)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("must be an array, got %T", value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("must be an object, got %T", value)
		}
	}
	return nil
}
