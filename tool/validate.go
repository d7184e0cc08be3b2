package tool

import "fmt"

// ValidationError reports a single argument failing schema validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Message)
}

// ValidateArguments checks args against a minimal JSON-Schema-like object
// schema: required fields must be present and property types must match when
// declared. Unknown properties are allowed.
func ValidateArguments(schema map[string]any, args map[string]any) error {
	if schema == nil {
		return nil
	}

	for _, field := range requiredFields(schema) {
		if _, ok := args[field]; !ok {
			return &ValidationError{Field: field, Message: "required argument missing"}
		}
	}

	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}
	for field, raw := range args {
		spec, ok := properties[field].(map[string]any)
		if !ok {
			continue
		}
		declared, ok := spec["type"].(string)
		if !ok {
			continue
		}
		if err := checkType(field, declared, raw); err != nil {
			return err
		}
	}
	return nil
}

func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		var out []string
		for _, item := range req {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func checkType(field, declared string, value any) error {
	ok := true
	switch declared {
	case "string":
		_, ok = value.(string)
	case "number":
		switch value.(type) {
		case float64, float32, int, int64:
		default:
			ok = false
		}
	case "integer":
		switch v := value.(type) {
		case int, int64:
		case float64:
			ok = v == float64(int64(v))
		default:
			ok = false
		}
	case "boolean":
		_, ok = value.(bool)
	case "array":
		_, ok = value.([]any)
	case "object":
		_, ok = value.(map[string]any)
	}
	if !ok {
		return &ValidationError{Field: field, Message: fmt.Sprintf("expected %s, got %T", declared, value)}
	}
	return nil
}
