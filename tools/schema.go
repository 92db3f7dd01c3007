package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrSchemaViolation = errors.New("tools: schema violation")

const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeStrings = "string_array"
)

// Field declares one input parameter of a tool.
type Field struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

type Schema struct {
	Fields []Field
}

// Validate checks args against the declared fields: every required field
// present, no unknown fields, every value of the declared type. JSON decoding
// hands integers over as float64; whole floats are accepted for integer
// fields.
func (s Schema) Validate(args map[string]any) error {
	known := make(map[string]Field, len(s.Fields))
	for _, f := range s.Fields {
		known[f.Name] = f
	}
	for name := range args {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("%w: unknown field %q", ErrSchemaViolation, name)
		}
	}
	for _, f := range s.Fields {
		v, ok := args[f.Name]
		if !ok {
			if f.Required {
				return fmt.Errorf("%w: missing required field %q", ErrSchemaViolation, f.Name)
			}
			continue
		}
		if err := checkType(f, v); err != nil {
			return err
		}
	}
	return nil
}

func checkType(f Field, v any) error {
	switch f.Type {
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: field %q must be a string", ErrSchemaViolation, f.Name)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%w: field %q must be a boolean", ErrSchemaViolation, f.Name)
		}
	case TypeInteger:
		switch n := v.(type) {
		case int, int32, int64:
		case float64:
			if n != math.Trunc(n) {
				return fmt.Errorf("%w: field %q must be an integer", ErrSchemaViolation, f.Name)
			}
		default:
			return fmt.Errorf("%w: field %q must be an integer", ErrSchemaViolation, f.Name)
		}
	case TypeNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("%w: field %q must be a number", ErrSchemaViolation, f.Name)
		}
	case TypeStrings:
		items, ok := v.([]any)
		if !ok {
			if _, ok := v.([]string); ok {
				return nil
			}
			return fmt.Errorf("%w: field %q must be an array of strings", ErrSchemaViolation, f.Name)
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("%w: field %q must be an array of strings", ErrSchemaViolation, f.Name)
			}
		}
	default:
		return fmt.Errorf("%w: field %q has unsupported type %q", ErrSchemaViolation, f.Name, f.Type)
	}
	return nil
}

// JSON renders the schema as a JSON-schema object for the backend's tool
// declarations.
func (s Schema) JSON() json.RawMessage {
	props := make(map[string]any, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		p := map[string]any{"type": jsonType(f.Type)}
		if f.Type == TypeStrings {
			p["items"] = map[string]any{"type": "string"}
		}
		if f.Description != "" {
			p["description"] = f.Description
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}
	obj := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		obj["required"] = required
	}
	b, _ := json.Marshal(obj)
	return b
}

func jsonType(t string) string {
	if t == TypeStrings {
		return "array"
	}
	return t
}
