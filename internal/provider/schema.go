package provider

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Schema is the flat JSON-schema subset used for structured output
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Object builds an object schema; every listed property is required
// unless it appears in optional.
func Object(props map[string]*Schema, optional ...string) *Schema {
	skip := make(map[string]bool, len(optional))
	for _, o := range optional {
		skip[o] = true
	}
	required := make([]string, 0, len(props))
	for name := range props {
		if !skip[name] {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	return &Schema{Type: "object", Properties: props, Required: required}
}

// ArrayOf builds an array schema
func ArrayOf(items *Schema) *Schema { return &Schema{Type: "array", Items: items} }

// Str builds a string schema with an optional description
func Str(desc string) *Schema { return &Schema{Type: "string", Description: desc} }

// Num builds a number schema
func Num(desc string) *Schema { return &Schema{Type: "number", Description: desc} }

// Int builds an integer schema
func Int(desc string) *Schema { return &Schema{Type: "integer", Description: desc} }

// Bool builds a boolean schema
func Bool(desc string) *Schema { return &Schema{Type: "boolean", Description: desc} }

// Strings is shorthand for an array of strings
func Strings(desc string) *Schema {
	return &Schema{Type: "array", Description: desc, Items: &Schema{Type: "string"}}
}

// JSON renders the schema for prompt injection
func (s *Schema) JSON() string {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Validate checks that v (as produced by encoding/json) has the schema's shape
func (s *Schema) Validate(v any) error {
	return s.validate("$", v)
}

func (s *Schema) validate(path string, v any) error {
	if s == nil {
		return nil
	}
	switch s.Type {
	case "object":
		obj, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %T", path, v)
		}
		for _, name := range s.Required {
			if val, ok := obj[name]; !ok || val == nil {
				return fmt.Errorf("%s: missing required field %q", path, name)
			}
		}
		for name, prop := range s.Properties {
			val, ok := obj[name]
			if !ok || val == nil {
				continue
			}
			if err := prop.validate(path+"."+name, val); err != nil {
				return err
			}
		}
	case "array":
		arr, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %T", path, v)
		}
		for i, item := range arr {
			if err := s.Items.validate(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
	case "string":
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %T", path, v)
		}
		if len(s.Enum) > 0 {
			for _, e := range s.Enum {
				if e == str {
					return nil
				}
			}
			return fmt.Errorf("%s: %q not in %v", path, str, s.Enum)
		}
	case "number":
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("%s: expected number, got %T", path, v)
		}
	case "integer":
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) {
			return fmt.Errorf("%s: expected integer, got %v", path, v)
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%s: expected boolean, got %T", path, v)
		}
	}
	return nil
}
