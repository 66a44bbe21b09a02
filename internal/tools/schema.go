package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var ErrValidation = errors.New("invalid tool arguments")

// Property describes one argument. When Default is set and Enum is not empty,
// a value outside Enum is replaced by Default instead of being rejected.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	MinLength   int      `json:"minLength,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// Schema is the JSON Schema object describing a tool's arguments.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// PropertyNames returns the property names in a stable order.
func (s Schema) PropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JSON renders the schema as a JSON Schema document.
func (s Schema) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// ValidationError lists every problem found in one invocation's arguments.
type ValidationError struct {
	Tool     Name
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validator checks arguments against a compiled schema and applies the
// schema's defaults and enum fallbacks.
type Validator struct {
	tool     Name
	schema   Schema
	compiled *gojsonschema.Schema
}

func NewValidator(tool Name, s Schema) (*Validator, error) {
	raw, err := s.JSON()
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", tool, err)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", tool, err)
	}
	return &Validator{tool: tool, schema: s, compiled: compiled}, nil
}

// Apply returns a normalized copy of args or a *ValidationError.
func (v *Validator) Apply(args map[string]any) (Args, error) {
	out := make(Args, len(args))
	for k, val := range args {
		out[k] = val
	}

	for name, prop := range v.schema.Properties {
		val, present := out[name]
		if !present || val == nil {
			if prop.Default != nil {
				out[name] = prop.Default
			} else {
				delete(out, name)
			}
			continue
		}
		if len(prop.Enum) > 0 && prop.Default != nil {
			if s, ok := val.(string); !ok || !slices.Contains(prop.Enum, s) {
				out[name] = prop.Default
			}
		}
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, &ValidationError{Tool: v.tool, Problems: []string{err.Error()}}
	}
	result, err := v.compiled.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &ValidationError{Tool: v.tool, Problems: []string{err.Error()}}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, &ValidationError{Tool: v.tool, Problems: problems}
	}
	return out, nil
}

// Args are validated tool arguments.
type Args map[string]any

// String returns the named argument as trimmed text, or "" when absent.
func (a Args) String(name string) string {
	switch v := a[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
