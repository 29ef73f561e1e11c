// Package tools defines the travel tools available to the agent and the
// registry that validates and dispatches calls to them.
package tools

import (
	"context"
)

// ParamType is a JSON Schema primitive type.
type ParamType string

// Supported parameter types.
const (
	String  ParamType = "string"
	Integer ParamType = "integer"
	Number  ParamType = "number"
	Boolean ParamType = "boolean"
)

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Enum        []string
	Default     any
	Minimum     *float64
	Maximum     *float64
}

// Handler runs a tool. Arguments have already been validated against
// the tool's schema and have defaults applied. Handlers report every
// outcome, including collaborator failures, through the [Result].
type Handler func(ctx context.Context, args map[string]any) Result

// Tool is a named, schema-described operation.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// Definition is the model-facing view of a tool.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Parameters renders the tool's arguments as a JSON Schema object.
// Unknown properties are rejected.
func (t Tool) Parameters() map[string]any {
	props := make(map[string]any, len(t.Params))
	required := []string{}
	for _, p := range t.Params {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Definition returns the model-facing view of t.
func (t Tool) Definition() Definition {
	return Definition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters(),
	}
}

func bound(v float64) *float64 { return &v }
