// Package schema holds the canonical function-declaration schema and its
// translation into the dialects the providers accept.
//
// The canonical form uses upper-case type tags (the Gemini dialect). OpenAI
// and Anthropic both take standard JSON Schema for tool parameters, so a
// single Normalize serves both of them.
package schema

import (
	"strings"

	"google.golang.org/genai"
)

// Type is the enumerated canonical type tag.
type Type string

const (
	TypeObject Type = "OBJECT"
	TypeArray  Type = "ARRAY"
	TypeString Type = "STRING"
	TypeNumber Type = "NUMBER"
)

// Schema is a recursive JSON-Schema-like node.
type Schema struct {
	Type        Type               `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Declaration describes one callable structured-output function.
type Declaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters"`
}

// Normalize converts a canonical node into the lower-case JSON Schema
// dialect. It never fails: a nil node becomes an empty schema. The input is
// not modified, and normalizing an already normalized tree returns an equal
// tree.
func Normalize(s *Schema) *Schema {
	if s == nil {
		return &Schema{}
	}

	out := &Schema{
		Type:        Type(strings.ToLower(string(s.Type))),
		Description: s.Description,
	}
	if s.Required != nil {
		out.Required = append([]string(nil), s.Required...)
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = Normalize(prop)
		}
	}
	if s.Items != nil {
		out.Items = Normalize(s.Items)
	}
	return out
}

// ToGemini converts a canonical node into the genai SDK shape. Gemini accepts
// the canonical dialect directly, so this is a field-for-field copy.
func ToGemini(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(string(s.Type))),
		Description: s.Description,
	}
	if s.Required != nil {
		out.Required = append([]string(nil), s.Required...)
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = ToGemini(prop)
		}
	}
	if s.Items != nil {
		out.Items = ToGemini(s.Items)
	}
	return out
}

// Gemini returns the declaration in the genai SDK shape.
func (d Declaration) Gemini() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  ToGemini(d.Parameters),
	}
}

// Normalized returns the declaration parameters in the JSON Schema dialect.
func (d Declaration) Normalized() *Schema {
	return Normalize(d.Parameters)
}
