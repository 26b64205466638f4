package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/schema"
)

// Parse converts a normalized function call into the matching ModeResult
// variant. Every field the declaration marks required must be present, at
// any depth. Models sometimes emit a literal backslash before apostrophes;
// those are unescaped in every timecode text.
func Parse(call domain.FunctionCall) (*domain.ModeResult, error) {
	decl, ok := Lookup(call.Name)
	if !ok {
		return nil, fmt.Errorf("unexpected function %q", call.Name)
	}
	if err := checkRequired(decl.Parameters, call.Args, ""); err != nil {
		return nil, fmt.Errorf("%s arguments: %w", call.Name, err)
	}

	raw, err := json.Marshal(call.Args)
	if err != nil {
		return nil, fmt.Errorf("encode %s arguments: %w", call.Name, err)
	}

	switch call.Name {
	case SetTimecodes, SetTimecodesWithObjects, SetTimecodesWithNumericValues:
		var args struct {
			Timecodes []domain.Timecode `json:"timecodes"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("decode %s arguments: %w", call.Name, err)
		}
		for i := range args.Timecodes {
			args.Timecodes[i].Text = unescapeApostrophes(args.Timecodes[i].Text)
		}
		return &domain.ModeResult{Kind: domain.ResultTimecodes, Function: call.Name, Timecodes: args.Timecodes}, nil

	case SetWorkflowDiagrams:
		var d domain.Diagram
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode %s arguments: %w", call.Name, err)
		}
		return &domain.ModeResult{Kind: domain.ResultDiagram, Function: call.Name, Diagram: &d}, nil

	case SetJSONLContext:
		var c domain.JSONLContext
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode %s arguments: %w", call.Name, err)
		}
		return &domain.ModeResult{Kind: domain.ResultJSONLContext, Function: call.Name, Context: &c}, nil
	}

	return nil, fmt.Errorf("unexpected function %q", call.Name)
}

// checkRequired walks v alongside s and reports the first required property
// that is missing or null. Values of the wrong shape are left to decoding.
func checkRequired(s *schema.Schema, v any, path string) error {
	if s == nil {
		return nil
	}
	switch s.Type {
	case schema.TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		for _, name := range s.Required {
			if val, present := obj[name]; !present || val == nil {
				return fmt.Errorf("missing required field %q", join(path, name))
			}
		}
		for name, prop := range s.Properties {
			if val, present := obj[name]; present {
				if err := checkRequired(prop, val, join(path, name)); err != nil {
					return err
				}
			}
		}
	case schema.TypeArray:
		items, ok := v.([]any)
		if !ok {
			return nil
		}
		for i, item := range items {
			if err := checkRequired(s.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func unescapeApostrophes(s string) string {
	return strings.ReplaceAll(s, `\'`, "'")
}
