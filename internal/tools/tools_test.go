package tools

import (
	"errors"
	"strings"
	"testing"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/schema"
)

func TestDeclarations(t *testing.T) {
	want := []string{SetTimecodes, SetTimecodesWithObjects, SetTimecodesWithNumericValues, SetWorkflowDiagrams, SetJSONLContext}
	got := Declarations()
	if len(got) != len(want) {
		t.Fatalf("got %d declarations, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("declaration %d = %s, want %s", i, got[i].Name, name)
		}
		if got[i].Parameters == nil || got[i].Parameters.Type != schema.TypeObject {
			t.Errorf("%s parameters are not an object", name)
		}
		if len(got[i].Parameters.Required) == 0 {
			t.Errorf("%s has no required fields", name)
		}
	}
}

func TestJSONLContextRequiresTimecodeAndWorkflow(t *testing.T) {
	d, ok := Lookup(SetJSONLContext)
	if !ok {
		t.Fatal("set_jsonl_context not found")
	}
	item := d.Parameters.Properties["contexts"].Items
	if len(item.Required) != 2 || item.Required[0] != "timecode" || item.Required[1] != "workflow" {
		t.Errorf("required = %v", item.Required)
	}
}

func TestModesBindKnownTools(t *testing.T) {
	for _, m := range Modes() {
		if _, ok := Lookup(m.Tool); !ok {
			t.Errorf("mode %s bound to unknown tool %s", m.ID, m.Tool)
		}
		if m.Prompt == "" {
			t.Errorf("mode %s has no prompt", m.ID)
		}
	}
}

func TestModeByID(t *testing.T) {
	m, err := ModeByID("workflow-steps")
	if err != nil {
		t.Fatalf("ModeByID() error = %v", err)
	}
	if m.Tool != SetTimecodes {
		t.Errorf("tool = %s", m.Tool)
	}

	_, err = ModeByID("haiku")
	if !errors.Is(err, domain.ErrUnknownMode) {
		t.Errorf("error = %v, want ErrUnknownMode", err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		call  domain.FunctionCall
		check func(t *testing.T, r *domain.ModeResult)
	}{
		{
			name: "timecodes unescape apostrophes",
			call: domain.FunctionCall{Name: SetTimecodes, Args: map[string]any{
				"timecodes": []any{
					map[string]any{"time": "00:01", "text": `Open the user\'s profile`},
					map[string]any{"time": "00:12", "text": "Save"},
				},
			}},
			check: func(t *testing.T, r *domain.ModeResult) {
				if r.Kind != domain.ResultTimecodes || len(r.Timecodes) != 2 {
					t.Fatalf("result = %+v", r)
				}
				if r.Timecodes[0].Text != "Open the user's profile" {
					t.Errorf("text = %q", r.Timecodes[0].Text)
				}
				if r.Timecodes[1].Time != "00:12" {
					t.Errorf("order not preserved: %+v", r.Timecodes)
				}
			},
		},
		{
			name: "numeric values",
			call: domain.FunctionCall{Name: SetTimecodesWithNumericValues, Args: map[string]any{
				"timecodes": []any{map[string]any{"time": "00:05", "value": 7.5}},
			}},
			check: func(t *testing.T, r *domain.ModeResult) {
				if r.Timecodes[0].Value == nil || *r.Timecodes[0].Value != 7.5 {
					t.Errorf("value = %v", r.Timecodes[0].Value)
				}
			},
		},
		{
			name: "objects",
			call: domain.FunctionCall{Name: SetTimecodesWithObjects, Args: map[string]any{
				"timecodes": []any{map[string]any{"time": "00:05", "text": "Click", "objects": []any{"Save button"}}},
			}},
			check: func(t *testing.T, r *domain.ModeResult) {
				if len(r.Timecodes[0].Objects) != 1 || r.Timecodes[0].Objects[0] != "Save button" {
					t.Errorf("objects = %v", r.Timecodes[0].Objects)
				}
			},
		},
		{
			name: "diagram",
			call: domain.FunctionCall{Name: SetWorkflowDiagrams, Args: map[string]any{
				"mermaid": "flowchart TD\nA-->B", "plantuml": "@startuml\n@enduml",
			}},
			check: func(t *testing.T, r *domain.ModeResult) {
				if r.Kind != domain.ResultDiagram || r.Diagram.Mermaid != "flowchart TD\nA-->B" {
					t.Errorf("result = %+v", r)
				}
			},
		},
		{
			name: "jsonl context",
			call: domain.FunctionCall{Name: SetJSONLContext, Args: map[string]any{
				"contexts": []any{map[string]any{
					"timecode": "00:01",
					"workflow": map[string]any{"step": "Login"},
					"uiElements": []any{
						map[string]any{"type": "button", "label": "Sign in"},
					},
				}},
				"metadata": map[string]any{"totalSteps": 1.0},
			}},
			check: func(t *testing.T, r *domain.ModeResult) {
				if r.Kind != domain.ResultJSONLContext || len(r.Context.Contexts) != 1 {
					t.Fatalf("result = %+v", r)
				}
				rec := r.Context.Contexts[0]
				if rec.Workflow.Step != "Login" || rec.UIElements[0].Label != "Sign in" {
					t.Errorf("record = %+v", rec)
				}
				if r.Context.Metadata == nil || *r.Context.Metadata.TotalSteps != 1 {
					t.Errorf("metadata = %+v", r.Context.Metadata)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.call)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if r.Function != tt.call.Name {
				t.Errorf("Function = %s", r.Function)
			}
			tt.check(t, r)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse(domain.FunctionCall{Name: "set_haiku"}); err == nil {
		t.Error("expected error for unknown function")
	}
	_, err := Parse(domain.FunctionCall{Name: SetTimecodes, Args: map[string]any{"timecodes": "nope"}})
	if err == nil {
		t.Error("expected error for malformed arguments")
	}
}

func TestParse_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		call    domain.FunctionCall
		missing string
	}{
		{
			name:    "empty diagram",
			call:    domain.FunctionCall{Name: SetWorkflowDiagrams, Args: map[string]any{}},
			missing: "mermaid",
		},
		{
			name:    "nil args",
			call:    domain.FunctionCall{Name: SetTimecodes},
			missing: "timecodes",
		},
		{
			name: "timecode without text",
			call: domain.FunctionCall{Name: SetTimecodes, Args: map[string]any{
				"timecodes": []any{
					map[string]any{"time": "00:01", "text": "Open"},
					map[string]any{"time": "00:02"},
				},
			}},
			missing: "timecodes[1].text",
		},
		{
			name: "null numeric value",
			call: domain.FunctionCall{Name: SetTimecodesWithNumericValues, Args: map[string]any{
				"timecodes": []any{map[string]any{"time": "00:01", "value": nil}},
			}},
			missing: "timecodes[0].value",
		},
		{
			name: "context record without timecode",
			call: domain.FunctionCall{Name: SetJSONLContext, Args: map[string]any{
				"contexts": []any{map[string]any{"workflow": map[string]any{"step": "Login"}}},
			}},
			missing: "contexts[0].timecode",
		},
		{
			name: "context workflow without step",
			call: domain.FunctionCall{Name: SetJSONLContext, Args: map[string]any{
				"contexts": []any{map[string]any{"timecode": "00:01", "workflow": map[string]any{"goal": "Sign in"}}},
			}},
			missing: "contexts[0].workflow.step",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.call)
			if err == nil {
				t.Fatalf("Parse() = %+v, want error", r)
			}
			if !strings.Contains(err.Error(), `"`+tt.missing+`"`) {
				t.Errorf("error = %v, want missing %q", err, tt.missing)
			}
		})
	}
}
