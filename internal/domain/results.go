package domain

import (
	"bytes"
	"encoding/json"
)

// ResultKind tags the ModeResult variant.
type ResultKind string

const (
	ResultTimecodes    ResultKind = "timecodes"
	ResultDiagram      ResultKind = "diagram"
	ResultJSONLContext ResultKind = "jsonl_context"
)

// ModeResult is the structured output of one analysis mode. Exactly one of
// Timecodes, Diagram or Context is set, according to Kind.
type ModeResult struct {
	Kind      ResultKind    `json:"kind"`
	Function  string        `json:"function"`
	Timecodes []Timecode    `json:"timecodes,omitempty"`
	Diagram   *Diagram      `json:"diagram,omitempty"`
	Context   *JSONLContext `json:"context,omitempty"`
}

// Timecode is one entry of a timecode list. Text entries carry Text (and
// optionally Objects); numeric entries carry Value.
type Timecode struct {
	Time    string   `json:"time"`
	Text    string   `json:"text,omitempty"`
	Objects []string `json:"objects,omitempty"`
	Value   *float64 `json:"value,omitempty"`
}

// Diagram holds diagram sources produced by the model.
type Diagram struct {
	Mermaid  string `json:"mermaid"`
	PlantUML string `json:"plantuml"`
	Summary  string `json:"summary,omitempty"`
}

// JSONLContext is the per-moment structured context of a recording.
type JSONLContext struct {
	Contexts []ContextRecord  `json:"contexts"`
	Metadata *ContextMetadata `json:"metadata,omitempty"`
}

// ContextRecord describes one moment. Only Timecode and Workflow are required.
type ContextRecord struct {
	Timecode       string          `json:"timecode"`
	Screen         *ScreenInfo     `json:"screen,omitempty"`
	User           *UserAction     `json:"user,omitempty"`
	Workflow       WorkflowInfo    `json:"workflow"`
	UIElements     []UIElement     `json:"uiElements,omitempty"`
	Data           *DataFlow       `json:"data,omitempty"`
	SystemResponse *SystemResponse `json:"systemResponse,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

type ScreenInfo struct {
	Application string `json:"application,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type UserAction struct {
	Action string `json:"action,omitempty"`
	Intent string `json:"intent,omitempty"`
	Target string `json:"target,omitempty"`
}

type WorkflowInfo struct {
	Step  string `json:"step"`
	Stage string `json:"stage,omitempty"`
	Goal  string `json:"goal,omitempty"`
}

type UIElement struct {
	Type  string `json:"type,omitempty"`
	Label string `json:"label,omitempty"`
	State string `json:"state,omitempty"`
}

type DataFlow struct {
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

type SystemResponse struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// ContextMetadata carries aggregate statistics over the contexts.
type ContextMetadata struct {
	TotalSteps   *float64 `json:"totalSteps,omitempty"`
	Duration     string   `json:"duration,omitempty"`
	Applications []string `json:"applications,omitempty"`
	Summary      string   `json:"summary,omitempty"`
}

// JSONL renders the contexts as newline-delimited JSON, one record per line.
func (c *JSONLContext) JSONL() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range c.Contexts {
		if err := enc.Encode(rec); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
