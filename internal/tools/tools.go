// Package tools defines the five canonical structured-output functions and
// the analysis modes bound to them.
package tools

import "github.com/tjfontaine/workflow-lens/internal/schema"

// Function names. These are the wire contract consumers rely on to route a
// function call to the right result variant.
const (
	SetTimecodes                  = "set_timecodes"
	SetTimecodesWithObjects       = "set_timecodes_with_objects"
	SetTimecodesWithNumericValues = "set_timecodes_with_numeric_values"
	SetWorkflowDiagrams           = "set_workflow_diagrams"
	SetJSONLContext               = "set_jsonl_context"
)

func str(desc string) *schema.Schema {
	return &schema.Schema{Type: schema.TypeString, Description: desc}
}

func strList(desc string) *schema.Schema {
	return &schema.Schema{Type: schema.TypeArray, Description: desc, Items: &schema.Schema{Type: schema.TypeString}}
}

func object(props map[string]*schema.Schema, required ...string) *schema.Schema {
	return &schema.Schema{Type: schema.TypeObject, Properties: props, Required: required}
}

func timecodeList(item *schema.Schema) *schema.Schema {
	return object(map[string]*schema.Schema{
		"timecodes": {
			Type:        schema.TypeArray,
			Description: "List of timecode entries in chronological order",
			Items:       item,
		},
	}, "timecodes")
}

var declarations = []schema.Declaration{
	{
		Name:        SetTimecodes,
		Description: "Set the timecodes for the video with associated text",
		Parameters: timecodeList(object(map[string]*schema.Schema{
			"time": str("Timestamp in MM:SS or HH:MM:SS format"),
			"text": str("Description of what happens at this moment"),
		}, "time", "text")),
	},
	{
		Name:        SetTimecodesWithObjects,
		Description: "Set the timecodes for the video with associated text and the UI objects visible",
		Parameters: timecodeList(object(map[string]*schema.Schema{
			"time":    str("Timestamp in MM:SS or HH:MM:SS format"),
			"text":    str("Description of what happens at this moment"),
			"objects": strList("UI elements visible or interacted with"),
		}, "time", "text", "objects")),
	},
	{
		Name:        SetTimecodesWithNumericValues,
		Description: "Set the timecodes for the video with an associated numeric value",
		Parameters: timecodeList(object(map[string]*schema.Schema{
			"time":  str("Timestamp in MM:SS or HH:MM:SS format"),
			"value": {Type: schema.TypeNumber, Description: "Numeric value for this moment"},
		}, "time", "value")),
	},
	{
		Name:        SetWorkflowDiagrams,
		Description: "Set the workflow diagrams describing the process shown in the video",
		Parameters: object(map[string]*schema.Schema{
			"mermaid":  str("Mermaid flowchart source"),
			"plantuml": str("PlantUML activity diagram source"),
			"summary":  str("Short summary of the workflow"),
		}, "mermaid", "plantuml"),
	},
	{
		Name:        SetJSONLContext,
		Description: "Set structured per-moment context records describing the workflow",
		Parameters: object(map[string]*schema.Schema{
			"contexts": {
				Type:        schema.TypeArray,
				Description: "One record per meaningful moment, in chronological order",
				Items: object(map[string]*schema.Schema{
					"timecode": str("Timestamp in MM:SS or HH:MM:SS format"),
					"screen": object(map[string]*schema.Schema{
						"application": str("Application in focus"),
						"title":       str("Window or page title"),
						"description": str("What the screen shows"),
					}),
					"user": object(map[string]*schema.Schema{
						"action": str("What the user did"),
						"intent": str("Why the user did it"),
						"target": str("Element the action was applied to"),
					}),
					"workflow": object(map[string]*schema.Schema{
						"step":  str("Name of the workflow step"),
						"stage": str("Stage of the overall workflow"),
						"goal":  str("Goal of this step"),
					}, "step"),
					"uiElements": {
						Type:        schema.TypeArray,
						Description: "UI elements relevant to this moment",
						Items: object(map[string]*schema.Schema{
							"type":  str("Element type, e.g. button or input"),
							"label": str("Visible label"),
							"state": str("State such as enabled, selected or filled"),
						}),
					},
					"data": object(map[string]*schema.Schema{
						"inputs":  strList("Data entered by the user"),
						"outputs": strList("Data produced by the system"),
					}),
					"systemResponse": object(map[string]*schema.Schema{
						"type":    str("Kind of response, e.g. navigation or error"),
						"message": str("Message shown to the user"),
					}),
					"notes": str("Anything else worth recording"),
				}, "timecode", "workflow"),
			},
			"metadata": object(map[string]*schema.Schema{
				"totalSteps":   {Type: schema.TypeNumber, Description: "Number of workflow steps"},
				"duration":     str("Duration of the recording"),
				"applications": strList("Applications used"),
				"summary":      str("One paragraph summary"),
			}),
		}, "contexts"),
	},
}

// Declarations returns the canonical tool set. The slice is a copy; the
// schemas are shared and must not be modified.
func Declarations() []schema.Declaration {
	return append([]schema.Declaration(nil), declarations...)
}

// Lookup returns the declaration with the given name.
func Lookup(name string) (schema.Declaration, bool) {
	for _, d := range declarations {
		if d.Name == name {
			return d, true
		}
	}
	return schema.Declaration{}, false
}
