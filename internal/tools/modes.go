package tools

import (
	"fmt"

	"github.com/tjfontaine/workflow-lens/internal/domain"
)

// SystemInstruction is sent to every provider with every request.
const SystemInstruction = `You are an expert UX and business process analyst. You watch screen recordings of software being used and describe the workflow the user performs. ` +
	`Be precise about timestamps, name the applications and UI elements involved, and do not invent steps that are not visible. ` +
	`Always answer by calling exactly one of the provided functions, exactly once, with all required arguments.`

// Mode is one analysis type: a prompt bound to one canonical function.
type Mode struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Tool   string            `json:"tool"`
	Kind   domain.ResultKind `json:"kind"`
	Prompt string            `json:"-"`
}

var modes = []Mode{
	{
		ID:   "executive-summary",
		Name: "Executive Summary",
		Tool: SetTimecodes,
		Kind: domain.ResultTimecodes,
		Prompt: `Generate an executive summary of the workflow shown in this recording. ` +
			`Produce three to six key moments a manager needs to understand what was accomplished, each with a timecode and one concise sentence. ` +
			`Call set_timecodes once with the result.`,
	},
	{
		ID:   "workflow-steps",
		Name: "Workflow Steps",
		Tool: SetTimecodes,
		Kind: domain.ResultTimecodes,
		Prompt: `List every step the user performs in this recording, in order. ` +
			`For each step give the timecode at which it starts and a short imperative description such as "Open the settings page". ` +
			`Call set_timecodes once with the result.`,
	},
	{
		ID:   "ui-elements",
		Name: "UI Elements",
		Tool: SetTimecodesWithObjects,
		Kind: domain.ResultTimecodes,
		Prompt: `Identify the user interface elements the user interacts with in this recording. ` +
			`For each interaction give the timecode, a description of the interaction and the list of UI elements involved. ` +
			`Call set_timecodes_with_objects once with the result.`,
	},
	{
		ID:   "activity-chart",
		Name: "Activity Chart",
		Tool: SetTimecodesWithNumericValues,
		Kind: domain.ResultTimecodes,
		Prompt: `Rate the level of user activity throughout this recording on a scale from 0 (idle) to 10 (intense interaction). ` +
			`Sample at regular intervals and give a timecode and value for each sample. ` +
			`Call set_timecodes_with_numeric_values once with the result.`,
	},
	{
		ID:   "diagram",
		Name: "Diagram",
		Tool: SetWorkflowDiagrams,
		Kind: domain.ResultDiagram,
		Prompt: `Draw the workflow shown in this recording as a diagram. ` +
			`Provide a Mermaid flowchart (flowchart TD) and an equivalent PlantUML activity diagram, both syntactically valid, plus a short summary. ` +
			`Call set_workflow_diagrams once with the result.`,
	},
	{
		ID:   "jsonl-context",
		Name: "JSONL Context",
		Tool: SetJSONLContext,
		Kind: domain.ResultJSONLContext,
		Prompt: `Produce structured context records for this recording, one per meaningful moment. ` +
			`Each record needs a timecode and the workflow step, and should describe the screen, the user action and intent, the UI elements, data entered or produced, and the system response where visible. ` +
			`Add metadata with the total number of steps, the duration, the applications used and a summary. ` +
			`Call set_jsonl_context once with the result.`,
	},
}

// Modes returns the mode catalogue in display order.
func Modes() []Mode {
	return append([]Mode(nil), modes...)
}

// ModeByID returns the mode with the given id, or an error wrapping
// domain.ErrUnknownMode.
func ModeByID(id string) (Mode, error) {
	for _, m := range modes {
		if m.ID == id {
			return m, nil
		}
	}
	return Mode{}, fmt.Errorf("%w: %q", domain.ErrUnknownMode, id)
}
