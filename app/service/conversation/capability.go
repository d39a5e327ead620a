package conversation

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tmc/langchaingo/llms"
)

const (
	ToolChangeRequest   = "change_request_tool"
	ToolQueryKnowledge  = "query_knowledge_graph_tool"
	ToolAssistant       = "assistant_tool"
	ToolEnd             = "end_tool"
	ToolAppointment     = "appt_rescheduler_tool"
	ToolTreatmentChange = "treatment_change_tool"
	ToolChangeState     = "change_state_tool"
)

// Capability describes a function the model may be asked to invoke.
type Capability struct {
	Name        string
	Description string
	Schema      map[string]any
}

func newCapability(tool mcp.Tool) Capability {
	properties := tool.InputSchema.Properties
	if properties == nil {
		properties = map[string]any{}
	}

	required := tool.InputSchema.Required
	if required == nil {
		required = []string{}
	}

	return Capability{
		Name:        tool.Name,
		Description: tool.Description,
		Schema: map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

func (c Capability) llmTool() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        c.Name,
			Description: c.Description,
			Parameters:  c.Schema,
		},
	}
}

var (
	classificationCapabilities = []Capability{
		newCapability(mcp.NewTool(ToolChangeRequest,
			mcp.WithDescription("The patient wants to change their treatment or appointment."),
		)),
		newCapability(mcp.NewTool(ToolQueryKnowledge,
			mcp.WithDescription("The patient asks about their own stored health information: conditions, medications, history."),
		)),
		newCapability(mcp.NewTool(ToolAssistant,
			mcp.WithDescription("General health question, advice or friendly conversation."),
		)),
		newCapability(mcp.NewTool(ToolEnd,
			mcp.WithDescription("The message is off-topic, unrelated, sensitive or controversial."),
		)),
	}

	changeCapabilities = []Capability{
		newCapability(mcp.NewTool(ToolAppointment,
			mcp.WithDescription("The patient wants to schedule, reschedule or ask about an appointment."),
		)),
		newCapability(mcp.NewTool(ToolTreatmentChange,
			mcp.WithDescription("The patient wants to change their treatment plan, medication regimen or another medical intervention."),
		)),
	}

	commitCapabilities = []Capability{
		newCapability(mcp.NewTool(ToolChangeState,
			mcp.WithDescription("Commit the change the patient asked for once all details are known."),
			mcp.WithString("state",
				mcp.Required(),
				mcp.Description("The requested change: a new appointment time or the treatment changes"),
			),
		)),
	}
)

func capabilityNames(capabilities []Capability) []string {
	names := make([]string, 0, len(capabilities))
	for _, c := range capabilities {
		names = append(names, c.Name)
	}

	return names
}

func findCapability(capabilities []Capability, name string) (Capability, bool) {
	for _, c := range capabilities {
		if c.Name == name {
			return c, true
		}
	}

	return Capability{}, false
}
