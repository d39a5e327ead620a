package conversation

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// ToolCall is a model's request to invoke a named capability. Arguments hold
// the raw JSON text produced by the model and may not parse.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

type Message struct {
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	ToolCall   *ToolCall `json:"tool_call,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
}

func Human(text string) Message {
	return Message{Role: RoleHuman, Text: text}
}

func Assistant(text string, call *ToolCall) Message {
	return Message{Role: RoleAssistant, Text: text, ToolCall: call}
}

func Tool(text, toolCallID string) Message {
	return Message{Role: RoleTool, Text: text, ToolCallID: toolCallID}
}

func System(text string) Message {
	return Message{Role: RoleSystem, Text: text}
}

func (m Message) HasToolCall() bool {
	return m.Role == RoleAssistant && m.ToolCall != nil
}

func (m Message) clone() Message {
	if m.ToolCall != nil {
		call := *m.ToolCall
		m.ToolCall = &call
	}

	return m
}

// formatTranscript renders messages as quoted speaker lines. System messages
// and empty assistant turns are skipped.
func formatTranscript(messages []Message) string {
	lines := make([]string, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case RoleHuman:
			lines = append(lines, fmt.Sprintf("Human: %q", m.Text))
		case RoleAssistant:
			if m.Text != "" {
				lines = append(lines, fmt.Sprintf("AI: %q", m.Text))
			}
		case RoleTool:
			lines = append(lines, fmt.Sprintf("Tool: %q", m.Text))
		}
	}

	return strings.Join(lines, "\n")
}
