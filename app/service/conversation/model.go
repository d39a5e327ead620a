package conversation

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
)

// Model produces the next assistant message for a conversation. The given
// capabilities are offered for this call only.
type Model interface {
	Generate(ctx context.Context, messages []Message, capabilities []Capability) (Message, error)
}

var errNoChoices = errors.New("model returned no choices")

// LangchainModel adapts an llms.Model to Model.
type LangchainModel struct {
	llm  llms.Model
	opts []llms.CallOption
}

func NewLangchainModel(llm llms.Model, opts ...llms.CallOption) *LangchainModel {
	return &LangchainModel{
		llm:  llm,
		opts: opts,
	}
}

func (m *LangchainModel) Generate(ctx context.Context, messages []Message, capabilities []Capability) (Message, error) {
	options := slices.Clone(m.opts)
	if len(capabilities) > 0 {
		tools := make([]llms.Tool, 0, len(capabilities))
		for _, c := range capabilities {
			tools = append(tools, c.llmTool())
		}
		options = append(options, llms.WithTools(tools))
	}

	resp, err := m.llm.GenerateContent(ctx, toMessageContent(messages), options...)
	if err != nil {
		return Message{}, err
	}

	if len(resp.Choices) == 0 {
		return Message{}, errNoChoices
	}

	return fromChoice(resp.Choices[0]), nil
}

func fromChoice(choice *llms.ContentChoice) Message {
	var call *ToolCall

	if len(choice.ToolCalls) > 0 && choice.ToolCalls[0].FunctionCall != nil {
		tc := choice.ToolCalls[0]
		call = &ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		}
	} else if choice.FuncCall != nil {
		call = &ToolCall{
			Name:      choice.FuncCall.Name,
			Arguments: choice.FuncCall.Arguments,
		}
	}

	if call != nil && call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}

	return Assistant(strings.TrimSpace(choice.Content), call)
}

func toMessageContent(messages []Message) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages))
	callNames := make(map[string]string)

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			result = append(result, llms.TextParts(llms.ChatMessageTypeSystem, m.Text))
		case RoleHuman:
			result = append(result, llms.TextParts(llms.ChatMessageTypeHuman, m.Text))
		case RoleAssistant:
			var parts []llms.ContentPart
			if m.Text != "" {
				parts = append(parts, llms.TextContent{Text: m.Text})
			}
			if m.ToolCall != nil {
				args := m.ToolCall.Arguments
				if strings.TrimSpace(args) == "" {
					args = "{}"
				}
				parts = append(parts, llms.ToolCall{
					ID:   m.ToolCall.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      m.ToolCall.Name,
						Arguments: args,
					},
				})
				callNames[m.ToolCall.ID] = m.ToolCall.Name
			}
			if len(parts) == 0 {
				continue
			}
			result = append(result, llms.MessageContent{
				Role:  llms.ChatMessageTypeAI,
				Parts: parts,
			})
		case RoleTool:
			result = append(result, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: m.ToolCallID,
					Name:       callNames[m.ToolCallID],
					Content:    m.Text,
				}},
			})
		}
	}

	return result
}
