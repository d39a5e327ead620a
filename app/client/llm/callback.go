package llm

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
)

var _ callbacks.Handler = LogCallbackHandler{}

// LogCallbackHandler traces model traffic through slog.
type LogCallbackHandler struct {
	callbacks.SimpleHandler
}

func (l LogCallbackHandler) HandleLLMGenerateContentStart(ctx context.Context, ms []llms.MessageContent) {
	slog.DebugContext(ctx, "LLM generate content start", "messages", len(ms))
}

func (l LogCallbackHandler) HandleLLMGenerateContentEnd(ctx context.Context, res *llms.ContentResponse) {
	if res == nil || len(res.Choices) == 0 {
		slog.DebugContext(ctx, "LLM generate content end", "choices", 0)
		return
	}

	choice := res.Choices[0]
	toolNames := make([]string, 0, len(choice.ToolCalls))
	for _, call := range choice.ToolCalls {
		if call.FunctionCall != nil {
			toolNames = append(toolNames, call.FunctionCall.Name)
		}
	}

	slog.DebugContext(ctx, "LLM generate content end",
		"choices", len(res.Choices),
		"stop_reason", choice.StopReason,
		"content_length", len(choice.Content),
		"tool_calls", toolNames,
	)
}

func (l LogCallbackHandler) HandleLLMError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "LLM error", "error", err)
}
