package conversation

import (
	"context"
	"fmt"
	"strings"
)

const (
	closeAssistant = "Calling Assistant"
	closeEnd       = "Request declined as off-topic."

	declineReply = "I'm sorry, but I can only help with health questions, your treatment or your appointments."
)

func (e *Engine) assist(ctx context.Context, t *turn) error {
	if err := closePendingCall(t.state, closeAssistant); err != nil {
		return err
	}

	passages, err := e.search(ctx, t.state.lastHuman())
	if err != nil {
		return err
	}

	messages := []Message{
		System(fillTemplate(assistantPrompt, map[string]any{
			"context": formatPassages(passages),
		})),
		System(fmt.Sprintf("Summary of conversation earlier: %s\n\nPatient context: %s",
			t.state.Summary, t.profile.Context())),
	}
	messages = append(messages, t.state.Messages...)

	resp, err := e.generate(ctx, "assistant", messages, nil)
	if err != nil {
		return err
	}

	if err = t.state.Append(resp); err != nil {
		return err
	}
	t.state.CurrentFlow = FlowAssistant
	t.reply = resp.Text

	return nil
}

func (e *Engine) terminate(_ context.Context, t *turn) error {
	if err := closePendingCall(t.state, closeEnd); err != nil {
		return err
	}

	if err := t.state.Append(Assistant(declineReply, nil)); err != nil {
		return err
	}
	t.state.CurrentFlow = FlowTerminate
	t.reply = declineReply

	return nil
}

func (e *Engine) search(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.ReferenceTimeout)
	defer cancel()

	passages, err := e.reference.Search(ctx, query)
	if err != nil {
		return nil, external("reference_search", err)
	}

	return passages, nil
}

func formatPassages(passages []string) string {
	if len(passages) == 0 {
		return "No reference material found."
	}

	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, p)
	}

	return b.String()
}
