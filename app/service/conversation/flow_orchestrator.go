package conversation

import (
	"context"
	"log/slog"
)

const (
	closeChangeRequest = "Will check if the request is for appointment rescheduling or treatment change."
	closeChangeKind    = "Need to call the right tool as per user request."
)

func (e *Engine) orchestrate(ctx context.Context, t *turn) error {
	messages := append([]Message{System(orchestratorPrompt)}, t.state.Messages...)

	resp, err := e.generate(ctx, "orchestrator", messages, classificationCapabilities)
	if err != nil {
		return err
	}

	if err = t.state.Append(resp); err != nil {
		return err
	}
	t.state.CurrentFlow = FlowOrchestrator

	logClassification(ctx, "orchestrator", classify(resp, classificationToolNames))

	return nil
}

func (e *Engine) confirmChange(ctx context.Context, t *turn) error {
	if err := closePendingCall(t.state, closeChangeRequest); err != nil {
		return err
	}

	messages := append([]Message{System(changeRequestPrompt)}, t.state.Messages...)

	resp, err := e.generate(ctx, "change_request", messages, changeCapabilities)
	if err != nil {
		return err
	}

	if err = t.state.Append(resp); err != nil {
		return err
	}
	t.state.CurrentFlow = FlowChangeRequest

	logClassification(ctx, "change_request", classify(resp, changeToolNames))

	return closePendingCall(t.state, closeChangeKind)
}

func logClassification(ctx context.Context, step string, c Classification) {
	switch c.Confidence {
	case ConfidenceStructured:
		slog.DebugContext(ctx, "Classified turn", "step", step, "tool", c.Tool)
	case ConfidenceTextFallback:
		slog.WarnContext(ctx, "Classified turn from message text",
			"kind", "classification_ambiguous",
			"step", step,
			"tool", c.Tool,
			"confidence", c.Confidence.String(),
		)
	default:
		slog.WarnContext(ctx, "Could not classify turn, falling back to assistant",
			"kind", "classification_ambiguous",
			"step", step,
		)
	}
}
