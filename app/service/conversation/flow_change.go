package conversation

import (
	"context"
	"fmt"
	"log/slog"
)

func (e *Engine) changeAppointment(ctx context.Context, t *turn) error {
	now := e.now()

	prompt := fillTemplate(appointmentPrompt, map[string]any{
		"today":            now.Format("2006-01-02"),
		"weekday":          now.Weekday().String(),
		"next_appointment": t.profile.NextAppointmentText(),
	})

	return e.runChangeFlow(ctx, t, "appointment", FlowAppointment, prompt, func(requested string) string {
		if requested == "" {
			requested = "an unspecified time"
		}
		return fmt.Sprintf("Patient %s is requesting an appointment change from %s to %s.",
			t.profile.FullName(), t.profile.NextAppointmentText(), requested)
	})
}

func (e *Engine) changeTreatment(ctx context.Context, t *turn) error {
	now := e.now()

	regimen := t.profile.MedicationRegimen
	if regimen == "" {
		regimen = "unknown"
	}

	prompt := fillTemplate(treatmentPrompt, map[string]any{
		"today":   now.Format("2006-01-02"),
		"weekday": now.Weekday().String(),
		"regimen": regimen,
	})

	return e.runChangeFlow(ctx, t, "treatment", FlowTreatment, prompt, func(changes string) string {
		if changes == "" {
			changes = "unspecified changes"
		}
		return fmt.Sprintf("Patient %s is requesting the following treatment changes: %s.",
			t.profile.FullName(), changes)
	})
}

// runChangeFlow gathers details for a change. The flow stays current until
// the model commits the change with a structured call.
func (e *Engine) runChangeFlow(
	ctx context.Context,
	t *turn,
	call string,
	flow Flow,
	prompt string,
	describe func(state string) string,
) error {
	messages := []Message{System(prompt)}
	if t.state.Summary != "" {
		messages = append(messages, System("Summary of conversation earlier: "+t.state.Summary))
	}
	messages = append(messages, t.state.Messages...)

	resp, err := e.generate(ctx, call, messages, commitCapabilities)
	if err != nil {
		return err
	}

	if err = t.state.Append(resp); err != nil {
		return err
	}
	t.state.CurrentFlow = flow

	parsed, ok := parseToolCall(resp, commitCapabilities)
	if !ok {
		t.reply = resp.Text
		return nil
	}

	t.state.PendingHandoff = describe(parsed.String("state"))

	slog.InfoContext(ctx, "Change request captured",
		"flow", flow,
		"patient", t.profile.ID,
		"malformed", parsed.Malformed,
	)

	return nil
}

func (e *Engine) handoff(ctx context.Context, t *turn) error {
	payload := t.state.PendingHandoff
	reply := fmt.Sprintf("I will convey your request to %s. %s", t.profile.Clinician(), payload)

	if err := closePendingCall(t.state, payload); err != nil {
		return err
	}
	if err := t.state.Append(Assistant(reply, nil)); err != nil {
		return err
	}

	t.state.PendingHandoff = ""
	t.state.CurrentFlow = FlowAssistant
	t.reply = reply
	t.detail = payload

	slog.InfoContext(ctx, "Handed off change request",
		"clinician", t.profile.Clinician(),
		"patient", t.profile.ID,
		"registered", !t.profile.IsPlaceholder(),
		"telegram", true,
	)

	return nil
}
