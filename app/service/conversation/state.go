package conversation

import (
	"github.com/samber/oops"
)

type Flow string

const (
	FlowOrchestrator   Flow = "orchestrator"
	FlowChangeRequest  Flow = "change_request"
	FlowAppointment    Flow = "appointment"
	FlowTreatment      Flow = "treatment"
	FlowAssistant      Flow = "assistant"
	FlowKnowledgeQuery Flow = "knowledge_query"
	FlowHandoff        Flow = "handoff"
	FlowTerminate      Flow = "terminate"
)

// State is the checkpointed conversation of one session.
type State struct {
	Messages       []Message `json:"messages"`
	TurnCounter    int       `json:"turn_counter"`
	Summary        string    `json:"summary"`
	PendingHandoff string    `json:"pending_handoff,omitempty"`
	CurrentFlow    Flow      `json:"current_flow"`
	PatientID      string    `json:"patient_id,omitempty"`
}

func NewState(patientID string) *State {
	return &State{
		Messages:    []Message{},
		CurrentFlow: FlowOrchestrator,
		PatientID:   patientID,
	}
}

// Clone returns a deep copy that can be mutated without touching s.
func (s *State) Clone() *State {
	clone := *s
	clone.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		clone.Messages[i] = m.clone()
	}

	return &clone
}

// Append adds messages in order. A Tool message must answer the call of the
// nearest preceding assistant message that carries one.
func (s *State) Append(messages ...Message) error {
	for _, m := range messages {
		if m.Role == RoleTool {
			call := nearestCall(s.Messages, len(s.Messages))
			if call == nil || call.ID != m.ToolCallID {
				return oops.In("conversation").
					With("tool_call_id", m.ToolCallID).
					Wrap(ErrOrphanToolMessage)
			}
		}

		s.Messages = append(s.Messages, m)
	}

	return nil
}

// pendingCall returns the call of the last message when it is an assistant
// call that has not been answered yet.
func (s *State) pendingCall() *ToolCall {
	last, ok := s.lastMessage()
	if !ok || !last.HasToolCall() {
		return nil
	}

	return last.ToolCall
}

func (s *State) lastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}

	return s.Messages[len(s.Messages)-1], true
}

func (s *State) lastAssistant() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}

	return Message{}, false
}

func (s *State) lastHuman() string {
	recent := s.recentHuman(1)
	if len(recent) == 0 {
		return ""
	}

	return recent[0]
}

// recentHuman returns up to n most recent human utterances, oldest first.
func (s *State) recentHuman(n int) []string {
	var reversed []string
	for i := len(s.Messages) - 1; i >= 0 && len(reversed) < n; i-- {
		if s.Messages[i].Role == RoleHuman {
			reversed = append(reversed, s.Messages[i].Text)
		}
	}

	result := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		result = append(result, reversed[i])
	}

	return result
}

// nearestCall finds the tool call of the closest assistant message before
// index end.
func nearestCall(messages []Message, end int) *ToolCall {
	for i := end - 1; i >= 0; i-- {
		if messages[i].HasToolCall() {
			return messages[i].ToolCall
		}
	}

	return nil
}

// ValidatePairing reports the first Tool message that does not answer the
// nearest preceding call.
func ValidatePairing(messages []Message) error {
	for i, m := range messages {
		if m.Role != RoleTool {
			continue
		}

		call := nearestCall(messages, i)
		if call == nil || call.ID != m.ToolCallID {
			return oops.In("conversation").
				With("index", i).
				With("tool_call_id", m.ToolCallID).
				Wrap(ErrOrphanToolMessage)
		}
	}

	return nil
}

// TurnResult is what one turn surfaces to the caller.
type TurnResult struct {
	Reply  string
	Detail string
	Flow   Flow
}
