package conversation

import (
	"strings"

	"github.com/elliotchance/pie/v2"
)

type Confidence int

const (
	ConfidenceNone Confidence = iota
	// ConfidenceTextFallback means the tool name was only found in the
	// message text. A user echoing a tool name can trigger it.
	ConfidenceTextFallback
	ConfidenceStructured
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceStructured:
		return "structured"
	case ConfidenceTextFallback:
		return "text_fallback"
	default:
		return "none"
	}
}

type Classification struct {
	Tool       string
	Confidence Confidence
}

// classify reads the intended capability from an assistant message: the
// structured call name first, then a case-insensitive match in the text.
func classify(msg Message, known []string) Classification {
	if msg.Role != RoleAssistant {
		return Classification{}
	}

	if msg.ToolCall != nil {
		name := strings.ToLower(strings.TrimSpace(msg.ToolCall.Name))
		if idx := pie.FindFirstUsing(known, func(k string) bool { return k == name }); idx >= 0 {
			return Classification{Tool: known[idx], Confidence: ConfidenceStructured}
		}
	}

	text := strings.ToLower(msg.Text)
	if idx := pie.FindFirstUsing(known, func(k string) bool { return strings.Contains(text, k) }); idx >= 0 {
		return Classification{Tool: known[idx], Confidence: ConfidenceTextFallback}
	}

	return Classification{}
}

// routeAfterExtraction resumes an unfinished change flow, otherwise the turn
// is classified from scratch.
func routeAfterExtraction(s *State) Node {
	switch s.CurrentFlow {
	case FlowAppointment:
		return NodeAppointment
	case FlowTreatment:
		return NodeTreatment
	default:
		return NodeOrchestrating
	}
}

func routeAfterOrchestrator(s *State) Node {
	last, _ := s.lastMessage()

	switch classify(last, classificationToolNames).Tool {
	case ToolChangeRequest:
		return NodeConfirmChange
	case ToolQueryKnowledge:
		return NodeKnowledgeQuery
	case ToolEnd:
		return NodeTerminate
	default:
		return NodeAssistant
	}
}

// routeAfterChangeRequest reads the change classification, which precedes
// the tool message that closes it.
func routeAfterChangeRequest(s *State) Node {
	last, _ := s.lastAssistant()

	switch classify(last, changeToolNames).Tool {
	case ToolAppointment:
		return NodeAppointment
	case ToolTreatmentChange:
		return NodeTreatment
	default:
		return NodeAssistant
	}
}

// routeAfterChangeFlow hands off only on a structured commit call.
func routeAfterChangeFlow(s *State) Node {
	if call := s.pendingCall(); call != nil && call.Name == ToolChangeState {
		return NodeHandoff
	}

	return NodeSummarizing
}

var (
	classificationToolNames = capabilityNames(classificationCapabilities)
	changeToolNames         = capabilityNames(changeCapabilities)
)
