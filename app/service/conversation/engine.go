package conversation

import (
	"context"
	"healthmate/app/config"
	"healthmate/app/service/knowledge"
	"healthmate/app/service/patient"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

type Node string

const (
	NodeStart          Node = "start"
	NodeExtraction     Node = "extraction"
	NodeOrchestrating  Node = "orchestrating"
	NodeConfirmChange  Node = "confirm_change"
	NodeKnowledgeQuery Node = "knowledge_query"
	NodeAssistant      Node = "assistant"
	NodeAppointment    Node = "appointment"
	NodeTreatment      Node = "treatment"
	NodeHandoff        Node = "handoff"
	NodeTerminate      Node = "terminate"
	NodeSummarizing    Node = "summarizing"
	NodeEnd            Node = "end"
)

// maxSteps bounds one turn; the longest path visits seven nodes before End.
const maxSteps = 16

const fallbackReply = "I'm sorry, I could not prepare an answer. Could you rephrase your message?"

type Options struct {
	CompactionThreshold int
	KeepRecent          int
	ExtractionInterval  int
	ExtractionWindow    int
	ModelTimeout        time.Duration
	KnowledgeTimeout    time.Duration
	ReferenceTimeout    time.Duration
}

func DefaultOptions() Options {
	return Options{
		CompactionThreshold: 14,
		KeepRecent:          2,
		ExtractionInterval:  3,
		ExtractionWindow:    5,
		ModelTimeout:        30 * time.Second,
		KnowledgeTimeout:    10 * time.Second,
		ReferenceTimeout:    10 * time.Second,
	}
}

func OptionsFromConfig(cfg config.Engine) Options {
	return Options{
		CompactionThreshold: cfg.CompactionThreshold,
		KeepRecent:          cfg.KeepRecent,
		ExtractionInterval:  cfg.ExtractionInterval,
		ExtractionWindow:    cfg.ExtractionWindow,
		ModelTimeout:        cfg.ModelTimeout,
		KnowledgeTimeout:    cfg.KnowledgeTimeout,
		ReferenceTimeout:    cfg.ReferenceTimeout,
	}
}

type handler func(ctx context.Context, t *turn) error

type router func(s *State) Node

// turn carries the working copy and the output of one Advance call.
type turn struct {
	state   *State
	profile *patient.Profile
	input   string

	reply  string
	detail string
}

type Engine struct {
	model     Model
	knowledge KnowledgeStore
	reference ReferenceStore
	opts      Options
	now       func() time.Time

	compactor *Compactor
	extractor *Extractor

	handlers map[Node]handler
	edges    map[Node]router
}

func NewEngine(model Model, knowledgeStore KnowledgeStore, reference ReferenceStore, opts Options) *Engine {
	e := &Engine{
		model:     model,
		knowledge: knowledgeStore,
		reference: reference,
		opts:      opts,
		now:       time.Now,
	}

	e.compactor = NewCompactor(opts.CompactionThreshold, opts.KeepRecent, e.generate)
	e.extractor = NewExtractor(opts.ExtractionInterval, opts.ExtractionWindow, e.generate, e.upsert)

	e.handlers = map[Node]handler{
		NodeStart:          e.start,
		NodeExtraction:     e.extract,
		NodeOrchestrating:  e.orchestrate,
		NodeConfirmChange:  e.confirmChange,
		NodeKnowledgeQuery: e.queryKnowledge,
		NodeAssistant:      e.assist,
		NodeAppointment:    e.changeAppointment,
		NodeTreatment:      e.changeTreatment,
		NodeHandoff:        e.handoff,
		NodeTerminate:      e.terminate,
		NodeSummarizing:    e.summarize,
	}

	e.edges = map[Node]router{
		NodeStart:          always(NodeExtraction),
		NodeExtraction:     routeAfterExtraction,
		NodeOrchestrating:  routeAfterOrchestrator,
		NodeConfirmChange:  routeAfterChangeRequest,
		NodeKnowledgeQuery: always(NodeAssistant),
		NodeAssistant:      always(NodeSummarizing),
		NodeAppointment:    routeAfterChangeFlow,
		NodeTreatment:      routeAfterChangeFlow,
		NodeHandoff:        always(NodeSummarizing),
		NodeTerminate:      always(NodeSummarizing),
		NodeSummarizing:    always(NodeEnd),
	}

	return e
}

func always(next Node) router {
	return func(*State) Node { return next }
}

// Advance runs one user turn against a private copy of state. The input state
// is never modified; on error the returned state is nil.
func (e *Engine) Advance(ctx context.Context, state *State, profile *patient.Profile, text string) (*State, TurnResult, error) {
	if profile == nil {
		profile = patient.Placeholder(state.PatientID)
	}

	t := &turn{
		state:   state.Clone(),
		profile: profile,
		input:   text,
	}

	node := NodeStart
	for steps := 0; node != NodeEnd; steps++ {
		if steps >= maxSteps {
			return nil, TurnResult{}, oops.In("conversation").With("node", node).Errorf("turn exceeded %d steps", maxSteps)
		}

		h, ok := e.handlers[node]
		if !ok {
			return nil, TurnResult{}, oops.In("conversation").With("node", node).Errorf("no handler for node")
		}
		if err := h(ctx, t); err != nil {
			return nil, TurnResult{}, err
		}

		next := e.edges[node](t.state)
		slog.DebugContext(ctx, "Conversation transition",
			"from", node,
			"to", next,
			"flow", t.state.CurrentFlow,
		)
		node = next
	}

	if err := ValidatePairing(t.state.Messages); err != nil {
		return nil, TurnResult{}, err
	}

	reply := t.reply
	if reply == "" {
		reply = fallbackReply
	}

	return t.state, TurnResult{
		Reply:  reply,
		Detail: t.detail,
		Flow:   t.state.CurrentFlow,
	}, nil
}

func (e *Engine) generate(ctx context.Context, call string, messages []Message, capabilities []Capability) (Message, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.ModelTimeout)
	defer cancel()

	start := time.Now()

	msg, err := e.model.Generate(ctx, messages, capabilities)
	if err != nil {
		return Message{}, external(call, err)
	}

	slog.DebugContext(ctx, "Model call finished",
		"call", call,
		"duration", time.Since(start),
		"tool", toolName(msg),
	)

	return sanitizeResponse(msg, capabilities), nil
}

func (e *Engine) upsert(ctx context.Context, extraction knowledge.Extraction) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.KnowledgeTimeout)
	defer cancel()

	if err := e.knowledge.Upsert(ctx, extraction.Entities, extraction.Relationships); err != nil {
		return external("knowledge_upsert", err)
	}

	return nil
}

func (e *Engine) start(_ context.Context, t *turn) error {
	return t.state.Append(Human(t.input))
}

func (e *Engine) extract(ctx context.Context, t *turn) error {
	return e.extractor.Tick(ctx, t.state)
}

func (e *Engine) summarize(ctx context.Context, t *turn) error {
	return e.compactor.Compact(ctx, t.state)
}

// closePendingCall answers an open call so the next model call sees a
// well-formed log.
func closePendingCall(s *State, text string) error {
	call := s.pendingCall()
	if call == nil {
		return nil
	}

	return s.Append(Tool(text, call.ID))
}

func toolName(msg Message) string {
	if msg.ToolCall == nil {
		return ""
	}

	return msg.ToolCall.Name
}
