package conversation

import (
	"context"
	"errors"
	"fmt"
	"healthmate/app/service/history"
	"healthmate/app/service/knowledge"
	"healthmate/app/service/patient"
	"strings"
	"sync"
	"time"
)

type modelCall struct {
	kind     string
	messages []Message
	tools    []string
}

type scriptedResponse struct {
	msg   Message
	err   error
	block bool
}

// scriptedModel answers each kind of model call from its own queue. When a
// queue is empty the default for that kind is used.
type scriptedModel struct {
	mu     sync.Mutex
	queues map[string][]scriptedResponse
	calls  []modelCall
	nextID int
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{queues: make(map[string][]scriptedResponse)}
}

func (m *scriptedModel) push(kind string, responses ...Message) *scriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range responses {
		m.queues[kind] = append(m.queues[kind], scriptedResponse{msg: r})
	}

	return m
}

func (m *scriptedModel) fail(kind string, err error) *scriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queues[kind] = append(m.queues[kind], scriptedResponse{err: err})
	return m
}

func (m *scriptedModel) hang(kind string) *scriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queues[kind] = append(m.queues[kind], scriptedResponse{block: true})
	return m
}

func (m *scriptedModel) Generate(ctx context.Context, messages []Message, capabilities []Capability) (Message, error) {
	call := modelCall{
		kind:     callKind(messages, capabilities),
		messages: append([]Message(nil), messages...),
		tools:    capabilityNames(capabilities),
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	var next scriptedResponse
	if queue := m.queues[call.kind]; len(queue) > 0 {
		next = queue[0]
		m.queues[call.kind] = queue[1:]
	} else {
		next = scriptedResponse{msg: m.defaultResponse(call.kind)}
	}
	m.mu.Unlock()

	if next.block {
		<-ctx.Done()
		return Message{}, ctx.Err()
	}

	return next.msg, next.err
}

func (m *scriptedModel) defaultResponse(kind string) Message {
	m.nextID++

	switch kind {
	case "orchestrator":
		return Assistant("", &ToolCall{ID: fmt.Sprintf("call_%d", m.nextID), Name: ToolAssistant})
	case "extraction":
		return Assistant(`{"entities": [], "relationships": []}`, nil)
	case "summarize":
		return Assistant(fmt.Sprintf("summary %d", m.nextID), nil)
	case "knowledge_query":
		return Assistant("MATCH (n) RETURN n AS path1", nil)
	default:
		return Assistant(fmt.Sprintf("answer %d", m.nextID), nil)
	}
}

func (m *scriptedModel) callsOf(kind string) []modelCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []modelCall
	for _, c := range m.calls {
		if c.kind == kind {
			result = append(result, c)
		}
	}

	return result
}

func (m *scriptedModel) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		result = append(result, c.kind)
	}

	return result
}

func callKind(messages []Message, capabilities []Capability) string {
	names := capabilityNames(capabilities)
	switch {
	case len(names) > 0 && names[0] == ToolChangeRequest:
		return "orchestrator"
	case len(names) > 0 && names[0] == ToolAppointment:
		return "change_request"
	case len(names) > 0 && names[0] == ToolChangeState:
		return "change_flow"
	}

	if len(messages) == 0 {
		return "unknown"
	}

	first := messages[0].Text
	switch {
	case messages[0].Role == RoleHuman:
		return "summarize"
	case strings.HasPrefix(first, "You are a health assistant"):
		return "assistant"
	case strings.HasPrefix(first, "You are an expert in querying"):
		return "knowledge_query"
	case strings.HasPrefix(first, "Extract all health-related"):
		return "extraction"
	default:
		return "unknown"
	}
}

func callMessage(id, name, args string) Message {
	return Assistant("", &ToolCall{ID: id, Name: name, Arguments: args})
}

type fakeKnowledge struct {
	mu         sync.Mutex
	vocabulary knowledge.Vocabulary
	rows       []knowledge.Row
	queryErr   error
	upsertErr  error
	queries    []string
	upserts    []knowledge.Extraction
}

func (f *fakeKnowledge) Upsert(_ context.Context, entities []knowledge.Entity, relationships []knowledge.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.upsertErr != nil {
		return f.upsertErr
	}

	f.upserts = append(f.upserts, knowledge.Extraction{Entities: entities, Relationships: relationships})
	return nil
}

func (f *fakeKnowledge) Vocabulary(context.Context, string) (knowledge.Vocabulary, error) {
	return f.vocabulary, nil
}

func (f *fakeKnowledge) Query(_ context.Context, query string) ([]knowledge.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, query)
	return f.rows, f.queryErr
}

type fakeReference struct {
	mu       sync.Mutex
	passages []string
	err      error
	queries  []string
}

func (f *fakeReference) Search(_ context.Context, query string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, query)
	return f.passages, f.err
}

type memoryCheckpoints struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{data: make(map[string][]byte)}
}

func (m *memoryCheckpoints) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.data[key]
	return data, ok, nil
}

func (m *memoryCheckpoints) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = data
	m.saves++
	return nil
}

type fakeProfiles map[string]*patient.Profile

func (f fakeProfiles) Lookup(_ context.Context, id string) (*patient.Profile, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}

	return nil, patient.ErrNotFound
}

type fakeTranscripts struct {
	mu      sync.Mutex
	entries []history.Entry
	err     error
}

func (f *fakeTranscripts) Record(_ context.Context, entry history.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.entries = append(f.entries, entry)
	return nil
}

var errModelDown = errors.New("model unavailable")

func johnDoe() *patient.Profile {
	return &patient.Profile{
		ID:                "john",
		FirstName:         "John",
		LastName:          "Doe",
		MedicalCondition:  "hypertension",
		MedicationRegimen: "20mg Lisinopril daily",
		NextAppointment:   time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC),
		DoctorName:        "Dr. Adams",
	}
}

type testEngine struct {
	*Engine
	model     *scriptedModel
	knowledge *fakeKnowledge
	reference *fakeReference
}

func newTestEngine() *testEngine {
	model := newScriptedModel()
	kg := &fakeKnowledge{}
	ref := &fakeReference{}

	opts := DefaultOptions()
	opts.ModelTimeout = time.Second

	engine := NewEngine(model, kg, ref, opts)
	engine.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	return &testEngine{
		Engine:    engine,
		model:     model,
		knowledge: kg,
		reference: ref,
	}
}
