package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testService struct {
	*Service
	engine      *testEngine
	checkpoints *memoryCheckpoints
	transcripts *fakeTranscripts
}

func newTestService() *testService {
	engine := newTestEngine()
	checkpoints := newMemoryCheckpoints()
	transcripts := &fakeTranscripts{}

	svc := NewService(engine.Engine, checkpoints, fakeProfiles{"john": johnDoe()}, transcripts, "john")

	return &testService{
		Service:     svc,
		engine:      engine,
		checkpoints: checkpoints,
		transcripts: transcripts,
	}
}

func TestProcessMessageSavesState(t *testing.T) {
	svc := newTestService()
	svc.engine.model.push("assistant", Assistant("Rest well.", nil))

	resp, err := svc.ProcessMessage(context.Background(), TurnRequest{SessionID: "s1", Text: " I have a cold "})
	require.NoError(t, err)

	assert.False(t, resp.Failed)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "Rest well.", resp.Reply)
	assert.Equal(t, FlowAssistant, resp.Flow)

	state, err := svc.State(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "john", state.PatientID)
	assert.Equal(t, 1, state.TurnCounter)
	assert.Equal(t, Human("I have a cold"), state.Messages[0])

	require.Len(t, svc.transcripts.entries, 1)
	assert.Equal(t, "I have a cold", svc.transcripts.entries[0].UserMessage)
	assert.Equal(t, "Rest well.", svc.transcripts.entries[0].BotResponse)
}

func TestProcessMessageFailureKeepsCheckpoint(t *testing.T) {
	svc := newTestService()

	_, err := svc.ProcessMessage(context.Background(), TurnRequest{SessionID: "s1", Text: "first"})
	require.NoError(t, err)
	saved := string(svc.checkpoints.data[sessionKeyPrefix+"s1"])

	svc.engine.model.fail("orchestrator", errModelDown)

	resp, err := svc.ProcessMessage(context.Background(), TurnRequest{SessionID: "s1", Text: "second"})
	require.NoError(t, err)

	assert.True(t, resp.Failed)
	assert.Equal(t, ApologyReply, resp.Reply)
	assert.Equal(t, 1, svc.checkpoints.saves)
	assert.Equal(t, saved, string(svc.checkpoints.data[sessionKeyPrefix+"s1"]))
	assert.Len(t, svc.transcripts.entries, 1)
}

func TestProcessMessageRejectsEmptyInput(t *testing.T) {
	svc := newTestService()

	_, err := svc.ProcessMessage(context.Background(), TurnRequest{SessionID: "s1", Text: "   "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.ProcessMessage(context.Background(), TurnRequest{Text: "hello"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestProcessMessageUnknownPatientUsesPlaceholder(t *testing.T) {
	svc := newTestService()
	svc.engine.model.
		push("orchestrator", callMessage("o", ToolChangeRequest, "")).
		push("change_request", callMessage("c", ToolAppointment, "")).
		push("change_flow", callMessage("s", ToolChangeState, `{"state":"2026-10-23 10:00:00"}`))

	resp, err := svc.ProcessMessage(context.Background(), TurnRequest{SessionID: "s2", PatientID: "nobody", Text: "Move my appointment to Friday 10am"})
	require.NoError(t, err)

	assert.Contains(t, resp.Reply, "I will convey your request to Doctor.")
	assert.Equal(t, "Patient Patient is requesting an appointment change from unknown to 2026-10-23 10:00:00.", resp.Detail)

	state, err := svc.State(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, "nobody", state.PatientID)
}

func TestProcessMessageTranscriptFailureIsNotFatal(t *testing.T) {
	svc := newTestService()
	svc.transcripts.err = errors.New("disk full")

	resp, err := svc.ProcessMessage(context.Background(), TurnRequest{SessionID: "s1", Text: "hello"})
	require.NoError(t, err)
	assert.False(t, resp.Failed)
	assert.Equal(t, 1, svc.checkpoints.saves)
}

func TestProcessMessageSerializesSession(t *testing.T) {
	svc := newTestService()

	const turns = 3

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := svc.ProcessMessage(context.Background(), TurnRequest{SessionID: "shared", Text: fmt.Sprintf("message %d", i)})
			assert.NoError(t, err)
			assert.False(t, resp.Failed)
		}(i)
	}
	wg.Wait()

	var state State
	require.NoError(t, json.Unmarshal(svc.checkpoints.data[sessionKeyPrefix+"shared"], &state))

	assert.Len(t, state.Messages, turns*4)
	assert.Zero(t, state.TurnCounter)
	assert.NoError(t, ValidatePairing(state.Messages))
	assert.Zero(t, svc.locks.size())
}

func TestLoadStateDefaults(t *testing.T) {
	svc := newTestService()
	svc.checkpoints.data[sessionKeyPrefix+"old"] = []byte(`{"summary":"kept"}`)

	state, err := svc.State(context.Background(), "old")
	require.NoError(t, err)

	assert.Equal(t, "kept", state.Summary)
	assert.Equal(t, FlowOrchestrator, state.CurrentFlow)
	assert.NotNil(t, state.Messages)
}
