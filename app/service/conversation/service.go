package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"healthmate/app/client/llm"
	"healthmate/app/config"
	"healthmate/app/service/history"
	"healthmate/app/service/knowledge"
	"healthmate/app/service/patient"
	"healthmate/app/service/reference"
	"healthmate/app/service/session"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/tmc/langchaingo/llms"
)

// ApologyReply is returned when a turn could not be completed.
const ApologyReply = "I'm sorry, something went wrong on my side. Please try again in a moment."

const sessionKeyPrefix = "conversation:"

type TurnRequest struct {
	SessionID string
	PatientID string
	Text      string
}

type TurnResponse struct {
	SessionID string
	Reply     string
	Detail    string
	Flow      Flow
	// Failed is set when the turn was aborted and nothing was saved.
	Failed bool
}

type Service struct {
	engine      *Engine
	checkpoints CheckpointStore
	profiles    ProfileDirectory
	transcripts TranscriptRecorder

	defaultPatientID string
	locks            *sessionLocks
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	llmClient := do.MustInvoke[*llm.Client](di)

	model := NewLangchainModel(llmClient.Model, llms.WithTemperature(cfg.OpenAI.Temperature))

	engine := NewEngine(
		model,
		do.MustInvoke[*knowledge.Service](di),
		do.MustInvoke[*reference.Service](di),
		OptionsFromConfig(cfg.Engine),
	)

	return NewService(
		engine,
		do.MustInvoke[*session.Service](di),
		do.MustInvoke[*patient.Service](di),
		do.MustInvoke[*history.Service](di),
		cfg.Patient.DefaultID,
	), nil
}

func NewService(
	engine *Engine,
	checkpoints CheckpointStore,
	profiles ProfileDirectory,
	transcripts TranscriptRecorder,
	defaultPatientID string,
) *Service {
	return &Service{
		engine:           engine,
		checkpoints:      checkpoints,
		profiles:         profiles,
		transcripts:      transcripts,
		defaultPatientID: defaultPatientID,
		locks:            newSessionLocks(),
	}
}

// ProcessMessage runs one turn. Turns of the same session are serialized.
// A failed turn yields the apology reply and leaves the checkpoint untouched.
func (s *Service) ProcessMessage(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	text := strings.TrimSpace(req.Text)
	if req.SessionID == "" || text == "" {
		return nil, oops.In("conversation").Code("invalid_request").Wrap(ErrInvalidRequest)
	}

	unlock := s.locks.lock(req.SessionID)
	defer unlock()

	start := time.Now()

	resp, err := s.processLocked(ctx, req.SessionID, req.PatientID, text)
	if err != nil {
		slog.ErrorContext(ctx, "Turn failed",
			"session", req.SessionID,
			"external", IsExternal(err),
			"error", err,
		)

		return &TurnResponse{
			SessionID: req.SessionID,
			Reply:     ApologyReply,
			Failed:    true,
		}, nil
	}

	slog.InfoContext(ctx, "Turn processed",
		"session", req.SessionID,
		"flow", resp.Flow,
		"duration", time.Since(start),
	)

	return resp, nil
}

func (s *Service) processLocked(ctx context.Context, sessionID, patientID, text string) (*TurnResponse, error) {
	state, err := s.loadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch {
	case patientID != "":
		state.PatientID = patientID
	case state.PatientID == "":
		state.PatientID = s.defaultPatientID
	}

	profile := s.lookupProfile(ctx, state.PatientID)

	next, result, err := s.engine.Advance(ctx, state, profile, text)
	if err != nil {
		return nil, err
	}

	if err = s.saveState(ctx, sessionID, next); err != nil {
		return nil, err
	}

	if err = s.transcripts.Record(ctx, history.Entry{
		SessionID:   sessionID,
		PatientID:   next.PatientID,
		UserMessage: text,
		BotResponse: result.Reply,
	}); err != nil {
		slog.WarnContext(ctx, "Failed to record transcript", "session", sessionID, "error", err)
	}

	return &TurnResponse{
		SessionID: sessionID,
		Reply:     result.Reply,
		Detail:    result.Detail,
		Flow:      result.Flow,
	}, nil
}

// State returns the last saved state of a session, or a fresh one.
func (s *Service) State(ctx context.Context, sessionID string) (*State, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	return s.loadState(ctx, sessionID)
}

func (s *Service) loadState(ctx context.Context, sessionID string) (*State, error) {
	data, ok, err := s.checkpoints.Load(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		return nil, oops.In("conversation").With("session", sessionID).Wrapf(err, "failed to load session")
	}
	if !ok {
		return NewState(""), nil
	}

	var state State
	if err = json.Unmarshal(data, &state); err != nil {
		return nil, oops.In("conversation").With("session", sessionID).Wrapf(err, "failed to decode session")
	}
	if state.Messages == nil {
		state.Messages = []Message{}
	}
	if state.CurrentFlow == "" {
		state.CurrentFlow = FlowOrchestrator
	}

	return &state, nil
}

func (s *Service) saveState(ctx context.Context, sessionID string, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return oops.In("conversation").With("session", sessionID).Wrapf(err, "failed to encode session")
	}

	if err = s.checkpoints.Save(ctx, sessionKeyPrefix+sessionID, data); err != nil {
		return oops.In("conversation").With("session", sessionID).Wrapf(err, "failed to save session")
	}

	return nil
}

func (s *Service) lookupProfile(ctx context.Context, patientID string) *patient.Profile {
	if patientID == "" {
		return patient.Placeholder("")
	}

	profile, err := s.profiles.Lookup(ctx, patientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			slog.WarnContext(ctx, "Patient profile not found, using placeholder", "patient", patientID)
		} else {
			slog.ErrorContext(ctx, "Failed to look up patient profile, using placeholder",
				"patient", patientID,
				"error", err,
			)
		}

		return patient.Placeholder(patientID)
	}

	return profile
}
