package api

import (
	"healthmate/app/service/conversation"
	"healthmate/app/service/history"
	"healthmate/app/service/patient"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	sessionCookie    = "session_id"
	sessionCookieTTL = 30 * 24 * time.Hour
)

type handlers struct {
	conversation Conversation
	history      History
	patients     Patients
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	PatientID string `json:"patient_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID      string   `json:"session_id"`
	Response       string   `json:"response"`
	AdditionalInfo string   `json:"additional_info"`
	HistoryDates   []string `json:"history_dates"`
}

func (h *handlers) chat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Message) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "message is required")
	}

	sessionID := h.sessionID(c, req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resp, err := h.conversation.ProcessMessage(c.UserContext(), conversation.TurnRequest{
		SessionID: sessionID,
		PatientID: req.PatientID,
		Text:      req.Message,
	})
	if err != nil {
		return err
	}

	dates, err := h.history.Dates(c.UserContext(), sessionID)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Expires:  time.Now().Add(sessionCookieTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.JSON(chatResponse{
		SessionID:      sessionID,
		Response:       resp.Reply,
		AdditionalInfo: resp.Detail,
		HistoryDates:   dates,
	})
}

func (h *handlers) historyDates(c *fiber.Ctx) error {
	sessionID, err := h.requireSession(c, c.Query("session_id"))
	if err != nil {
		return err
	}

	dates, err := h.history.Dates(c.UserContext(), sessionID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"dates": dates})
}

func (h *handlers) historyByDate(c *fiber.Ctx) error {
	sessionID, err := h.requireSession(c, c.Query("session_id"))
	if err != nil {
		return err
	}

	lines, err := h.history.ByDate(c.UserContext(), sessionID, c.Params("date"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"history": lines})
}

func (h *handlers) historySearch(c *fiber.Ctx) error {
	var q history.SearchQuery
	if err := c.BodyParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(q.Keyword) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "search_keyword is required")
	}

	sessionID, err := h.requireSession(c, q.SessionID)
	if err != nil {
		return err
	}
	q.SessionID = sessionID

	matches, err := h.history.Search(c.UserContext(), q)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"results": matches})
}

type sessionResponse struct {
	SessionID      string `json:"session_id"`
	PatientID      string `json:"patient_id"`
	CurrentFlow    string `json:"current_flow"`
	Summary        string `json:"summary"`
	PendingHandoff string `json:"pending_handoff"`
	TurnCounter    int    `json:"turn_counter"`
	Messages       int    `json:"messages"`
}

// session reports where the caller's conversation currently stands.
func (h *handlers) session(c *fiber.Ctx) error {
	sessionID, err := h.requireSession(c, c.Query("session_id"))
	if err != nil {
		return err
	}

	state, err := h.conversation.State(c.UserContext(), sessionID)
	if err != nil {
		return err
	}

	return c.JSON(sessionResponse{
		SessionID:      sessionID,
		PatientID:      state.PatientID,
		CurrentFlow:    string(state.CurrentFlow),
		Summary:        state.Summary,
		PendingHandoff: state.PendingHandoff,
		TurnCounter:    state.TurnCounter,
		Messages:       len(state.Messages),
	})
}

func (h *handlers) getPatient(c *fiber.Ctx) error {
	p, err := h.patients.Lookup(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(p)
}

// putPatient creates or replaces the record the engine reads the patient's
// identity, regimen and appointments from.
func (h *handlers) putPatient(c *fiber.Ctx) error {
	var p patient.Profile
	if err := c.BodyParser(&p); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	p.ID = c.Params("id")
	if strings.TrimSpace(p.FirstName) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "first_name is required")
	}

	if err := h.patients.Save(c.UserContext(), &p); err != nil {
		return err
	}

	return c.JSON(&p)
}

// sessionID prefers an explicit id over the session cookie.
func (h *handlers) sessionID(c *fiber.Ctx, explicit string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return id
	}

	return c.Cookies(sessionCookie)
}

// requireSession is sessionID for endpoints that must not run without one.
func (h *handlers) requireSession(c *fiber.Ctx, explicit string) (string, error) {
	id := h.sessionID(c, explicit)
	if id == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}

	return id, nil
}
