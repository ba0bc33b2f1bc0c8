package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"homebase-backend/internal/assistant"
	"homebase-backend/internal/middleware"
	"homebase-backend/internal/models"
)

const (
	maxMessageLength = 4000
	historyPageLimit = 200
)

type turnRunner interface {
	RunTurn(ctx context.Context, req assistant.TurnRequest) (*assistant.TurnResult, error)
}

type sessionReader interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.AssistantSession, error)
	RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.AssistantMessage, error)
}

type AssistantHandler struct {
	engine   turnRunner
	sessions sessionReader
	logger   *slog.Logger
}

func NewAssistantHandler(engine turnRunner, sessions sessionReader, logger *slog.Logger) *AssistantHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssistantHandler{engine: engine, sessions: sessions, logger: logger}
}

// POST /api/v1/assistant/chat
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("BAD_REQUEST", "Invalid request body", r))
		return
	}

	if len(req.Message) > maxMessageLength {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"message": "Message is too long"}, r))
		return
	}

	turn := assistant.TurnRequest{
		UserID:    middleware.GetUserID(r.Context()),
		ProfileID: middleware.GetProfileID(r.Context()),
		OrgID:     middleware.GetOrgID(r.Context()),
		Role:      middleware.GetRole(r.Context()),
		Message:   req.Message,
		Context:   req.Context,
	}
	if req.SessionID != nil {
		turn.SessionID = strings.TrimSpace(*req.SessionID)
	}

	result, err := h.engine.RunTurn(r.Context(), turn)
	if err != nil {
		h.logger.Error("assistant turn failed",
			"session_id", turn.SessionID,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Reply:       result.Reply,
		SessionID:   result.SessionID,
		ToolResults: result.ToolResults,
	})
}

// GET /api/v1/assistant/sessions/{id}/messages
func (h *AssistantHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("BAD_REQUEST", "Invalid session ID", r))
		return
	}

	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
			return
		}
		h.logger.Error("failed to load session", "session_id", sessionID, "error", err)
		handleServiceError(w, r, err)
		return
	}

	// Sessions owned by someone else look the same as missing ones.
	if session.UserID != userID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return
	}

	msgs, err := h.sessions.RecentMessages(r.Context(), sessionID, historyPageLimit)
	if err != nil {
		h.logger.Error("failed to load session messages", "session_id", sessionID, "error", err)
		handleServiceError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*models.AssistantMessage{}
	}

	writeJSON(w, http.StatusOK, models.SessionHistoryResponse{
		SessionID: sessionID.String(),
		Messages:  msgs,
	})
}
