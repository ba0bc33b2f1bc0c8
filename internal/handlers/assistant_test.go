package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"homebase-backend/internal/assistant"
	"homebase-backend/internal/middleware"
	"homebase-backend/internal/models"
)

type stubEngine struct {
	last   assistant.TurnRequest
	result *assistant.TurnResult
	err    error
}

func (s *stubEngine) RunTurn(ctx context.Context, req assistant.TurnRequest) (*assistant.TurnResult, error) {
	s.last = req
	return s.result, s.err
}

type stubSessions struct {
	session  *models.AssistantSession
	messages []*models.AssistantMessage
	err      error
	limit    int
}

func (s *stubSessions) GetSession(ctx context.Context, id uuid.UUID) (*models.AssistantSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.session == nil || s.session.ID != id {
		return nil, models.ErrNotFound
	}
	return s.session, nil
}

func (s *stubSessions) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.AssistantMessage, error) {
	s.limit = limit
	return s.messages, nil
}

func chatRequest(t *testing.T, body interface{}, userID uuid.UUID, role string, orgID *uuid.UUID) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/chat", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	ctx := context.WithValue(req.Context(), chimiddleware.RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	ctx = context.WithValue(ctx, middleware.RoleKey, role)
	if orgID != nil {
		ctx = context.WithValue(ctx, middleware.OrgIDKey, *orgID)
	}
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var body models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	return body.Error
}

func TestAssistantHandler_Chat_PassesIdentityAndReturnsReply(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()
	engine := &stubEngine{result: &assistant.TurnResult{
		Reply:     "Your request is in. Three providers were notified.",
		SessionID: "s-1",
		ToolResults: []models.UIToolResult{
			{Type: "service_request", Data: map[string]any{"cost_range": "$150-$250"}},
		},
	}}
	h := NewAssistantHandler(engine, &stubSessions{}, nil)

	sessionID := " 2f0b9cf4-0f1c-4d4e-9f61-9a3b2b1f4e10 "
	body := map[string]interface{}{
		"session_id": sessionID,
		"message":    "My AC is blowing warm air",
		"history":    []map[string]string{{"role": "user", "content": "ignored"}},
		"context":    map[string]interface{}{"homeId": "h-1"},
	}

	rr := httptest.NewRecorder()
	h.Chat(rr, chatRequest(t, body, userID, "provider", &orgID))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if engine.last.UserID != userID || engine.last.Role != "provider" || engine.last.OrgID == nil || *engine.last.OrgID != orgID {
		t.Fatalf("unexpected identity: %+v", engine.last)
	}
	if engine.last.SessionID != strings.TrimSpace(sessionID) || engine.last.Context["homeId"] != "h-1" {
		t.Fatalf("unexpected turn request: %+v", engine.last)
	}

	var resp models.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SessionID != "s-1" || len(resp.ToolResults) != 1 || resp.ToolResults[0].Data["cost_range"] != "$150-$250" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAssistantHandler_Chat_OmitsEmptyToolResults(t *testing.T) {
	h := NewAssistantHandler(&stubEngine{result: &assistant.TurnResult{Reply: "What seems to be the problem?", SessionID: "s-1"}}, &stubSessions{}, nil)

	rr := httptest.NewRecorder()
	h.Chat(rr, chatRequest(t, map[string]string{"message": "hi there"}, uuid.New(), "homeowner", nil))

	if strings.Contains(rr.Body.String(), "tool_results") {
		t.Fatalf("expected tool_results to be omitted, got %s", rr.Body.String())
	}
}

func TestAssistantHandler_Chat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &assistant.ValidationError{Fields: map[string]string{"message": "Message is required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", &assistant.NotFoundError{Message: "Session not found"}, http.StatusNotFound, "NOT_FOUND"},
		{"upstream", &assistant.UpstreamError{Err: errors.New("quota")}, http.StatusBadGateway, "AI_ERROR"},
		{"wrapped upstream", fmt.Errorf("turn: %w", &assistant.UpstreamError{Err: errors.New("quota")}), http.StatusBadGateway, "AI_ERROR"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAssistantHandler(&stubEngine{err: tc.err}, &stubSessions{}, nil)
			rr := httptest.NewRecorder()
			h.Chat(rr, chatRequest(t, map[string]string{"message": "hello"}, uuid.New(), "homeowner", nil))

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			apiErr := decodeError(t, rr)
			if apiErr.Code != tc.code || apiErr.RequestID != "req-1" {
				t.Fatalf("unexpected error body: %+v", apiErr)
			}
		})
	}
}

func TestAssistantHandler_Chat_RejectsBadBody(t *testing.T) {
	engine := &stubEngine{}
	h := NewAssistantHandler(engine, &stubSessions{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/chat", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.Chat(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Chat(rr, chatRequest(t, map[string]string{"message": strings.Repeat("a", maxMessageLength+1)}, uuid.New(), "homeowner", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d for long message, got %d", http.StatusBadRequest, rr.Code)
	}
	if engine.last.Message != "" {
		t.Fatalf("engine should not run for rejected requests")
	}
}

func historyRequest(sessionID string, userID uuid.UUID) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", sessionID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assistant/sessions/"+sessionID+"/messages", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func TestAssistantHandler_History(t *testing.T) {
	sessionID, ownerID := uuid.New(), uuid.New()
	sessions := &stubSessions{
		session: &models.AssistantSession{ID: sessionID, UserID: ownerID, Role: "homeowner"},
		messages: []*models.AssistantMessage{
			{SessionID: sessionID, Seq: 1, Role: "user", Content: "hi"},
			{SessionID: sessionID, Seq: 2, Role: "assistant", Content: "Hello! What can I help with?"},
		},
	}
	h := NewAssistantHandler(&stubEngine{}, sessions, nil)

	rr := httptest.NewRecorder()
	h.History(rr, historyRequest(sessionID.String(), ownerID))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp models.SessionHistoryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SessionID != sessionID.String() || len(resp.Messages) != 2 || resp.Messages[1].Seq != 2 {
		t.Fatalf("unexpected history: %+v", resp)
	}
	if sessions.limit != historyPageLimit {
		t.Fatalf("expected limit %d, got %d", historyPageLimit, sessions.limit)
	}
}

func TestAssistantHandler_History_NotVisible(t *testing.T) {
	sessionID := uuid.New()
	sessions := &stubSessions{session: &models.AssistantSession{ID: sessionID, UserID: uuid.New()}}
	h := NewAssistantHandler(&stubEngine{}, sessions, nil)

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"foreign session", sessionID.String(), http.StatusNotFound},
		{"unknown session", uuid.NewString(), http.StatusNotFound},
		{"malformed id", "abc", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.History(rr, historyRequest(tc.id, uuid.New()))
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
		})
	}

	sessions.err = errors.New("db down")
	rr := httptest.NewRecorder()
	h.History(rr, historyRequest(sessionID.String(), uuid.New()))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}
