package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"homebase-backend/internal/assistant"
	"homebase-backend/internal/handlers"
	"homebase-backend/internal/middleware"
	"homebase-backend/internal/models"
)

type echoEngine struct{}

func (echoEngine) RunTurn(ctx context.Context, req assistant.TurnRequest) (*assistant.TurnResult, error) {
	return &assistant.TurnResult{Reply: "Role is " + req.Role + ", how can I help?", SessionID: "s-1"}, nil
}

type noSessions struct{}

func (noSessions) GetSession(ctx context.Context, id uuid.UUID) (*models.AssistantSession, error) {
	return nil, models.ErrNotFound
}

func (noSessions) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.AssistantMessage, error) {
	return nil, nil
}

const testSecret = "test-secret"

func newTestRouter() http.Handler {
	h := handlers.NewAssistantHandler(echoEngine{}, noSessions{}, nil)
	return New(middleware.NewJWTAuth(testSecret), h, nil, "http://localhost:5173")
}

func bearer(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"exp":     time.Now().Add(15 * time.Minute).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + token
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("unexpected health response: %d %s", rr.Code, rr.Body.String())
	}
}

func TestRouter_ErrorsCarryGeneratedRequestID(t *testing.T) {
	r := newTestRouter()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/assistant/chat", strings.NewReader(`{"message":"hi"}`)))

	var body models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body.Error.RequestID == "" {
		t.Fatalf("expected a generated request id in the error body")
	}
}

func TestRouter_CORS(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/assistant/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code >= 300 {
		t.Fatalf("expected preflight to succeed, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("expected allow-origin header, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials to be allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("expected foreign origin to get no CORS headers, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRouter_ChatRequiresAuth(t *testing.T) {
	r := newTestRouter()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/assistant/chat", strings.NewReader(`{"message":"hi"}`)))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRouter_ChatWithToken(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/chat", strings.NewReader(`{"message":"what is on today"}`))
	req.Header.Set("Authorization", bearer(t, uuid.New(), "provider"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Role is provider") {
		t.Fatalf("expected role from token to reach the engine, got %s", rr.Body.String())
	}
}

func TestRouter_HistoryNotFound(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assistant/sessions/"+uuid.NewString()+"/messages", nil)
	req.Header.Set("Authorization", bearer(t, uuid.New(), ""))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
