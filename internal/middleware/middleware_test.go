package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestJWTMiddleware_AttachesIdentity(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	userID, orgID := uuid.New(), uuid.New()

	token := signToken(t, auth, Identity{UserID: userID, Role: "provider", OrgID: &orgID})

	var got Identity
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Identity{
			UserID:    GetUserID(r.Context()),
			Role:      GetRole(r.Context()),
			ProfileID: GetProfileID(r.Context()),
			OrgID:     GetOrgID(r.Context()),
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.UserID != userID || got.Role != "provider" || got.OrgID == nil || *got.OrgID != orgID || got.ProfileID != nil {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestJWTMiddleware_DefaultsRoleToHomeowner(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	token := signToken(t, auth, Identity{UserID: uuid.New()})

	var role string
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = GetRole(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if role != "homeowner" {
		t.Fatalf("expected homeowner, got %q", role)
	}
}

func TestJWTMiddleware_Rejects(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"exp":     time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("test-secret"))
	badOrg, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"org_id":  "not-a-uuid",
		"exp":     time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("test-secret"))

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "UNAUTHORIZED"},
		{"not bearer", "Token abc", "UNAUTHORIZED"},
		{"garbage", "Bearer abc", "UNAUTHORIZED"},
		{"expired", "Bearer " + expired, "TOKEN_EXPIRED"},
		{"bad org claim", "Bearer " + badOrg, "UNAUTHORIZED"},
	}

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be reached")
	}))
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			assertErrorCode(t, rr, tc.code)
		})
	}
}

func TestJWTMiddleware_ErrorCarriesRequestID(t *testing.T) {
	handler := chimiddleware.RequestID(NewJWTAuth("test-secret").Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "req-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var body struct {
		Error struct {
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body.Error.RequestID != "req-123" {
		t.Fatalf("expected incoming request id in error body, got %q", body.Error.RequestID)
	}
}

func TestRateLimiter_PerUser(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	alice := NewJWTAuth("s").Middleware(handler)
	token := signToken(t, NewJWTAuth("s"), Identity{UserID: uuid.New()})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		alice.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence: %v", codes)
	}

	// Another user from the same address has their own bucket.
	other := signToken(t, NewJWTAuth("s"), Identity{UserID: uuid.New()})
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	rr := httptest.NewRecorder()
	alice.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected second user to be allowed, got %d", rr.Code)
	}
}

// signToken issues a short-lived access token carrying id.
func signToken(t *testing.T, auth *JWTAuth, id Identity) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": id.UserID.String(),
		"role":    id.Role,
		"exp":     time.Now().Add(15 * time.Minute).Unix(),
		"iat":     time.Now().Unix(),
	}
	if id.ProfileID != nil {
		claims["profile_id"] = id.ProfileID.String()
	}
	if id.OrgID != nil {
		claims["org_id"] = id.OrgID.String()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(auth.Secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, code string) {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body.Error.Code != code {
		t.Fatalf("expected %s, got %s", code, body.Error.Code)
	}
}
