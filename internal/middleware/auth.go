package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	RoleKey      contextKey = "role"
	ProfileIDKey contextKey = "profile_id"
	OrgIDKey     contextKey = "org_id"
)

const defaultRole = "homeowner"

type JWTAuth struct {
	Secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret)}
}

// Identity is what the access token says about the caller.
type Identity struct {
	UserID    uuid.UUID
	Role      string
	ProfileID *uuid.UUID
	OrgID     *uuid.UUID
}

// Middleware validates the JWT and attaches the caller identity to the context
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		// Must be Bearer format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return j.Secret, nil
		})

		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			}
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token claims", r)
			return
		}

		id, err := identityFromClaims(claims)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), r)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, id.UserID)
		ctx = context.WithValue(ctx, RoleKey, id.Role)
		if id.ProfileID != nil {
			ctx = context.WithValue(ctx, ProfileIDKey, *id.ProfileID)
		}
		if id.OrgID != nil {
			ctx = context.WithValue(ctx, OrgIDKey, *id.OrgID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromClaims(claims jwt.MapClaims) (Identity, error) {
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return Identity{}, errors.New("Invalid user ID in token")
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return Identity{}, errors.New("Invalid user ID format")
	}

	id := Identity{UserID: userID, Role: defaultRole}
	if role, _ := claims["role"].(string); role != "" {
		id.Role = role
	}
	if id.ProfileID, err = optionalUUIDClaim(claims, "profile_id"); err != nil {
		return Identity{}, err
	}
	if id.OrgID, err = optionalUUIDClaim(claims, "org_id"); err != nil {
		return Identity{}, err
	}
	return id, nil
}

func optionalUUIDClaim(claims jwt.MapClaims, key string) (*uuid.UUID, error) {
	raw, _ := claims[key].(string)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errors.New("Invalid " + key + " format")
	}
	return &id, nil
}

// GetUserID extracts user_id from request context
func GetUserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

func GetRole(ctx context.Context) string {
	role, _ := ctx.Value(RoleKey).(string)
	return role
}

func GetProfileID(ctx context.Context) *uuid.UUID {
	if id, ok := ctx.Value(ProfileIDKey).(uuid.UUID); ok {
		return &id
	}
	return nil
}

func GetOrgID(ctx context.Context) *uuid.UUID {
	if id, ok := ctx.Value(OrgIDKey).(uuid.UUID); ok {
		return &id
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := chimiddleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
