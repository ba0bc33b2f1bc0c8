package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ServiceRequest struct {
	ID               uuid.UUID       `json:"id"`
	HomeownerID      uuid.UUID       `json:"homeowner_id"`
	HomeID           *uuid.UUID      `json:"home_id"`
	Category         string          `json:"category"`
	Description      string          `json:"description"`
	AISummary        string          `json:"ai_summary"`
	SeverityLevel    string          `json:"severity_level"` // "low" | "moderate" | "high" | "emergency"
	LikelyCause      string          `json:"likely_cause"`
	ConfidenceScore  float64         `json:"confidence_score"`
	EstimatedMinCost float64         `json:"estimated_min_cost"`
	EstimatedMaxCost float64         `json:"estimated_max_cost"`
	Scope            ServiceScope    `json:"scope"`
	AIMetadata       json.RawMessage `json:"ai_metadata"`
	MatchedProviders json.RawMessage `json:"matched_providers"`
	Status           string          `json:"status"` // "pending" | ...
	CreatedAt        time.Time       `json:"created_at"`
}

type ServiceScope struct {
	Includes []string `json:"includes"`
	Excludes []string `json:"excludes"`
}

// AIMetadata records that a request was created by the assistant.
type AIMetadata struct {
	AICreated bool      `json:"ai_created"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchedProvider is one entry of the denormalized matched_providers snapshot.
type MatchedProvider struct {
	OrgID      uuid.UUID `json:"org_id"`
	Name       string    `json:"name"`
	TrustScore *float64  `json:"trust_score,omitempty"`
}
