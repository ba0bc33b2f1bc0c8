package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobTypeRequestMatched = "request-matched"
	RequestMatchedQueue   = "queue:request-matched"
)

type Job struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Type        string          `json:"type"` // "request-matched"
	ReferenceID uuid.UUID       `json:"reference_id"`
	ConfigJSON  json.RawMessage `json:"config"`
	RetryCount  int             `json:"retry_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RequestMatchedConfig is the payload of a request-matched job.
type RequestMatchedConfig struct {
	ServiceType string            `json:"service_type"`
	Summary     string            `json:"summary"`
	Providers   []MatchedProvider `json:"providers"`
}

// WebSocket message types
const (
	WSServiceRequestMatched = "service_request_matched"
	WSError                 = "error"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type RequestMatchedEvent struct {
	RequestID    uuid.UUID `json:"request_id"`
	ServiceType  string    `json:"service_type"`
	MatchedCount int       `json:"matched_count"`
	Providers    []string  `json:"providers"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}
