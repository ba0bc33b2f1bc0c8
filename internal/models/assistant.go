package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AssistantSession struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	ProfileID   *uuid.UUID      `json:"profile_id"`
	Role        string          `json:"role"` // "homeowner" | "provider"
	ContextJSON json.RawMessage `json:"context"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type AssistantMessage struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"` // "user" | "assistant" | "tool"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is the client-side echo of a prior message. The server ignores it.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the assistant chat endpoint.
type ChatRequest struct {
	SessionID *string        `json:"session_id"`
	Message   string         `json:"message"`
	History   []ChatMessage  `json:"history"`
	Context   map[string]any `json:"context"`
}

type UIToolResult struct {
	Type string         `json:"type"` // "property" | "service_request"
	Data map[string]any `json:"data"`
}

// ChatResponse is the assistant's reply for one turn.
type ChatResponse struct {
	Reply       string         `json:"reply"`
	SessionID   string         `json:"session_id"`
	ToolResults []UIToolResult `json:"tool_results,omitempty"`
}

type SessionHistoryResponse struct {
	SessionID string              `json:"session_id"`
	Messages  []*AssistantMessage `json:"messages"`
}
