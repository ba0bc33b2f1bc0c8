package assistant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"homebase-backend/internal/models"
)

const (
	RoleHomeowner = "homeowner"
	RoleProvider  = "provider"
)

// Message roles inside a Conversation.
const (
	MessageUser      = "user"
	MessageAssistant = "assistant"
	MessageTool      = "tool"
)

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult pairs a ToolCall id with its outcome. Payload is fed back to the
// model; UI, when set, is returned to the caller for rich rendering.
type ToolResult struct {
	CallID  string
	Name    string
	Payload map[string]any
	UI      *models.UIToolResult
	IsError bool
}

// Message is one entry of a Conversation.
type Message struct {
	Role      string
	Content   string
	ToolCalls []ToolCall  // assistant messages that requested tools
	Result    *ToolResult // tool messages
}

type CompletionRequest struct {
	System   string
	Messages []Message
	Tools    []ToolSchema // nil requests a plain text reply
}

type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// TurnRequest is the input of one conversation turn.
type TurnRequest struct {
	SessionID string // empty starts a new session
	UserID    uuid.UUID
	ProfileID *uuid.UUID
	OrgID     *uuid.UUID
	Role      string
	Message   string
	Context   map[string]any
}

type TurnResult struct {
	Reply       string
	SessionID   string
	ToolResults []models.UIToolResult
}

// TurnContext is the read-only view of a turn handed to tool handlers.
type TurnContext struct {
	SessionID string
	UserID    uuid.UUID
	ProfileID *uuid.UUID
	OrgID     *uuid.UUID
	Role      string
	Message   string
	Bag       map[string]any
}

func (t *TurnContext) bagString(key string) string {
	if t == nil || t.Bag == nil {
		return ""
	}
	s, _ := t.Bag[key].(string)
	return s
}

type ModelClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *models.AssistantSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.AssistantSession, error)
	TouchSession(ctx context.Context, id uuid.UUID, bag json.RawMessage) error
	AppendMessage(ctx context.Context, m *models.AssistantMessage) error
	// RecentMessages returns at most limit messages, oldest first.
	RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.AssistantMessage, error)
}

type HomeStore interface {
	PrimaryHome(ctx context.Context, ownerID uuid.UUID) (*models.Home, error)
	OwnedHome(ctx context.Context, ownerID, homeID uuid.UUID) (*models.Home, error)
}

type ServiceRequestStore interface {
	Create(ctx context.Context, req *models.ServiceRequest) error
	UpdateMatchedProviders(ctx context.Context, id uuid.UUID, providers []models.MatchedProvider) error
}

type ProviderMatcher interface {
	Match(ctx context.Context, serviceType string, homeID *uuid.UUID, limit int) ([]models.MatchedProvider, error)
}

type PropertyLookup interface {
	Lookup(ctx context.Context, address string) (*models.PropertyRecord, error)
}

type ProviderDataStore interface {
	ClientDetails(ctx context.Context, orgID, clientID uuid.UUID) (*models.ClientDetails, error)
	Schedule(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]*models.ScheduledJob, error)
	OpenJobs(ctx context.Context, orgID uuid.UUID) ([]*models.OpenJob, error)
}

// MatchNotifier hands a matched request to the background notification worker.
type MatchNotifier interface {
	NotifyMatched(ctx context.Context, req *models.ServiceRequest, providers []models.MatchedProvider) error
}
