package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"homebase-backend/internal/models"
)

const (
	defaultHistoryWindow = 12
	defaultMaxToolRounds = 2
)

type Options struct {
	HistoryWindow int // messages replayed to the model
	MaxToolRounds int // tool execution rounds per turn
}

// Orchestrator drives one conversation turn from user message to persisted reply.
type Orchestrator struct {
	model    ModelClient
	sessions SessionStore
	tools    *Toolsets
	executor *Executor
	logger   *slog.Logger
	opts     Options
}

func NewOrchestrator(model ModelClient, sessions SessionStore, tools *Toolsets, executor *Executor, logger *slog.Logger, opts Options) *Orchestrator {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistoryWindow
	}
	if opts.MaxToolRounds <= 0 || opts.MaxToolRounds > defaultMaxToolRounds {
		opts.MaxToolRounds = defaultMaxToolRounds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		model:    model,
		sessions: sessions,
		tools:    tools,
		executor: executor,
		logger:   logger,
		opts:     opts,
	}
}

func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	// Init
	toolset, err := o.validate(req)
	if err != nil {
		return nil, err
	}

	session, err := o.loadSession(ctx, req)
	if err != nil {
		return nil, err
	}
	log := o.logger.With("session_id", session.ID.String(), "role", req.Role)

	bag := mergeBag(session.ContextJSON, req.Context)
	turn := &TurnContext{
		SessionID: session.ID.String(),
		UserID:    req.UserID,
		ProfileID: req.ProfileID,
		OrgID:     req.OrgID,
		Role:      req.Role,
		Message:   req.Message,
		Bag:       bag,
	}

	history, err := o.sessions.RecentMessages(ctx, session.ID, o.opts.HistoryWindow)
	if err != nil {
		log.Warn("failed to load history, continuing without it", "error", err)
		history = nil
	}
	conv := NewConversation(history).Append(UserMessage(req.Message))

	if err := o.sessions.AppendMessage(ctx, &models.AssistantMessage{
		SessionID: session.ID,
		Role:      MessageUser,
		Content:   req.Message,
	}); err != nil {
		log.Error("failed to persist user message", "error", err)
	}

	system := systemPrompt(req.Role, bag)

	// ModelRound / ToolExecution
	completion, err := o.complete(ctx, system, conv, toolset.Schemas())
	if err != nil {
		log.Error("model request failed", "phase", "initial", "error", err)
		return nil, &UpstreamError{Err: err}
	}

	var results []ToolResult
	rounds := 0
	for len(completion.ToolCalls) > 0 && rounds < o.opts.MaxToolRounds {
		calls := assignCallIDs(completion.ToolCalls)
		roundResults := o.executor.ExecuteRound(ctx, toolset, turn, calls)
		rounds++
		if err := ctx.Err(); err != nil {
			log.Warn("turn cancelled during tool round", "round", rounds, "error", err)
			return nil, err
		}

		conv = conv.Append(AssistantToolCallMessage(completion.Content, calls)).
			Append(ToolMessages(roundResults)...)
		results = append(results, roundResults...)

		// ModelFinal once the round budget is spent.
		var schemas []ToolSchema
		if rounds < o.opts.MaxToolRounds {
			schemas = toolset.Schemas()
		}
		completion, err = o.complete(ctx, system, conv, schemas)
		if err != nil {
			log.Error("model request failed", "phase", "tool_round", "round", rounds, "error", err)
			return nil, &UpstreamError{Err: err}
		}
	}
	if len(completion.ToolCalls) > 0 {
		log.Warn("ignoring tool calls after final round", "requested", len(completion.ToolCalls))
	}

	// Synthesize
	reply := strings.TrimSpace(completion.Content)
	if utf8.RuneCountInString(reply) < minReplyLen {
		var last *ToolResult
		if len(results) > 0 {
			last = &results[len(results)-1]
		}
		reply = Synthesize(last, req.Role)
		log.Info("model reply too short, synthesized fallback", "tool_results", len(results))
	}

	// Persist
	if err := o.sessions.AppendMessage(ctx, &models.AssistantMessage{
		SessionID: session.ID,
		Role:      MessageAssistant,
		Content:   reply,
	}); err != nil {
		log.Error("failed to persist assistant message", "error", err)
	}
	if bagJSON, err := json.Marshal(bag); err == nil {
		if err := o.sessions.TouchSession(ctx, session.ID, bagJSON); err != nil {
			log.Error("failed to touch session", "error", err)
		}
	}

	log.Info("assistant turn completed", "tool_rounds", rounds, "tool_calls", len(results))

	// Done
	return &TurnResult{
		Reply:       reply,
		SessionID:   session.ID.String(),
		ToolResults: uiResults(results),
	}, nil
}

func (o *Orchestrator) validate(req TurnRequest) (Toolset, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.Message) == "" {
		fields["message"] = "Message is required"
	}
	if req.UserID == uuid.Nil {
		fields["user_id"] = "Authenticated user is required"
	}
	toolset, ok := o.tools.For(req.Role)
	if !ok {
		fields["role"] = "Role must be homeowner or provider"
	}
	if req.SessionID != "" {
		if _, err := uuid.Parse(req.SessionID); err != nil {
			fields["session_id"] = "Invalid session ID"
		}
	}
	if len(fields) > 0 {
		return Toolset{}, &ValidationError{Fields: fields}
	}
	return toolset, nil
}

func (o *Orchestrator) loadSession(ctx context.Context, req TurnRequest) (*models.AssistantSession, error) {
	if req.SessionID == "" {
		bag, err := json.Marshal(nonNilBag(req.Context))
		if err != nil {
			return nil, &ValidationError{Fields: map[string]string{"context": "Context must be a JSON object"}}
		}
		session := &models.AssistantSession{
			UserID:      req.UserID,
			ProfileID:   req.ProfileID,
			Role:        req.Role,
			ContextJSON: bag,
		}
		if err := o.sessions.CreateSession(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	}

	id := uuid.MustParse(req.SessionID)
	session, err := o.sessions.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &NotFoundError{Message: "Session not found"}
		}
		return nil, err
	}
	if session.UserID != req.UserID {
		return nil, &NotFoundError{Message: "Session not found"}
	}
	return session, nil
}

func (o *Orchestrator) complete(ctx context.Context, system string, conv Conversation, tools []ToolSchema) (*Completion, error) {
	c, err := o.model.Complete(ctx, CompletionRequest{
		System:   system,
		Messages: conv.Messages(),
		Tools:    tools,
	})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &Completion{}, nil
	}
	return c, nil
}

// mergeBag overlays the inbound context on the stored bag.
func mergeBag(stored json.RawMessage, inbound map[string]any) map[string]any {
	bag := map[string]any{}
	if len(stored) > 0 {
		_ = json.Unmarshal(stored, &bag)
		if bag == nil {
			bag = map[string]any{}
		}
	}
	for k, v := range inbound {
		bag[k] = v
	}
	return bag
}

func nonNilBag(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func assignCallIDs(calls []ToolCall) []ToolCall {
	out := make([]ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		out[i] = c
	}
	return out
}

func uiResults(results []ToolResult) []models.UIToolResult {
	var out []models.UIToolResult
	for _, r := range results {
		if r.UI != nil && !r.IsError {
			out = append(out, *r.UI)
		}
	}
	return out
}
