package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"homebase-backend/internal/models"
)

var fixedNow = time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC) // a Wednesday

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedModel replays completions in order and repeats the last one.
type scriptedModel struct {
	mu       sync.Mutex
	script   []Completion
	err      error
	requests []CompletionRequest
}

func (m *scriptedModel) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.script) == 0 {
		return &Completion{}, nil
	}
	i := min(len(m.requests)-1, len(m.script)-1)
	c := m.script[i]
	return &c, nil
}

type memorySessions struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*models.AssistantSession
	messages  []*models.AssistantMessage
	seq       int64
	touched   map[uuid.UUID]json.RawMessage
	appendErr error
}

func newMemorySessions() *memorySessions {
	return &memorySessions{
		sessions: make(map[uuid.UUID]*models.AssistantSession),
		touched:  make(map[uuid.UUID]json.RawMessage),
	}
}

func (s *memorySessions) CreateSession(ctx context.Context, sess *models.AssistantSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = uuid.New()
	sess.CreatedAt = fixedNow
	sess.UpdatedAt = fixedNow
	copied := *sess
	s.sessions[sess.ID] = &copied
	return nil
}

func (s *memorySessions) GetSession(ctx context.Context, id uuid.UUID) (*models.AssistantSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *sess
	return &copied, nil
}

func (s *memorySessions) TouchSession(ctx context.Context, id uuid.UUID, bag json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[id] = bag
	if sess, ok := s.sessions[id]; ok {
		sess.ContextJSON = bag
		sess.UpdatedAt = fixedNow
	}
	return nil
}

func (s *memorySessions) AppendMessage(ctx context.Context, m *models.AssistantMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.seq++
	m.ID = uuid.New()
	m.Seq = s.seq
	copied := *m
	s.messages = append(s.messages, &copied)
	return nil
}

func (s *memorySessions) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.AssistantMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*models.AssistantMessage
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			all = append(all, m)
		}
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *memorySessions) sessionMessages(id uuid.UUID) []*models.AssistantMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AssistantMessage
	for _, m := range s.messages {
		if m.SessionID == id {
			out = append(out, m)
		}
	}
	return out
}

type fakeHomes struct {
	home  *models.Home
	owned map[uuid.UUID]uuid.UUID // home id -> owner id
	err   error
	calls int
}

func (f *fakeHomes) PrimaryHome(ctx context.Context, ownerID uuid.UUID) (*models.Home, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.home == nil {
		return nil, models.ErrNotFound
	}
	return f.home, nil
}

func (f *fakeHomes) OwnedHome(ctx context.Context, ownerID, homeID uuid.UUID) (*models.Home, error) {
	if f.err != nil {
		return nil, f.err
	}
	owner, ok := f.owned[homeID]
	if !ok || owner != ownerID {
		return nil, models.ErrNotFound
	}
	return &models.Home{ID: homeID, OwnerID: owner}, nil
}

type fakeRequests struct {
	mu        sync.Mutex
	created   []*models.ServiceRequest
	snapshots map[uuid.UUID][]models.MatchedProvider
	createErr error
}

func (f *fakeRequests) Create(ctx context.Context, req *models.ServiceRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	req.ID = uuid.New()
	req.CreatedAt = fixedNow
	f.created = append(f.created, req)
	return nil
}

func (f *fakeRequests) UpdateMatchedProviders(ctx context.Context, id uuid.UUID, providers []models.MatchedProvider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshots == nil {
		f.snapshots = make(map[uuid.UUID][]models.MatchedProvider)
	}
	f.snapshots[id] = providers
	return nil
}

type fakeMatcher struct {
	mu        sync.Mutex
	providers []models.MatchedProvider
	err       error
	calls     int
	lastHome  *uuid.UUID
	lastType  string
	lastLimit int
}

func (f *fakeMatcher) Match(ctx context.Context, serviceType string, homeID *uuid.UUID, limit int) ([]models.MatchedProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastHome = homeID
	f.lastType = serviceType
	f.lastLimit = limit
	return f.providers, f.err
}

type fakeProperties struct {
	mu    sync.Mutex
	calls int
	err   error

	// When started is set, Lookup signals it and blocks until ctx is done,
	// then closes cancelled.
	started   chan struct{}
	cancelled chan struct{}
}

func (f *fakeProperties) Lookup(ctx context.Context, address string) (*models.PropertyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.started != nil {
		close(f.started)
		<-ctx.Done()
		close(f.cancelled)
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.PropertyRecord{Address: address, YearBuilt: 1994, SquareFeet: 1850, Bedrooms: 3, Bathrooms: 2}, nil
}

type fakeNotifier struct {
	calls int
}

func (f *fakeNotifier) NotifyMatched(ctx context.Context, req *models.ServiceRequest, providers []models.MatchedProvider) error {
	f.calls++
	return nil
}

type fakeProviderData struct {
	client   *models.ClientDetails
	jobs     []*models.ScheduledJob
	open     []*models.OpenJob
	lastOrg  uuid.UUID
	lastFrom time.Time
	lastTo   time.Time
}

func (f *fakeProviderData) ClientDetails(ctx context.Context, orgID, clientID uuid.UUID) (*models.ClientDetails, error) {
	f.lastOrg = orgID
	if f.client == nil || f.client.ClientID != clientID {
		return nil, models.ErrNotFound
	}
	return f.client, nil
}

func (f *fakeProviderData) Schedule(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]*models.ScheduledJob, error) {
	f.lastOrg, f.lastFrom, f.lastTo = orgID, from, to
	return f.jobs, nil
}

func (f *fakeProviderData) OpenJobs(ctx context.Context, orgID uuid.UUID) ([]*models.OpenJob, error) {
	f.lastOrg = orgID
	return f.open, nil
}

var errBoom = errors.New("boom")

type harness struct {
	model    *scriptedModel
	sessions *memorySessions
	homes    *fakeHomes
	requests *fakeRequests
	matcher  *fakeMatcher
	props    *fakeProperties
	notifier *fakeNotifier
	provData *fakeProviderData
	toolsets *Toolsets
	executor *Executor
	orch     *Orchestrator
	userID   uuid.UUID
	orgID    uuid.UUID
}

func newHarness(script ...Completion) *harness {
	h := &harness{
		model:    &scriptedModel{script: script},
		sessions: newMemorySessions(),
		homes:    &fakeHomes{},
		requests: &fakeRequests{},
		matcher:  &fakeMatcher{},
		props:    &fakeProperties{},
		notifier: &fakeNotifier{},
		provData: &fakeProviderData{},
		userID:   uuid.New(),
		orgID:    uuid.New(),
	}
	h.toolsets = NewToolsets(h.deps())
	h.executor = NewExecutor(time.Second, 4, discardLogger())
	h.orch = NewOrchestrator(h.model, h.sessions, h.toolsets, h.executor, discardLogger(), Options{HistoryWindow: 12, MaxToolRounds: 2})
	return h
}

func (h *harness) deps() Dependencies {
	return Dependencies{
		Properties:   h.props,
		Homes:        h.homes,
		Requests:     h.requests,
		Matcher:      h.matcher,
		Notifier:     h.notifier,
		ProviderData: h.provData,
		Now:          func() time.Time { return fixedNow },
		Logger:       discardLogger(),
	}
}

func (h *harness) homeownerTurn(msg string) *TurnContext {
	return &TurnContext{SessionID: uuid.NewString(), UserID: h.userID, Role: RoleHomeowner, Message: msg, Bag: map[string]any{}}
}

func (h *harness) providerTurn() *TurnContext {
	return &TurnContext{SessionID: uuid.NewString(), UserID: h.userID, OrgID: &h.orgID, Role: RoleProvider, Bag: map[string]any{}}
}

func serviceRequestArgs() map[string]any {
	return map[string]any{
		"service_type":       "hvac",
		"ai_summary":         "AC blowing warm air",
		"severity_level":     "moderate",
		"likely_cause":       "Low refrigerant",
		"confidence_score":   0.7,
		"estimated_min_cost": 150.0,
		"estimated_max_cost": 250.0,
		"scope_includes":     []any{"Diagnose AC unit", "Recharge refrigerant"},
		"scope_excludes":     []any{"Compressor replacement"},
	}
}

func trust(v float64) *float64 { return &v }
