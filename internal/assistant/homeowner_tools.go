package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"homebase-backend/internal/models"
)

const (
	matchLimit        = 5
	uiProviderLimit   = 3
	defaultTrustScore = 5.0
)

// UI result types.
const (
	UIProperty       = "property"
	UIServiceRequest = "service_request"
)

type homeownerTools struct {
	deps Dependencies
}

func (h *homeownerTools) lookupHome(ctx context.Context, turn *TurnContext, args map[string]any) (*ToolOutput, error) {
	address := strings.TrimSpace(stringArg(args, "address"))
	if address == "" {
		return nil, fmt.Errorf("address is empty")
	}
	if h.deps.Properties == nil {
		return nil, fmt.Errorf("property lookup is not configured")
	}

	record, err := h.deps.Properties.Lookup(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("property lookup failed: %w", err)
	}

	data := map[string]any{
		"address":       record.Address,
		"year_built":    record.YearBuilt,
		"square_feet":   record.SquareFeet,
		"bedrooms":      record.Bedrooms,
		"bathrooms":     record.Bathrooms,
		"property_type": record.PropertyType,
	}
	for k, v := range record.Extra {
		if _, taken := data[k]; !taken {
			data[k] = v
		}
	}

	return &ToolOutput{
		Payload: data,
		UI:      &models.UIToolResult{Type: UIProperty, Data: data},
	}, nil
}

func (h *homeownerTools) createServiceRequest(ctx context.Context, turn *TurnContext, args map[string]any) (*ToolOutput, error) {
	log := h.deps.Logger.With("session_id", turn.SessionID, "tool", createServiceRequestSchema.Name)
	now := h.deps.Now()

	homeID := h.resolveHome(ctx, turn, stringArg(args, "home_id"))

	meta, err := json.Marshal(models.AIMetadata{AICreated: true, SessionID: turn.SessionID, CreatedAt: now})
	if err != nil {
		return nil, err
	}

	req := &models.ServiceRequest{
		HomeownerID:      turn.UserID,
		HomeID:           homeID,
		Category:         stringArg(args, "service_type"),
		Description:      turn.Message,
		AISummary:        stringArg(args, "ai_summary"),
		SeverityLevel:    stringArg(args, "severity_level"),
		LikelyCause:      stringArg(args, "likely_cause"),
		ConfidenceScore:  floatArg(args, "confidence_score"),
		EstimatedMinCost: floatArg(args, "estimated_min_cost"),
		EstimatedMaxCost: floatArg(args, "estimated_max_cost"),
		Scope: models.ServiceScope{
			Includes: stringsArg(args, "scope_includes"),
			Excludes: stringsArg(args, "scope_excludes"),
		},
		AIMetadata: meta,
		Status:     "pending",
	}

	if err := h.deps.Requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create service request: %w", err)
	}

	matched, err := h.deps.Matcher.Match(ctx, req.Category, homeID, matchLimit)
	if err != nil {
		// The request exists; report it with no matches rather than failing.
		log.Error("provider matching failed", "request_id", req.ID, "error", err)
		matched = nil
	}

	snapshot := make([]models.MatchedProvider, 0, len(matched))
	for _, m := range matched {
		score := defaultTrustScore
		if m.TrustScore != nil {
			score = *m.TrustScore
		}
		snapshot = append(snapshot, models.MatchedProvider{OrgID: m.OrgID, Name: m.Name, TrustScore: &score})
	}

	if len(snapshot) > 0 {
		if err := h.deps.Requests.UpdateMatchedProviders(ctx, req.ID, snapshot); err != nil {
			log.Error("failed to store matched providers", "request_id", req.ID, "error", err)
		}
		if h.deps.Notifier != nil {
			if err := h.deps.Notifier.NotifyMatched(ctx, req, snapshot); err != nil {
				log.Warn("failed to enqueue match notification", "request_id", req.ID, "error", err)
			}
		}
	}

	top := snapshot[:min(len(snapshot), uiProviderLimit)]
	providers := make([]map[string]any, 0, len(top))
	names := make([]string, 0, len(top))
	for _, p := range top {
		providers = append(providers, map[string]any{
			"org_id":      p.OrgID.String(),
			"name":        p.Name,
			"trust_score": *p.TrustScore,
		})
		names = append(names, p.Name)
	}

	costRange := formatCostRange(req.EstimatedMinCost, req.EstimatedMaxCost)
	data := map[string]any{
		"request_id":    req.ID.String(),
		"summary":       req.AISummary,
		"severity":      req.SeverityLevel,
		"cost_range":    costRange,
		"matched_count": len(snapshot),
		"providers":     providers,
		"service_type":  req.Category,
	}

	return &ToolOutput{
		Payload: map[string]any{
			"request_id":     req.ID.String(),
			"status":         req.Status,
			"cost_range":     costRange,
			"matched_count":  len(snapshot),
			"provider_names": names,
		},
		UI: &models.UIToolResult{Type: UIServiceRequest, Data: data},
	}, nil
}

// resolveHome picks the explicit id, then the context bag, then the caller's
// primary home. Ids the caller does not own are skipped. It returns nil when
// none resolves.
func (h *homeownerTools) resolveHome(ctx context.Context, turn *TurnContext, explicit string) *uuid.UUID {
	if h.deps.Homes == nil {
		return nil
	}

	for _, candidate := range []string{explicit, turn.bagString("homeId")} {
		if candidate == "" {
			continue
		}
		id, err := uuid.Parse(candidate)
		if err != nil {
			continue
		}
		home, err := h.deps.Homes.OwnedHome(ctx, turn.UserID, id)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				h.deps.Logger.Warn("home ownership lookup failed", "session_id", turn.SessionID, "error", err)
			}
			continue
		}
		return &home.ID
	}

	home, err := h.deps.Homes.PrimaryHome(ctx, turn.UserID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			h.deps.Logger.Warn("primary home lookup failed", "session_id", turn.SessionID, "error", err)
		}
		return nil
	}
	if home == nil {
		return nil
	}
	return &home.ID
}

func formatCostRange(lo, hi float64) string {
	return "$" + strconv.FormatFloat(lo, 'f', -1, 64) + "-$" + strconv.FormatFloat(hi, 'f', -1, 64)
}
