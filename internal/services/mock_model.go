package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"homebase-backend/internal/assistant"
)

// MockModel is a keyword-driven assistant.ModelClient for local runs without
// an API key. It exercises the same tool paths as the real model.
type MockModel struct{}

func NewMockModel() *MockModel {
	return &MockModel{}
}

var _ assistant.ModelClient = (*MockModel)(nil)

var addressPattern = regexp.MustCompile(`(?i)\b\d+\s+[a-z0-9 ]+\s(st|street|ave|avenue|rd|road|ln|lane|dr|drive|blvd|ct|way)\b`)

type mockService struct {
	keywords []string
	category string
	cause    string
	min, max float64
}

var mockServices = []mockService{
	{[]string{"ac ", "a/c", "air condition", "hvac", "furnace", "heat"}, "hvac", "Low refrigerant or a failing capacitor", 150, 250},
	{[]string{"leak", "pipe", "drain", "toilet", "faucet", "water heater"}, "plumbing", "Worn seal or loose fitting", 120, 350},
	{[]string{"outlet", "breaker", "wiring", "electric", "light"}, "electrical", "Overloaded circuit", 100, 300},
	{[]string{"roof", "shingle", "gutter"}, "roofing", "Damaged or missing shingles", 300, 900},
}

var emergencyWords = []string{"flood", "sparks", "smoke", "gas smell", "no heat"}

func (m *MockModel) Complete(ctx context.Context, req assistant.CompletionRequest) (*assistant.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages")
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Role == assistant.MessageTool || len(req.Tools) == 0 {
		return &assistant.Completion{Content: m.closingReply(req.Messages)}, nil
	}

	text := strings.ToLower(last.Content) + " "
	offered := map[string]bool{}
	for _, t := range req.Tools {
		offered[t.Name] = true
	}

	switch {
	case offered["lookup_home"] && addressPattern.MatchString(last.Content):
		addr := addressPattern.FindString(last.Content)
		return toolCall("lookup_home", map[string]any{"address": addr}), nil
	case offered["create_service_request"]:
		if svc, ok := matchService(text); ok {
			return toolCall("create_service_request", serviceArgs(svc, text)), nil
		}
	case offered["check_schedule"] && strings.Contains(text, "schedule"):
		rng := "today"
		for _, r := range []string{"tomorrow", "this week", "next week"} {
			if strings.Contains(text, r) {
				rng = r
			}
		}
		return toolCall("check_schedule", map[string]any{"date_range": rng}), nil
	case offered["prioritize_jobs"] && (strings.Contains(text, "priorit") || strings.Contains(text, "first")):
		criteria := "urgency"
		if strings.Contains(text, "value") || strings.Contains(text, "money") {
			criteria = "value"
		}
		return toolCall("prioritize_jobs", map[string]any{"criteria": criteria}), nil
	}

	if offered["create_service_request"] {
		return &assistant.Completion{Content: "Happy to help. What is happening, and where in the house? How long has it been going on? Is anything getting damaged?"}, nil
	}
	return &assistant.Completion{Content: "Sure. Do you want to check your schedule, look up a client, or prioritize open jobs?"}, nil
}

func (m *MockModel) closingReply(msgs []assistant.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		r := msgs[i].Result
		if msgs[i].Role != assistant.MessageTool || r == nil {
			continue
		}
		if r.IsError {
			return "Something went wrong on my side while doing that. Could you try again in a moment?"
		}
		// Leave service request confirmations to the synthesized reply.
		return ""
	}
	return ""
}

func matchService(text string) (mockService, bool) {
	for _, svc := range mockServices {
		for _, kw := range svc.keywords {
			if strings.Contains(text, kw) {
				return svc, true
			}
		}
	}
	return mockService{}, false
}

func serviceArgs(svc mockService, text string) map[string]any {
	severity := "moderate"
	for _, w := range emergencyWords {
		if strings.Contains(text, w) {
			severity = "emergency"
		}
	}
	return map[string]any{
		"service_type":       svc.category,
		"ai_summary":         fmt.Sprintf("%s issue reported by homeowner", strings.ToUpper(svc.category[:1])+svc.category[1:]),
		"severity_level":     severity,
		"likely_cause":       svc.cause,
		"confidence_score":   0.6,
		"estimated_min_cost": svc.min,
		"estimated_max_cost": svc.max,
		"scope_includes":     []any{"On-site diagnosis", "Standard repair"},
		"scope_excludes":     []any{"Major part replacement"},
	}
}

func toolCall(name string, args map[string]any) *assistant.Completion {
	return &assistant.Completion{ToolCalls: []assistant.ToolCall{{Name: name, Args: args}}}
}
