package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"homebase-backend/internal/assistant"
)

// GeminiService adapts the Gemini function-calling API to assistant.ModelClient.
type GeminiService struct {
	client    *genai.Client
	modelName string
	rateChan  chan struct{} // Token bucket
	logger    *slog.Logger
}

func NewGeminiService(apiKey, modelName string, concurrentReqs int, logger *slog.Logger) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:    client,
		modelName: modelName,
		rateChan:  rateChan,
		logger:    logger,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Complete sends one chat round to Gemini. A request without tools asks for a
// plain text reply.
func (s *GeminiService) Complete(ctx context.Context, req assistant.CompletionRequest) (*assistant.Completion, error) {
	contents := toContents(req.Messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	model := s.client.GenerativeModel(s.modelName)
	model.SetTemperature(0.4)
	model.SetTopP(0.95)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
	}

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop && cand.FinishReason != genai.FinishReasonUnspecified {
			s.logger.Warn("gemini candidate stopped early", "candidate", i, "finish_reason", cand.FinishReason.String())
		}
	}

	completion := &assistant.Completion{Content: extractText(resp)}
	for _, fc := range extractFunctionCalls(resp) {
		completion.ToolCalls = append(completion.ToolCalls, assistant.ToolCall{
			ID:   "call_" + uuid.NewString(),
			Name: fc.Name,
			Args: fc.Args,
		})
	}
	return completion, nil
}

// toContents maps a conversation onto Gemini's user/model turns. Tool results
// travel as function responses in user turns, and consecutive turns with the
// same role are merged.
func toContents(msgs []assistant.Message) []*genai.Content {
	var contents []*genai.Content
	push := func(role string, parts ...genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	for _, m := range msgs {
		switch m.Role {
		case assistant.MessageUser:
			if m.Content != "" {
				push("user", genai.Text(m.Content))
			}
		case assistant.MessageAssistant:
			var parts []genai.Part
			if m.Content != "" {
				parts = append(parts, genai.Text(m.Content))
			}
			for _, call := range m.ToolCalls {
				parts = append(parts, genai.FunctionCall{Name: call.Name, Args: call.Args})
			}
			// History must open with a user turn.
			if len(contents) == 0 {
				continue
			}
			push("model", parts...)
		case assistant.MessageTool:
			if m.Result != nil {
				push("user", genai.FunctionResponse{Name: m.Result.Name, Response: m.Result.Payload})
			}
		}
	}
	return contents
}

func toDeclarations(tools []assistant.ToolSchema) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]*genai.Schema, len(t.Properties))
		for name, p := range t.Properties {
			props[name] = toSchema(p)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   t.Required,
			},
		})
	}
	return decls
}

func toSchema(p assistant.Param) *genai.Schema {
	s := &genai.Schema{Description: p.Description, Enum: p.Enum}
	switch p.Type {
	case assistant.TypeString:
		s.Type = genai.TypeString
	case assistant.TypeNumber:
		s.Type = genai.TypeNumber
	case assistant.TypeInteger:
		s.Type = genai.TypeInteger
	case assistant.TypeBoolean:
		s.Type = genai.TypeBoolean
	case assistant.TypeArray:
		s.Type = genai.TypeArray
		if p.Items != nil {
			s.Items = toSchema(*p.Items)
		}
	}
	return s
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func extractFunctionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	var calls []genai.FunctionCall
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if fc, ok := part.(genai.FunctionCall); ok {
				calls = append(calls, fc)
			}
		}
		// Only the first candidate carries calls we act on.
		if len(calls) > 0 {
			break
		}
	}
	return calls
}
