package assistant

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"homebase-backend/internal/models"
)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
)

// Param describes one tool argument.
type Param struct {
	Type        ParamType
	Description string
	Enum        []string
	Items       *Param // element type for arrays
}

// ToolSchema is the provider-neutral declaration of a tool sent to the model.
type ToolSchema struct {
	Name        string
	Description string
	Properties  map[string]Param
	Required    []string
}

// ToolOutput is what a handler produces on success.
type ToolOutput struct {
	Payload map[string]any
	UI      *models.UIToolResult
}

type Handler func(ctx context.Context, turn *TurnContext, args map[string]any) (*ToolOutput, error)

type Tool struct {
	Schema  ToolSchema
	Handler Handler
}

// Registry maps tool names to handlers. It is filled once during construction
// and only read afterwards.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register validates the tool's schema and adds it to the registry.
func (r *Registry) Register(t Tool) error {
	s := t.Schema
	if s.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("handler is required for %s", s.Name)
	}
	if _, exists := r.tools[s.Name]; exists {
		return fmt.Errorf("tool already registered: %s", s.Name)
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return fmt.Errorf("tool %s: required argument %q is not declared", s.Name, name)
		}
	}
	for name, p := range s.Properties {
		if err := validateParam(p); err != nil {
			return fmt.Errorf("tool %s: argument %q: %w", s.Name, name, err)
		}
	}
	r.tools[s.Name] = t
	r.order = append(r.order, s.Name)
	return nil
}

func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Schemas returns the declared schemas in registration order.
func (r *Registry) Schemas() []ToolSchema {
	out := make([]ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema)
	}
	return out
}

func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

func validateParam(p Param) error {
	switch p.Type {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean:
	case TypeArray:
		if p.Items == nil {
			return fmt.Errorf("array without item type")
		}
		return validateParam(*p.Items)
	default:
		return fmt.Errorf("unsupported type %q", p.Type)
	}
	if len(p.Enum) > 0 && p.Type != TypeString {
		return fmt.Errorf("enum is only supported on strings")
	}
	return nil
}

// validateArgs checks args against the schema and returns a copy holding only
// declared arguments. Numbers are normalized to float64.
func validateArgs(s ToolSchema, args map[string]any) (map[string]any, error) {
	clean := make(map[string]any, len(s.Properties))
	for _, name := range s.Required {
		if v, ok := args[name]; !ok || v == nil {
			return nil, fmt.Errorf("missing required argument %q", name)
		}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p, declared := s.Properties[name]
		if !declared || args[name] == nil {
			continue
		}
		v, err := checkValue(p, args[name])
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		clean[name] = v
	}
	return clean, nil
}

func checkValue(p Param, v any) (any, error) {
	switch p.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string")
		}
		if len(p.Enum) > 0 && !slices.Contains(p.Enum, s) {
			return nil, fmt.Errorf("must be one of %v", p.Enum)
		}
		return s, nil
	case TypeNumber, TypeInteger:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("expected number")
		}
		if p.Type == TypeInteger && f != math.Trunc(f) {
			return nil, fmt.Errorf("expected integer")
		}
		return f, nil
	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean")
		}
		return b, nil
	case TypeArray:
		items, ok := toSlice(v)
		if !ok {
			return nil, fmt.Errorf("expected array")
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := checkValue(*p.Items, item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type %q", p.Type)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	}
	return nil, false
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func floatArg(args map[string]any, key string) float64 {
	f, _ := args[key].(float64)
	return f
}

func stringsArg(args map[string]any, key string) []string {
	items, _ := args[key].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
