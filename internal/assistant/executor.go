package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Error codes carried in the payload of failed tool results.
const (
	errUnknownTool      = "unknown_tool"
	errInvalidArguments = "invalid_arguments"
	errToolFailed       = "tool_failed"
	errToolTimeout      = "timeout"
)

type Executor struct {
	timeout     time.Duration
	parallelism int
	logger      *slog.Logger
}

func NewExecutor(timeout time.Duration, parallelism int, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if parallelism <= 0 {
		parallelism = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{timeout: timeout, parallelism: parallelism, logger: logger}
}

// ExecuteRound runs all calls of one model round concurrently and returns
// exactly one result per call, in call order.
func (e *Executor) ExecuteRound(ctx context.Context, ts Toolset, turn *TurnContext, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = e.Execute(ctx, ts, turn, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Execute dispatches one call. It never panics and never returns without a result.
func (e *Executor) Execute(ctx context.Context, ts Toolset, turn *TurnContext, call ToolCall) ToolResult {
	log := e.logger.With("session_id", turn.SessionID, "tool", call.Name, "arg_keys", argKeys(call.Args))

	tool, ok := ts.lookup(call.Name)
	if !ok {
		log.Warn("model requested unknown tool")
		return errorResult(call, errUnknownTool, fmt.Sprintf("no tool named %q is available", call.Name))
	}

	args, err := validateArgs(tool.Schema, call.Args)
	if err != nil {
		log.Warn("tool arguments rejected", "error", err)
		return errorResult(call, errInvalidArguments, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		out *ToolOutput
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		out, err := tool.Handler(ctx, turn, args)
		done <- outcome{out: out, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		res = outcome{err: ctx.Err()}
	}

	if res.err != nil {
		code := errToolFailed
		if errors.Is(res.err, context.DeadlineExceeded) {
			code = errToolTimeout
		}
		log.Error("tool failed", "error", res.err)
		return errorResult(call, code, res.err.Error())
	}
	if res.out == nil {
		res.out = &ToolOutput{}
	}

	payload, err := normalizePayload(res.out.Payload)
	if err != nil {
		log.Error("tool payload not serializable", "error", err)
		return errorResult(call, errToolFailed, "tool returned an unreadable result")
	}

	log.Debug("tool executed")
	return ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Payload: payload,
		UI:      res.out.UI,
	}
}

func errorResult(call ToolCall, code, message string) ToolResult {
	return ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Payload: map[string]any{"error": code, "message": message},
		IsError: true,
	}
}

// normalizePayload converts typed values into plain JSON values so model
// adapters can serialize them.
func normalizePayload(p map[string]any) (map[string]any, error) {
	if p == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func argKeys(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
