// Package tools provides the tool registry and execution framework.
//
// A Tool pairs a name and JSON-Schema parameter description with an
// executor. The registry is populated once at startup and is read-only
// during agent runs, so lookups need no locking. Execution isolates
// tool failures: a handler error, panic, or timeout becomes a failed
// Result, never a crashed run.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultTimeout bounds a single tool execution when the registry is
// constructed without an explicit timeout.
const DefaultTimeout = 15 * time.Second

// Handler executes a tool. It returns human-readable output for the
// model to observe. A tool that finds zero matching records must return
// a "no results" message with a nil error; an empty result is not an
// error; only transport and parse failures are.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool is a callable capability exposed to the model.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     Handler        `json:"-"`
}

// Result is the tool-agnostic outcome of one execution.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Registry holds the available tools. Register at startup; do not
// mutate while runs are in flight.
type Registry struct {
	order   []string
	tools   map[string]*Tool
	timeout time.Duration
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. timeout <= 0 selects
// DefaultTimeout.
func NewRegistry(logger *slog.Logger, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:   make(map[string]*Tool),
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a tool. Registration is idempotent by name: registering
// the same name again replaces the previous tool but keeps its position
// in the catalog.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil if unknown.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Describe renders the "available tools" section of the system prompt.
func (r *Registry) Describe() string {
	if len(r.order) == 0 {
		return "No tools are available."
	}
	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, name := range r.order {
		t := r.tools[name]
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// List returns the tool definitions in the wire format expected by
// chat-completion APIs with native tool calling.
func (r *Registry) List() []map[string]any {
	var result []map[string]any
	for _, name := range r.order {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool by name and converts every failure mode into a
// Result. The handler runs under the registry timeout; a handler that
// overruns it (or panics, or returns an error) yields Success=false
// with the failure in Error. The goroutine of an overrunning handler is
// abandoned; its context is cancelled, and its eventual return value
// is discarded.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	tool := r.tools[name]
	if tool == nil {
		return Result{Success: false, Error: (&UnknownToolError{Name: name}).Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		output string
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- outcome{err: fmt.Errorf("tool %s panicked: %v", name, rec)}
			}
		}()
		out, err := tool.Handler(ctx, args)
		ch <- outcome{output: out, err: err}
	}()

	select {
	case got := <-ch:
		if got.err != nil {
			r.logger.Warn("tool execution failed", "tool", name, "error", got.err)
			return Result{Success: false, Error: got.err.Error()}
		}
		return Result{Success: true, Output: got.output}
	case <-ctx.Done():
		r.logger.Warn("tool execution timed out", "tool", name, "timeout", r.timeout)
		return Result{Success: false, Error: fmt.Sprintf("tool %s did not complete within %s", name, r.timeout)}
	}
}
