// Package tools provides the per-agent tool registries and the built-in
// finance tools. Tools hold capability handles, never ambient access:
// every side effect is authorized through the sandbox guard before any
// I/O happens.
package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"spendwise/internal/logging"
)

// Tool represents an executable tool.
type Tool interface {
	// Name returns the tool name.
	Name() string
	// Description returns a description for the LLM.
	Description() string
	// Parameters returns the JSON schema for parameters.
	Parameters() map[string]interface{}
	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ToolDefinition is the LLM-facing tool definition.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ValidationError reports a bad argument, detected before any side
// effect.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid argument %q: %s", e.Tool, e.Field, e.Reason)
}

// Registry holds the tools available to one agent.
type Registry struct {
	agentID string
	tools   map[string]Tool
	logger  *logging.Logger
	timeout time.Duration
}

// NewRegistry creates an empty registry for one agent.
func NewRegistry(agentID string, logger *logging.Logger, timeout time.Duration) *Registry {
	if logger == nil {
		logger = logging.New()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Registry{
		agentID: agentID,
		tools:   make(map[string]Tool),
		logger:  logger.WithComponent("tools"),
		timeout: timeout,
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

// Definitions returns LLM-facing definitions, sorted by name.
func (r *Registry) Definitions() []ToolDefinition {
	var defs []ToolDefinition
	for _, t := range r.tools {
		defs = append(defs, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs a named tool with a per-tool timeout, recording the
// invocation in usage.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}, usage *Usage) (interface{}, error) {
	t := r.Get(name)
	if t == nil {
		return nil, fmt.Errorf("unknown tool %q", name)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := t.Execute(ctx, args)
	elapsed := time.Since(start)

	r.logger.ToolResult(name, elapsed, err)
	if usage != nil {
		usage.Record(InvocationRecord{
			Agent:    r.agentID,
			Tool:     name,
			Duration: elapsed,
			Err:      err,
		})
	}
	return result, err
}
