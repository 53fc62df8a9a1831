// Package tools defines the remote-callable tool surface. Each tool has a
// name, a description, a JSON schema for its arguments, and an Execute
// function; the registry maps names to tools so any transport can dispatch
// calls without knowing the operations behind them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Tool is one remote-callable operation.
type Tool interface {
	// Name returns the tool's unique name.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// InputSchema returns a JSON-schema-shaped description of the arguments.
	InputSchema() map[string]any

	// Execute runs the tool with raw JSON arguments and returns the typed
	// response value.
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry holds the registered tools. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate name is a programmer error.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q is already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Execute dispatches a call to the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return t.Execute(ctx, args)
}

// funcTool adapts plain functions into the Tool interface.
type funcTool struct {
	name        string
	description string
	schema      map[string]any
	execute     func(ctx context.Context, args json.RawMessage) (any, error)
}

func (f *funcTool) Name() string                { return f.name }
func (f *funcTool) Description() string         { return f.description }
func (f *funcTool) InputSchema() map[string]any { return f.schema }
func (f *funcTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	return f.execute(ctx, args)
}

// NewFuncTool creates a Tool from a function.
func NewFuncTool(name, description string, schema map[string]any, execute func(ctx context.Context, args json.RawMessage) (any, error)) Tool {
	return &funcTool{
		name:        name,
		description: description,
		schema:      schema,
		execute:     execute,
	}
}
