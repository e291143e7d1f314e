// Package tools holds the lookups the maritime assistant may call while
// answering a question.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownTool is returned by Call for a name nothing registered.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is one lookup the assistant may call. Parameters is a JSON Schema
// object describing the input Execute accepts.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error)
}

// ToolDef is a tool as advertised to the model.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Registry is the set of tools offered to the assistant. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds t. A later tool with the same name replaces the earlier one.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Call runs the tool registered under name with input. An empty input is
// passed as an empty JSON object.
func (r *Registry) Call(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return t.Execute(ctx, input)
}

// ToToolDefs returns the definitions ordered by name so repeated requests
// carry identical tool lists.
func (r *Registry) ToToolDefs() []ToolDef {
	r.mu.RLock()
	defs := make([]ToolDef, 0, len(r.byName))
	for _, t := range r.byName {
		defs = append(defs, ToolDef{Name: t.Name(), Description: t.Description(), InputSchema: t.Parameters()})
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
