// Package tools dispatches model function calls to registered handlers.
//
// A Tool pairs a JSON Schema argument description with a typed handler.
// The Registry renders tool definitions for the model session and routes
// function-call events back to the matching handler. Handler results are
// plain strings fed back to the model as function call output.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	"github.com/solutionstwo/voicebridge/pkg/openairt"
)

// ErrUnknownTool is returned by Dispatch for unregistered tool names.
var ErrUnknownTool = errors.New("tools: unknown tool")

// Handler runs a tool against its raw JSON arguments.
type Handler func(ctx context.Context, rawArgs string) (string, error)

// Tool is a callable function exposed to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema

	handler Handler
}

// New builds a Tool whose argument schema is derived from ArgType and
// whose handler receives decoded arguments.
func New[ArgType any](name, description string, fn func(ctx context.Context, arg ArgType) (string, error)) (*Tool, error) {
	schema, err := jsonschema.For[ArgType](nil)
	if err != nil {
		return nil, fmt.Errorf("tools: schema for %s: %w", name, err)
	}
	return &Tool{
		Name:        name,
		Description: description,
		Parameters:  schema,
		handler: func(ctx context.Context, rawArgs string) (string, error) {
			var arg ArgType
			if err := decodeArgs(rawArgs, &arg); err != nil {
				return "", fmt.Errorf("tools: %s arguments: %w", name, err)
			}
			return fn(ctx, arg)
		},
	}, nil
}

// MustNew is New that panics on schema derivation failure. Builtin tools
// use it at startup.
func MustNew[ArgType any](name, description string, fn func(ctx context.Context, arg ArgType) (string, error)) *Tool {
	t, err := New(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// decodeArgs decodes model-produced tool arguments. Models emit either a
// JSON object or a JSON-encoded string containing one; malformed JSON is
// repaired before giving up.
func decodeArgs(raw string, v any) error {
	data := []byte(strings.TrimSpace(raw))
	if len(data) == 0 {
		data = []byte("{}")
	}

	var inner string
	if err := json.Unmarshal(data, &inner); err == nil {
		data = []byte(inner)
	}

	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		fixed, repairErr := jsonrepair.JSONRepair(string(data))
		if repairErr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// Registry holds the tools available in a call session.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates a registry with the given tools.
func NewRegistry(toolList ...*Tool) *Registry {
	r := &Registry{tools: make(map[string]*Tool)}
	for _, t := range toolList {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Dispatch runs the named tool with the raw argument payload.
func (r *Registry) Dispatch(ctx context.Context, name, rawArgs string) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return t.handler(ctx, rawArgs)
}

// SessionTools renders the registry as function definitions for
// session.update, in registration order.
func (r *Registry) SessionTools() []openairt.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]openairt.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, openairt.Tool{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return out
}
