package tools

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/pkg/llms"
)

// Registry is the set of tools advertised to the model.
// Tool names are matched case-insensitive.
type Registry struct {
	tools  []ITool
	byName map[string]ITool
}

// NewRegistry returns a registry with the given tools
func NewRegistry(list ...ITool) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]ITool, len(list)),
	}
	for _, t := range list {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds the tool to the registry
func (r *Registry) Register(t ITool) error {
	key := normalizeName(t.Name())
	if key == "" {
		return errors.New("tool name is empty")
	}
	if _, ok := r.byName[key]; ok {
		return errors.Newf("tool already registered: %s", t.Name())
	}
	r.byName[key] = t
	r.tools = append(r.tools, t)
	return nil
}

// Find returns the tool by name
func (r *Registry) Find(name string) (ITool, bool) {
	t, ok := r.byName[normalizeName(name)]
	return t, ok
}

// Tools returns the registered tools in the registration order
func (r *Registry) Tools() []ITool {
	return r.tools
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	return len(r.tools)
}

// Definitions returns the tool definitions to be sent to the model
func (r *Registry) Definitions() []llms.Tool {
	defs := make([]llms.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Definition(t))
	}
	return defs
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
