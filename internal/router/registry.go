package router

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"forest/internal/domain"
	"forest/internal/logging"
)

// Registry holds every registered tool, thread-safe for concurrent lookup
// and registration at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Registering a second tool under the same name
// replaces the first, which is how the landing-page tool and the
// diagnostic cache tools' "prefer the later handler" rule is realized:
// register the preferred handler last.
func (r *Registry) Register(tool *Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("router: tool name cannot be empty")
	}
	if tool.Execute == nil {
		return fmt.Errorf("router: tool %s has no execute function", tool.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
	logging.RouterDebug("registered tool %s (category=%s)", tool.Name, tool.Category)
	return nil
}

// Get returns a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns every registered tool name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute validates required arguments and runs the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, domain.UnknownTool{Name: name}
	}
	if err := validateArgs(tool, args); err != nil {
		return nil, err
	}
	logging.RouterDebug("dispatching tool %s", name)
	result, err := tool.Execute(ctx, args)
	if err != nil {
		logging.RouterError("tool %s failed: %v", name, err)
	}
	return result, err
}

func validateArgs(tool *Tool, args map[string]any) error {
	var missing []string
	for _, key := range tool.Schema.Required {
		if _, ok := args[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return domain.ValidationError{
		Key:     join(missing),
		Message: fmt.Sprintf("missing required argument(s): %s", join(missing)),
	}
}

func join(keys []string) string {
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += k
	}
	return out
}
