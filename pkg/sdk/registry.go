package sdk

import (
	"sort"
	"sync"

	"github.com/rendis/wfscript/pkg/schema"
)

// Registry is a thread-safe builder for a capability table. Hosts that wire
// capabilities from several places register them here and hand the snapshot
// returned by Functions to the interpreter.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]Func),
	}
}

// Register adds a capability. Returns error on nil, unknown or duplicate names.
func (r *Registry) Register(name string, fn Func) error {
	if fn == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "capability %q is nil", name)
	}
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "capability name is empty")
	}
	if !IsFunctionName(name) {
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown capability %q", name).
			WithDetails(map[string]any{"capability": name, "available": FunctionNames})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "capability %q already registered", name)
	}

	r.funcs[name] = fn
	return nil
}

// RegisterAll registers every entry of table, stopping at the first error.
// Entries are registered in name order so failures are deterministic.
func (r *Registry) RegisterAll(table Functions) (int, error) {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	registered := 0
	for _, name := range names {
		if err := r.Register(name, table[name]); err != nil {
			return registered, err
		}
		registered++
	}
	return registered, nil
}

// Get retrieves a capability by name.
func (r *Registry) Get(name string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "capability %q not registered", name)
	}
	return fn, nil
}

// Has checks if a capability is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// List returns registered capability names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Functions returns a snapshot of the registered table.
func (r *Registry) Functions() Functions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Functions(r.funcs).Clone()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
