package workflow

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// RunnerFunc is the JSON-in, JSON-out form a Definition takes once
// registered. The runner and the resume path only deal in RunnerFuncs.
type RunnerFunc func(wf *Workflow, input []byte) ([]byte, error)

type version struct {
	n      int
	runner RunnerFunc
}

// Registry holds workflow definitions by name and version. A new run
// takes the highest version; a resumed run keeps the version it started
// with. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string][]version // ascending by n
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string][]version)}
}

// RegisterDefinition adds def to r. Version 0 counts as 1, and registering
// an existing name and version replaces the earlier handler.
//
// It is a function rather than a method because methods cannot take type
// parameters.
func RegisterDefinition[T, R any](r *Registry, def *Definition[T, R]) {
	n := max(def.Version, 1)

	runner := func(wf *Workflow, input []byte) ([]byte, error) {
		var in T
		if len(input) > 0 {
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, fmt.Errorf("workflow %s: decode input: %w", def.Name, err)
			}
		}
		result, err := def.Handler(wf, in)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("workflow %s: encode output: %w", def.Name, err)
		}
		return out, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	vs := r.byName[def.Name]
	i, found := slices.BinarySearchFunc(vs, n, func(v version, n int) int { return v.n - n })
	if found {
		vs[i].runner = runner
		return
	}
	r.byName[def.Name] = slices.Insert(vs, i, version{n: n, runner: runner})
}

// Get returns the newest version of name.
func (r *Registry) Get(name string) (RunnerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs := r.byName[name]
	if len(vs) == 0 {
		return nil, false
	}
	return vs[len(vs)-1].runner, true
}

// GetVersion returns version n of name. n <= 0 means the newest.
func (r *Registry) GetVersion(name string, n int) (RunnerFunc, bool) {
	if n <= 0 {
		return r.Get(name)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs := r.byName[name]
	i, found := slices.BinarySearchFunc(vs, n, func(v version, n int) int { return v.n - n })
	if !found {
		return nil, false
	}
	return vs[i].runner, true
}

// LatestVersion returns the newest version of name, or 0 if it is unknown.
func (r *Registry) LatestVersion(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs := r.byName[name]
	if len(vs) == 0 {
		return 0
	}
	return vs[len(vs)-1].n
}

// Names returns the registered workflow names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
