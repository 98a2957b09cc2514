package pool

import "sync"

// Registry holds named executors for qualifier-based selection, plus an
// optional default used when no qualifier matches.
type Registry struct {
	mu    sync.RWMutex
	named map[string]Executor
	def   Executor
}

// NewRegistry returns a registry with the given default executor, which
// may be nil.
func NewRegistry(def Executor) *Registry {
	return &Registry{named: make(map[string]Executor), def: def}
}

// Register binds a qualifier to an executor, replacing any previous binding.
func (r *Registry) Register(name string, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.named[name] = exec
}

// Lookup returns the executor bound to the qualifier.
func (r *Registry) Lookup(name string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.named[name]
	return exec, ok
}

// Default returns the registry's default executor, or nil.
func (r *Registry) Default() Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}
