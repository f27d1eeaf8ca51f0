package process

import (
	"sort"
	"sync"
	"time"
)

// Registry maps logical names to ManagedProcess instances. It is the single
// authority for whether a named pipeline is alive.
type Registry struct {
	opts      Options
	processes map[string]*ManagedProcess
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	return &Registry{
		opts:      o.withDefaults(),
		processes: make(map[string]*ManagedProcess),
	}
}

// Get returns the process registered under name, creating it in the stopped
// state on first use. The same name always yields the same instance.
func (r *Registry) Get(name string) *ManagedProcess {
	r.mu.RLock()
	if p, exists := r.processes[name]; exists {
		r.mu.RUnlock()
		return p
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check in case another goroutine created it
	if p, exists := r.processes[name]; exists {
		return p
	}

	p := NewManagedProcess(name, r.opts)
	r.processes[name] = p
	return p
}

// Lookup returns the process for name without creating it.
func (r *Registry) Lookup(name string) (*ManagedProcess, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processes[name]
	return p, ok
}

// Start starts args under name. See ManagedProcess.Start.
func (r *Registry) Start(name string, args []string, grace time.Duration) bool {
	return r.Get(name).Start(args, grace)
}

// Stop stops the process registered under name. See ManagedProcess.Stop.
func (r *Registry) Stop(name string, timeout time.Duration) bool {
	return r.Get(name).Stop(timeout)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.processes))
	for name := range r.processes {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// StopAll stops every registered process concurrently and reports the
// result per name. A failure on one entry never prevents the others from
// being stopped.
func (r *Registry) StopAll(timeout time.Duration) map[string]bool {
	procs := r.all()
	r.opts.Logger.Info("Stopping all processes", "count", len(procs))

	results := make(map[string]bool, len(procs))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range procs {
		wg.Add(1)
		go func(p *ManagedProcess) {
			defer wg.Done()
			ok := p.Stop(timeout)
			mu.Lock()
			results[p.Name()] = ok
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	for name, ok := range results {
		if !ok {
			r.opts.Logger.Error("Process stop unconfirmed", "name", name)
		}
	}
	r.opts.Logger.Info("All processes stopped")
	return results
}

// Snapshot polls every entry and returns their status sorted by name.
func (r *Registry) Snapshot() []Status {
	procs := r.all()
	out := make([]Status, 0, len(procs))
	for _, p := range procs {
		out = append(out, p.Status())
	}
	return out
}

// RunningCount returns how many entries are currently running.
func (r *Registry) RunningCount() int {
	n := 0
	for _, p := range r.all() {
		if p.Poll() == StateRunning {
			n++
		}
	}
	return n
}

// all returns the registered processes sorted by name.
func (r *Registry) all() []*ManagedProcess {
	r.mu.RLock()
	procs := make([]*ManagedProcess, 0, len(r.processes))
	for _, p := range r.processes {
		procs = append(procs, p)
	}
	r.mu.RUnlock()

	sort.Slice(procs, func(i, j int) bool { return procs[i].Name() < procs[j].Name() })
	return procs
}
