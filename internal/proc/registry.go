// Package proc tracks in-flight external invocations by task key so they
// can be force-killed individually or all at once at shutdown.
package proc

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type trackedProcess struct {
	kill    func()
	started time.Time
}

// Registry is the single source of truth for what is currently running.
// Every long-lived external invocation registers itself before starting
// and unregisters on every exit path.
type Registry struct {
	log     zerolog.Logger
	mu      sync.Mutex
	entries map[string]trackedProcess
}

// NewRegistry creates an empty process registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		log:     log.With().Str("component", "proc-registry").Logger(),
		entries: make(map[string]trackedProcess),
	}
}

// Track registers a running invocation under key. The kill func must
// force-terminate the process and release its timeout; it is invoked at
// most once by the registry.
func (r *Registry) Track(key string, kill func()) {
	r.mu.Lock()
	r.entries[key] = trackedProcess{kill: kill, started: time.Now()}
	r.mu.Unlock()
}

// Untrack removes an entry. Untracking an absent key is a no-op.
func (r *Registry) Untrack(key string) {
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
}

// Cancel force-kills the invocation registered under key and removes it.
// Returns whether a process was found and killed. Calling it again for
// the same key is a safe no-op returning false.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	entry, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	entry.kill()
	r.log.Info().Str("key", key).
		Dur("ran", time.Since(entry.started)).
		Msg("process cancelled")
	return true
}

// CancelAll tears down every tracked invocation. Only used at
// process-wide shutdown. Returns how many were killed.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]trackedProcess)
	r.mu.Unlock()

	for key, entry := range entries {
		entry.kill()
		r.log.Info().Str("key", key).Msg("process cancelled at shutdown")
	}
	return len(entries)
}

// Active lists the keys of all tracked invocations.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	return keys
}
