package mcp

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wiresharks/claudecodex/internal/telemetry"
)

// session tracks one HTTP client between initialize and DELETE.
type session struct {
	id      string
	agent   string
	created time.Time
	trace   *telemetry.TraceContext
}

// sessionRegistry hands out Mcp-Session-Id values and resolves them on
// later requests.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*session)}
}

func (r *sessionRegistry) create(agent string) *session {
	id := uuid.New().String()
	s := &session{
		id:      id,
		agent:   agent,
		created: time.Now().UTC(),
		trace:   telemetry.NewTraceContext(id).WithAgent(agent),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
	return s
}

func (r *sessionRegistry) get(id string) *session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// remove reports whether the session existed.
func (r *sessionRegistry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *sessionRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
