package transport

import (
	"sync"

	"github.com/google/uuid"

	"github.com/HendryAvila/compass/internal/auth"
)

// frameBuffer is how many replies a session queues before new ones are
// dropped from the stream. Dropped replies still reach the client as the
// POST response body.
const frameBuffer = 64

// Session is one open event stream and the identity captured when it opened.
type Session struct {
	ID       string
	Identity auth.Identity

	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Send queues a reply for the stream. It reports false when the session is
// closed or its queue is full.
func (s *Session) Send(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.frames <- frame:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.once.Do(func() { close(s.done) })
}

// Registry owns the open sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Open registers a new session for ident under a random id.
func (r *Registry) Open(ident auth.Identity) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		Identity: ident,
		frames:   make(chan []byte, frameBuffer),
		done:     make(chan struct{}),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns the open session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close evicts the session and closes it. It reports whether the session
// was open; closing twice is harmless.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.close()
	}
	return ok
}

// CloseAll closes every open session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	open := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range open {
		s.close()
	}
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
