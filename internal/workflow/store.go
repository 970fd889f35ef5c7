package workflow

import (
	"fmt"
	"sync"

	"github.com/caldermed/psurd/internal/ingest"
)

// sessionStore is a concurrency-safe in-memory session map. Sessions are
// keyed by ID with a separate slice keeping insertion order for
// deterministic listing. Reads return deep copies; mutation goes through
// Update under the write lock.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	orderIDs []string
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*Session)}
}

func (s *sessionStore) Create(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("workflow: session %q already exists", sess.ID)
	}
	s.sessions[sess.ID] = &sess
	s.orderIDs = append(s.orderIDs, sess.ID)
	return nil
}

// Get returns a deep copy safe to mutate without affecting the store.
func (s *sessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("workflow: session %q not found", id)
	}
	return deepCopySession(sess), nil
}

func (s *sessionStore) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.orderIDs))
	for _, id := range s.orderIDs {
		out = append(out, deepCopySession(s.sessions[id]))
	}
	return out
}

// Update applies fn to the stored session under the write lock. fn
// receives the actual stored pointer; mutations apply in place.
func (s *sessionStore) Update(id string, fn func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("workflow: session %q not found", id)
	}
	fn(sess)
	return nil
}

func (s *sessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("workflow: session %q not found", id)
	}
	delete(s.sessions, id)
	for i, oid := range s.orderIDs {
		if oid == id {
			s.orderIDs = append(s.orderIDs[:i], s.orderIDs[i+1:]...)
			break
		}
	}
	return nil
}

func deepCopySession(sess *Session) *Session {
	cp := *sess
	cp.Tasks = make(map[string]*SectionTask, len(sess.Tasks))
	for id, t := range sess.Tasks {
		tc := *t
		tc.DependsOn = append([]string(nil), t.DependsOn...)
		tc.Feedback = append([]string(nil), t.Feedback...)
		cp.Tasks[id] = &tc
	}
	cp.Issues = append([]ingest.Issue(nil), sess.Issues...)
	return &cp
}
