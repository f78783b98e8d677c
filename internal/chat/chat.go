// Package chat keeps per-session chat history for the HTTP front end.
package chat

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	WelcomeMessage = "Hello! I'm ready to answer your questions about the documents."
	EmptyMessage   = "👋 Welcome! Please upload documents to get started."
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	ID       string
	Messages []Message
}

// Store is an in-memory, concurrency-safe set of sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session), now: time.Now}
}

// Create starts a session and returns its ID.
func (s *Store) Create() string {
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = &Session{ID: id}
	s.mu.Unlock()
	return id
}

// Append adds a message to the session history.
func (s *Store) Append(id, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Messages = append(sess.Messages, Message{Role: role, Content: content, CreatedAt: s.now()})
	return nil
}

// Messages returns a copy of the session history.
func (s *Store) Messages(id string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	out := make([]Message, len(sess.Messages))
	copy(out, sess.Messages)
	return out, nil
}

// Clear empties the history but keeps the session.
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Messages = nil
	return nil
}

// Delete forgets a session. Unknown IDs are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Broadcast appends an assistant message to every session.
func (s *Store) Broadcast(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, sess := range s.sessions {
		sess.Messages = append(sess.Messages, Message{Role: RoleAssistant, Content: content, CreatedAt: now})
	}
}

// ClearAll drops every session's history.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		sess.Messages = nil
	}
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// UpdateNotice is posted to sessions after new documents are indexed.
func UpdateNotice(n int) string {
	return fmt.Sprintf("🔄 **The system has been updated with %d new document(s).** You can now continue asking questions.", n)
}
