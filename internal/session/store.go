// Package session owns the active conversation id and drives chat turns.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/comigor/triagem-go/internal/logger"
	"github.com/comigor/triagem-go/internal/triage"
)

// ErrTurnInFlight is returned when a turn is sent while another is pending.
var ErrTurnInFlight = errors.New("a message is already being sent")

// Sender is the part of the triage channel the store needs.
type Sender interface {
	SendMessage(ctx context.Context, message, sessionID string) (triage.Reply, error)
}

// Turn is the assistant's answer to one user message.
type Turn struct {
	Message   string
	SessionID string
}

// Store holds the session id for one chat screen. Once set, the id only
// changes when the service returns a different one or on Reset.
type Store struct {
	sender Sender

	mu        sync.Mutex
	sessionID string
	loading   bool
}

// NewStore creates a Store with no session.
func NewStore(sender Sender) *Store {
	return &Store{sender: sender}
}

// SessionID returns the stored id, or "" when none is known.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Loading reports whether a turn is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Adopt stores id if it is non-empty. It reports whether the stored id changed.
func (s *Store) Adopt(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adoptLocked(id)
}

// Reset forgets the session, for starting a brand-new triage.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = ""
}

// Initialize sends the empty bootstrap turn used when the screen was
// entered without a session and returns the service's opening message.
func (s *Store) Initialize(ctx context.Context) (string, error) {
	if err := s.begin(); err != nil {
		return "", err
	}
	defer s.end()

	reply, err := s.sender.SendMessage(ctx, "", "")
	if err != nil {
		return "", err
	}
	s.Adopt(reply.SessionID)
	return reply.Message, nil
}

// SendTurn sends body on explicitSessionID, or on the stored id when
// explicitSessionID is empty. Errors are returned as is; nothing is retried.
func (s *Store) SendTurn(ctx context.Context, body, explicitSessionID string) (Turn, error) {
	release, err := s.Claim()
	if err != nil {
		return Turn{}, err
	}
	defer release()
	return s.send(ctx, body, explicitSessionID)
}

// Claim reserves the in-flight slot for a caller that has work of its own
// to do before sending, such as echoing the user message. It fails with
// ErrTurnInFlight when a turn is already pending; otherwise release must
// be called once the turn is over.
func (s *Store) Claim() (release func(), err error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(s.end) }, nil
}

// SendClaimed sends a turn within a slot already taken with Claim.
func (s *Store) SendClaimed(ctx context.Context, body, explicitSessionID string) (Turn, error) {
	return s.send(ctx, body, explicitSessionID)
}

func (s *Store) send(ctx context.Context, body, explicitSessionID string) (Turn, error) {
	sessionID := explicitSessionID
	if sessionID == "" {
		sessionID = s.SessionID()
	}

	reply, err := s.sender.SendMessage(ctx, body, sessionID)
	if err != nil {
		return Turn{}, err
	}
	s.Adopt(reply.SessionID)
	if reply.SessionID != "" {
		sessionID = reply.SessionID
	}
	return Turn{Message: reply.Message, SessionID: sessionID}, nil
}

func (s *Store) adoptLocked(id string) bool {
	if id == "" || id == s.sessionID {
		return false
	}
	logger.L.Debug("session adopted", "previous", s.sessionID, "session_id", id)
	s.sessionID = id
	return true
}

func (s *Store) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return ErrTurnInFlight
	}
	s.loading = true
	return nil
}

func (s *Store) end() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}
