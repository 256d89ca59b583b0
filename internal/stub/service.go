package stub

import (
	"context"
	"fmt"

	"github.com/comigor/triagem-go/internal/logger"
)

// Service implements the triage service operations over a Store.
type Service struct {
	store     *Store
	responder Responder
}

// NewService builds a Service; a nil responder means Canned.
func NewService(store *Store, responder Responder) *Service {
	if responder == nil {
		responder = Canned{}
	}
	return &Service{store: store, responder: responder}
}

// Post handles one chat turn. Without a session id a new anonymous
// conversation is started. An empty message is the bootstrap turn and
// is answered with Opening.
func (s *Service) Post(ctx context.Context, sessionID, message string) (reply, id string, err error) {
	if sessionID == "" {
		if sessionID, err = s.store.Create(ctx, ""); err != nil {
			return "", "", err
		}
		logger.L.Info("conversation started", "session_id", sessionID)
	}

	history, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return "", "", err
	}

	switch {
	case message == "":
		reply = Opening
	case Alarming(message):
		logger.L.Warn("alarming message, skipping triage", "session_id", sessionID)
		reply = EmergencyReply
	default:
		if reply, err = s.responder.Reply(ctx, history, message); err != nil {
			return "", "", fmt.Errorf("reply: %w", err)
		}
	}

	if message != "" {
		if err := s.store.Append(ctx, sessionID, cargoUser, message); err != nil {
			return "", "", err
		}
		history = append(history, Record{Cargo: cargoUser, Body: message})
	}
	if err := s.store.Append(ctx, sessionID, cargoAI, reply); err != nil {
		return "", "", err
	}
	history = append(history, Record{Cargo: cargoAI, Body: reply})

	if message != "" {
		s.collect(ctx, sessionID, history)
	}
	return reply, sessionID, nil
}

// collect refreshes the stored triage record. Failures keep the previous
// record; the turn itself already succeeded.
func (s *Service) collect(ctx context.Context, sessionID string, history []Record) {
	t, err := s.responder.Collect(ctx, history)
	if err != nil {
		logger.L.Warn("triage collection failed", "session_id", sessionID, "error", err)
		return
	}
	if err := s.store.SaveTriage(ctx, sessionID, t); err != nil {
		logger.L.Warn("triage save failed", "session_id", sessionID, "error", err)
	}
}

// Create starts a conversation for phone.
func (s *Service) Create(ctx context.Context, phone string) (string, error) {
	id, err := s.store.Create(ctx, phone)
	if err != nil {
		return "", err
	}
	logger.L.Info("conversation created", "session_id", id)
	return id, nil
}

func (s *Service) List(ctx context.Context, phone string) ([]Row, error) {
	return s.store.ListByPhone(ctx, phone)
}

func (s *Service) Messages(ctx context.Context, sessionID string) ([]Record, error) {
	return s.store.Messages(ctx, sessionID)
}

func (s *Service) Triage(ctx context.Context, sessionID string) (Triage, error) {
	return s.store.LoadTriage(ctx, sessionID)
}
