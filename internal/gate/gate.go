// Package gate implements the phone lookup step that precedes a chat: the
// user enters a phone number, then starts a new conversation or resumes
// one of the conversations found for it.
package gate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/qmuntal/stateless"

	"github.com/comigor/triagem-go/internal/bridge"
	"github.com/comigor/triagem-go/internal/logger"
	"github.com/comigor/triagem-go/internal/notify"
	"github.com/comigor/triagem-go/internal/triage"
)

// Step is a gate FSM state.
type Step string

const (
	StepPhoneInput         Step = "PHONE_INPUT"
	StepConversationSelect Step = "CONVERSATION_SELECT"
)

type trigger string

const (
	triggerPhoneFound trigger = "PhoneFound"
	triggerBack       trigger = "Back"
	triggerReset      trigger = "Reset"
)

var (
	// ErrBusy is returned while another gate action is in flight.
	ErrBusy = errors.New("gate action already in progress")
	// ErrWrongStep is returned when an action does not apply to the current step.
	ErrWrongStep = errors.New("action not available in current step")
	// ErrClosed is returned by an action whose gate was closed before the
	// call resolved.
	ErrClosed = errors.New("gate closed")
)

// Lookup is the part of the triage channel the gate needs.
type Lookup interface {
	ListConversations(ctx context.Context, phoneNumber string) ([]triage.Conversation, error)
	CreateConversation(ctx context.Context, phoneNumber string) (string, error)
	Messages(ctx context.Context, sessionID string) ([]triage.Message, error)
}

// Gate is the two-step lookup flow. Results of a call that resolves after
// Close are dropped.
type Gate struct {
	lookup   Lookup
	notifier notify.Notifier
	fsm      *stateless.StateMachine

	mu            sync.Mutex
	phone         string
	conversations []triage.Conversation
	loading       bool
	generation    uint64
}

// New creates a gate in StepPhoneInput.
func New(lookup Lookup, notifier notify.Notifier) *Gate {
	if notifier == nil {
		notifier = notify.Discard
	}
	g := &Gate{lookup: lookup, notifier: notifier}
	g.fsm = g.newStateMachine()
	return g
}

// The FSM callbacks run inside Fire, which is only called with g.mu held.
func (g *Gate) newStateMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StepPhoneInput)

	fsm.Configure(StepPhoneInput).
		Permit(triggerPhoneFound, StepConversationSelect).
		PermitReentry(triggerReset).
		OnEntryFrom(triggerBack, func(_ context.Context, _ ...any) error {
			g.conversations = nil
			return nil
		}).
		OnEntryFrom(triggerReset, func(_ context.Context, _ ...any) error {
			g.clearLocked()
			return nil
		})

	fsm.Configure(StepConversationSelect).
		Permit(triggerBack, StepPhoneInput).
		Permit(triggerReset, StepPhoneInput).
		OnEntryFrom(triggerPhoneFound, func(_ context.Context, args ...any) error {
			rows, _ := args[0].([]triage.Conversation)
			g.conversations = rows
			return nil
		})

	return fsm
}

// Step returns the current step.
func (g *Gate) Step() Step {
	return g.fsm.MustState().(Step)
}

// Phone returns the phone number accepted by the last successful submit.
func (g *Gate) Phone() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phone
}

// Conversations returns the conversations found for the phone number.
func (g *Gate) Conversations() []triage.Conversation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.conversations)
}

// CanContinue reports whether there is a prior conversation to resume.
// When false the only option is to start a new one.
func (g *Gate) CanContinue() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conversations) > 0
}

// Loading reports whether an action is in flight.
func (g *Gate) Loading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading
}

// SubmitPhone validates raw and looks up its conversations. Validation
// failures make no call and change nothing.
func (g *Gate) SubmitPhone(ctx context.Context, raw string) error {
	phone := strings.TrimSpace(raw)

	g.mu.Lock()
	if g.Step() != StepPhoneInput {
		g.mu.Unlock()
		return ErrWrongStep
	}
	if g.loading {
		g.mu.Unlock()
		return ErrBusy
	}
	if err := ValidatePhone(phone); err != nil {
		g.mu.Unlock()
		if errors.Is(err, ErrPhoneRequired) {
			g.notifier.Notify(notify.Error("Por favor, digite seu número de telefone"))
		} else {
			g.notifier.Notify(notify.Error("Por favor, digite um número de telefone válido (10-11 dígitos)"))
		}
		return err
	}
	gen := g.startLocked()
	g.mu.Unlock()

	rows, err := g.lookup.ListConversations(ctx, phone)

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.finishLocked(gen) {
		return ErrClosed
	}
	if err != nil {
		logger.L.Warn("conversation lookup failed", "error", err)
		g.notifier.Notify(notify.Error("Não foi possível buscar suas conversas. Tente novamente."))
		return fmt.Errorf("lookup conversations: %w", err)
	}
	g.phone = phone
	if rows == nil {
		rows = []triage.Conversation{}
	}
	return g.fsm.Fire(triggerPhoneFound, rows)
}

// ChooseNew creates a session for the phone number and closes the gate.
func (g *Gate) ChooseNew(ctx context.Context) (bridge.ChatPayload, error) {
	g.mu.Lock()
	gen, phone, err := g.beginSelectLocked()
	g.mu.Unlock()
	if err != nil {
		return bridge.ChatPayload{}, err
	}

	sessionID, err := g.lookup.CreateConversation(ctx, phone)

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.finishLocked(gen) {
		return bridge.ChatPayload{}, ErrClosed
	}
	if err != nil {
		logger.L.Warn("create conversation failed", "error", err)
		g.notifier.Notify(notify.Error("Não foi possível iniciar uma nova conversa. Tente novamente."))
		return bridge.ChatPayload{}, fmt.Errorf("create conversation: %w", err)
	}
	logger.L.Info("conversation created", "session_id", sessionID)
	g.resetLocked()
	return bridge.ChatPayload{SessionID: sessionID, PhoneNumber: phone}, nil
}

// ChooseExisting loads the history of sessionID and closes the gate.
func (g *Gate) ChooseExisting(ctx context.Context, sessionID string) (bridge.ChatPayload, error) {
	g.mu.Lock()
	gen, phone, err := g.beginSelectLocked()
	g.mu.Unlock()
	if err != nil {
		return bridge.ChatPayload{}, err
	}

	history, err := g.lookup.Messages(ctx, sessionID)

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.finishLocked(gen) {
		return bridge.ChatPayload{}, ErrClosed
	}
	if err != nil {
		logger.L.Warn("load conversation failed", "session_id", sessionID, "error", err)
		g.notifier.Notify(notify.Error("Não foi possível carregar a conversa. Tente novamente."))
		return bridge.ChatPayload{}, fmt.Errorf("load conversation: %w", err)
	}
	g.resetLocked()
	return bridge.ChatPayload{SessionID: sessionID, PhoneNumber: phone, ExistingMessages: history}, nil
}

// Back returns to the phone step and forgets the conversations found.
func (g *Gate) Back() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading {
		return ErrBusy
	}
	if g.Step() != StepConversationSelect {
		return ErrWrongStep
	}
	return g.fsm.Fire(triggerBack)
}

// Close resets the gate. A call still in flight is abandoned.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
}

func (g *Gate) beginSelectLocked() (uint64, string, error) {
	if g.Step() != StepConversationSelect {
		return 0, "", ErrWrongStep
	}
	if g.loading {
		return 0, "", ErrBusy
	}
	return g.startLocked(), g.phone, nil
}

func (g *Gate) startLocked() uint64 {
	g.loading = true
	return g.generation
}

// finishLocked ends an action and reports whether its result still applies.
func (g *Gate) finishLocked(gen uint64) bool {
	if gen != g.generation {
		return false
	}
	g.loading = false
	return true
}

func (g *Gate) resetLocked() {
	g.generation++
	if err := g.fsm.Fire(triggerReset); err != nil {
		logger.L.Warn("gate reset failed", "error", err)
		g.clearLocked()
	}
}

func (g *Gate) clearLocked() {
	g.phone = ""
	g.conversations = nil
	g.loading = false
}
