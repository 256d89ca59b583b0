// Package screen holds the chat and summary screen controllers. They own
// per-screen state and turn failures into notices and navigation, never
// into crashes.
package screen

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/comigor/triagem-go/internal/bridge"
	"github.com/comigor/triagem-go/internal/emergency"
	"github.com/comigor/triagem-go/internal/logger"
	"github.com/comigor/triagem-go/internal/notify"
	"github.com/comigor/triagem-go/internal/session"
	"github.com/comigor/triagem-go/internal/triage"
)

// Greeting is shown when the service has not provided an opening message.
const Greeting = "Olá! Sou seu assistente de triagem médica. Vou fazer algumas perguntas para entender melhor sua situação. Como posso te ajudar hoje?"

var (
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoSession is returned when a summary is requested before any session exists.
	ErrNoSession = errors.New("no active session")
)

// Channel is the part of the triage channel the chat screen needs.
type Channel interface {
	session.Sender
	Summary(ctx context.Context, sessionID string) (triage.RawSummary, error)
}

// Chat is the conversation screen.
type Chat struct {
	channel  Channel
	store    *session.Store
	notifier notify.Notifier
	now      func() time.Time

	mu         sync.Mutex
	phone      string
	transcript []triage.Message
}

// EnterChat builds the chat screen from an optional payload. With a
// payload the session and history are adopted as is; without one the
// conversation is bootstrapped, falling back to Greeting if that fails.
func EnterChat(ctx context.Context, channel Channel, notifier notify.Notifier, payload *bridge.ChatPayload) *Chat {
	if notifier == nil {
		notifier = notify.Discard
	}
	c := &Chat{
		channel:  channel,
		store:    session.NewStore(channel),
		notifier: notifier,
		now:      time.Now,
	}

	if payload != nil {
		c.store.Adopt(payload.SessionID)
		c.phone = payload.PhoneNumber
		if len(payload.ExistingMessages) > 0 {
			c.transcript = slices.Clone(payload.ExistingMessages)
		} else {
			c.transcript = []triage.Message{c.assistant(Greeting)}
		}
		logger.L.Info("chat entered", "session_id", payload.SessionID, "history", len(payload.ExistingMessages))
		return c
	}

	opening, err := c.store.Initialize(ctx)
	if err != nil {
		logger.L.Warn("chat bootstrap failed, using local greeting", "error", err)
		notifier.Notify(notify.Notice{
			Title:       "Aviso",
			Description: "Não foi possível conectar ao assistente agora. Você ainda pode enviar sua mensagem.",
		})
	}
	if strings.TrimSpace(opening) == "" {
		opening = Greeting
	}
	c.transcript = []triage.Message{c.assistant(opening)}
	return c
}

// SessionID returns the active session id, "" before the first turn of
// a conversation whose bootstrap failed.
func (c *Chat) SessionID() string {
	return c.store.SessionID()
}

// Loading reports whether a turn is in flight.
func (c *Chat) Loading() bool {
	return c.store.Loading()
}

// Messages returns the visible messages.
func (c *Chat) Messages() []bridge.DisplayMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bridge.ToDisplay(c.transcript)
}

// CanViewSummary reports whether enough has been said for a summary.
func (c *Chat) CanViewSummary() bool {
	return len(c.Messages()) > 2
}

// Send sends one user message. A second Send while one is pending fails
// with session.ErrTurnInFlight and leaves the transcript untouched. The
// user message stays in the transcript when the turn fails so the user can
// see what to resend.
func (c *Chat) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	release, err := c.store.Claim()
	if err != nil {
		return err
	}
	defer release()

	c.append(triage.Message{Role: triage.RoleUser, Body: text, Timestamp: c.now()})

	turn, err := c.store.SendClaimed(ctx, text, "")
	if err != nil {
		logger.L.Warn("chat turn failed", "session_id", c.store.SessionID(), "error", err)
		c.notifier.Notify(notify.Notice{
			Title:       "Erro na conexão",
			Description: "Tente novamente em alguns instantes",
			Destructive: true,
		})
		return err
	}

	c.append(c.assistant(turn.Message))
	if emergency.IsEmergency(turn.Message) {
		logger.L.Warn("emergency reply", "session_id", turn.SessionID)
		c.notifier.Notify(notify.Notice{
			Title:       "Situação de Emergência Detectada",
			Description: "Procure atendimento médico imediatamente",
			Destructive: true,
		})
	}
	return nil
}

// ViewSummary fetches the session's summary and navigates to it. Without
// a session, or when the record cannot be read, the user is sent home;
// on a transport failure the chat stays so the user can retry.
func (c *Chat) ViewSummary(ctx context.Context) (bridge.Navigation, error) {
	sessionID := c.store.SessionID()
	if sessionID == "" {
		c.notifier.Notify(notify.Notice{
			Title:       "Sessão não encontrada",
			Description: "Inicie uma conversa antes de ver o resumo",
			Destructive: true,
		})
		return bridge.Home(), ErrNoSession
	}

	raw, err := c.channel.Summary(ctx, sessionID)
	if err != nil {
		logger.L.Warn("summary fetch failed", "session_id", sessionID, "error", err)
		c.notifier.Notify(notify.Notice{
			Title:       "Erro ao carregar resumo",
			Description: "Não foi possível carregar o resumo da triagem",
			Destructive: true,
		})
		var parseErr *triage.ParseError
		if errors.As(err, &parseErr) {
			return bridge.Home(), err
		}
		return bridge.Stay(), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return bridge.ToSummary(bridge.SummaryPayload{
		SessionID:   sessionID,
		PhoneNumber: c.phone,
		Summary:     raw,
		Messages:    c.transcript,
	}), nil
}

func (c *Chat) append(m triage.Message) {
	c.mu.Lock()
	c.transcript = append(c.transcript, m)
	c.mu.Unlock()
}

func (c *Chat) assistant(body string) triage.Message {
	return triage.Message{Role: triage.RoleAssistant, Body: body, Timestamp: c.now()}
}
