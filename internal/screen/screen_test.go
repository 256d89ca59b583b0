package screen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/triagem-go/internal/bridge"
	"github.com/comigor/triagem-go/internal/notify"
	"github.com/comigor/triagem-go/internal/session"
	"github.com/comigor/triagem-go/internal/summary"
	"github.com/comigor/triagem-go/internal/triage"
)

type mockChannel struct {
	SendFunc    func(ctx context.Context, message, sessionID string) (triage.Reply, error)
	SummaryFunc func(ctx context.Context, sessionID string) (triage.RawSummary, error)
	sends       []string
}

func (m *mockChannel) SendMessage(ctx context.Context, message, sessionID string) (triage.Reply, error) {
	m.sends = append(m.sends, message)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, message, sessionID)
	}
	return triage.Reply{Message: "Entendi.", SessionID: sessionID}, nil
}

func (m *mockChannel) Summary(ctx context.Context, sessionID string) (triage.RawSummary, error) {
	if m.SummaryFunc != nil {
		return m.SummaryFunc(ctx, sessionID)
	}
	return triage.RawSummary{}, nil
}

type recorder struct {
	notices []notify.Notice
}

func (r *recorder) Notify(n notify.Notice) { r.notices = append(r.notices, n) }

func TestEnterChat_PayloadWithHistorySkipsNetwork(t *testing.T) {
	ch := &mockChannel{}
	payload := &bridge.ChatPayload{
		SessionID:   "s-1",
		PhoneNumber: "11999998888",
		ExistingMessages: []triage.Message{
			{Role: triage.RoleSystem, Body: "prompt"},
			{Role: triage.RoleUser, Body: "dor no peito"},
			{Role: triage.RoleAssistant, Body: "⚠️ Chame o SAMU"},
		},
	}

	c := EnterChat(context.Background(), ch, nil, payload)
	require.Empty(t, ch.sends)
	require.Equal(t, "s-1", c.SessionID())

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	require.True(t, msgs[0].IsUser)
	require.True(t, msgs[1].IsEmergency)
}

func TestEnterChat_PayloadWithoutHistoryShowsGreeting(t *testing.T) {
	ch := &mockChannel{}
	c := EnterChat(context.Background(), ch, nil, &bridge.ChatPayload{SessionID: "s-42", PhoneNumber: "11999998888"})

	require.Empty(t, ch.sends)
	require.Equal(t, "s-42", c.SessionID())
	msgs := c.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, Greeting, msgs[0].Content)
	require.False(t, msgs[0].IsUser)
}

func TestEnterChat_NoPayloadBootstraps(t *testing.T) {
	ch := &mockChannel{SendFunc: func(ctx context.Context, message, sessionID string) (triage.Reply, error) {
		require.Empty(t, message)
		require.Empty(t, sessionID)
		return triage.Reply{Message: "Olá, qual é a sua queixa?", SessionID: "boot"}, nil
	}}

	c := EnterChat(context.Background(), ch, nil, nil)
	require.Equal(t, "boot", c.SessionID())
	require.Equal(t, "Olá, qual é a sua queixa?", c.Messages()[0].Content)
}

func TestEnterChat_BootstrapFailureIsNotFatal(t *testing.T) {
	ch := &mockChannel{SendFunc: func(ctx context.Context, message, sessionID string) (triage.Reply, error) {
		return triage.Reply{}, &triage.TransportError{Op: "send message", StatusCode: 500}
	}}
	rec := &recorder{}

	c := EnterChat(context.Background(), ch, rec, nil)
	require.NotNil(t, c)
	require.Empty(t, c.SessionID())
	require.Equal(t, Greeting, c.Messages()[0].Content)
	require.Len(t, rec.notices, 1)
	require.False(t, rec.notices[0].Destructive)
}

func TestSend_EmergencyNoticeOncePerTurn(t *testing.T) {
	ch := &mockChannel{SendFunc: func(ctx context.Context, message, sessionID string) (triage.Reply, error) {
		return triage.Reply{Message: "Dirija-se ao pronto-socorro mais próximo ou chame o SAMU (192).", SessionID: "s-1"}, nil
	}}
	rec := &recorder{}
	c := EnterChat(context.Background(), ch, rec, &bridge.ChatPayload{SessionID: "s-1"})

	require.NoError(t, c.Send(context.Background(), "dor no peito forte"))

	require.Len(t, rec.notices, 1)
	require.Equal(t, "Situação de Emergência Detectada", rec.notices[0].Title)
	require.True(t, rec.notices[0].Destructive)

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "dor no peito forte", msgs[1].Content)
	require.True(t, msgs[2].IsEmergency)
}

func TestSend_OrdinaryReplyNoNotice(t *testing.T) {
	rec := &recorder{}
	c := EnterChat(context.Background(), &mockChannel{}, rec, &bridge.ChatPayload{SessionID: "s-1"})

	require.NoError(t, c.Send(context.Background(), "tenho uma leve dor de cabeça"))
	require.Empty(t, rec.notices)
	require.True(t, c.CanViewSummary())
}

func TestSend_FailureKeepsUserMessage(t *testing.T) {
	ch := &mockChannel{SendFunc: func(ctx context.Context, message, sessionID string) (triage.Reply, error) {
		return triage.Reply{}, errors.New("connection reset")
	}}
	rec := &recorder{}
	c := EnterChat(context.Background(), ch, rec, &bridge.ChatPayload{SessionID: "s-1"})

	require.Error(t, c.Send(context.Background(), "febre"))
	require.Len(t, rec.notices, 1)
	require.Equal(t, "Erro na conexão", rec.notices[0].Title)
	require.Len(t, c.Messages(), 2)
	require.False(t, c.Loading())
}

func TestSend_Blank(t *testing.T) {
	ch := &mockChannel{}
	c := EnterChat(context.Background(), ch, nil, &bridge.ChatPayload{SessionID: "s-1"})
	require.ErrorIs(t, c.Send(context.Background(), "   "), ErrEmptyMessage)
	require.Empty(t, ch.sends)
}

func TestViewSummary_NoSessionGoesHome(t *testing.T) {
	ch := &mockChannel{SendFunc: func(ctx context.Context, message, sessionID string) (triage.Reply, error) {
		return triage.Reply{}, errors.New("offline")
	}}
	rec := &recorder{}
	c := EnterChat(context.Background(), ch, rec, nil)

	nav, err := c.ViewSummary(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
	require.Equal(t, bridge.RouteHome, nav.Route)
	require.Len(t, rec.notices, 2)
}

func TestViewSummary_TransportFailureStays(t *testing.T) {
	ch := &mockChannel{SummaryFunc: func(ctx context.Context, sessionID string) (triage.RawSummary, error) {
		return triage.RawSummary{}, &triage.TransportError{Op: "fetch summary", StatusCode: 404}
	}}
	c := EnterChat(context.Background(), ch, nil, &bridge.ChatPayload{SessionID: "s-1"})

	nav, err := c.ViewSummary(context.Background())
	require.Error(t, err)
	require.Equal(t, bridge.RouteNone, nav.Route)
}

func TestViewSummary_ParseFailureGoesHome(t *testing.T) {
	ch := &mockChannel{SummaryFunc: func(ctx context.Context, sessionID string) (triage.RawSummary, error) {
		return triage.RawSummary{}, &triage.ParseError{Op: "fetch summary", Err: errors.New("bad")}
	}}
	c := EnterChat(context.Background(), ch, nil, &bridge.ChatPayload{SessionID: "s-1"})

	nav, err := c.ViewSummary(context.Background())
	require.Error(t, err)
	require.Equal(t, bridge.RouteHome, nav.Route)
}

func TestSummaryRoundTrip_BackToChatWithoutRefetch(t *testing.T) {
	ch := &mockChannel{SummaryFunc: func(ctx context.Context, sessionID string) (triage.RawSummary, error) {
		require.Equal(t, "s-1", sessionID)
		return triage.RawSummary{
			Symptoms: triage.Symptoms{Single: triage.NewText("tosse")},
			Duration: triage.NewText("2 dias"),
		}, nil
	}}
	c := EnterChat(context.Background(), ch, nil, &bridge.ChatPayload{SessionID: "s-1", PhoneNumber: "11999998888"})
	require.NoError(t, c.Send(context.Background(), "tosse há 2 dias"))

	nav, err := c.ViewSummary(context.Background())
	require.NoError(t, err)
	require.Equal(t, bridge.RouteSummary, nav.Route)

	s, stay := EnterSummary(nav.Summary, nil)
	require.Equal(t, bridge.RouteNone, stay.Route)
	require.Equal(t, "s-1", s.SessionID())
	require.Equal(t, summary.Placeholder, s.Display().MainComplaint)
	require.Equal(t, []string{"tosse"}, s.Display().Symptoms)
	require.Equal(t, "2 dias", s.Display().Duration)

	back := s.BackToChat()
	require.Equal(t, bridge.RouteChat, back.Route)

	sendsBefore := len(ch.sends)
	again := EnterChat(context.Background(), ch, nil, back.Chat)
	require.Len(t, ch.sends, sendsBefore)
	require.Equal(t, c.Messages(), again.Messages())
	require.Equal(t, "s-1", again.SessionID())
}

func TestEnterSummary_NoPayloadGoesHome(t *testing.T) {
	rec := &recorder{}
	s, nav := EnterSummary(nil, rec)
	require.Nil(t, s)
	require.Equal(t, bridge.RouteHome, nav.Route)
	require.Len(t, rec.notices, 1)
}

func TestSummary_NewTriage(t *testing.T) {
	s, _ := EnterSummary(&bridge.SummaryPayload{SessionID: "s-1"}, nil)
	nav := s.NewTriage()
	require.Equal(t, bridge.RouteChat, nav.Route)
	require.Nil(t, nav.Chat)
}

func TestSend_OverlappingSendIsRejectedWithoutSideEffects(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	ch := &mockChannel{SendFunc: func(ctx context.Context, message, sessionID string) (triage.Reply, error) {
		close(entered)
		<-unblock
		return triage.Reply{Message: "ok", SessionID: sessionID}, nil
	}}
	rec := &recorder{}
	c := EnterChat(context.Background(), ch, rec, &bridge.ChatPayload{SessionID: "s-1"})

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), "primeira") }()
	<-entered

	require.ErrorIs(t, c.Send(context.Background(), "segunda"), session.ErrTurnInFlight)
	require.Empty(t, rec.notices)
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "primeira", msgs[1].Content)

	close(unblock)
	require.NoError(t, <-done)
	msgs = c.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "ok", msgs[2].Content)
	require.False(t, c.Loading())
}
