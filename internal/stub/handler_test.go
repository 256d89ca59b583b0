package stub

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/triagem-go/internal/bridge"
	"github.com/comigor/triagem-go/internal/gate"
	"github.com/comigor/triagem-go/internal/notify"
	"github.com/comigor/triagem-go/internal/screen"
	"github.com/comigor/triagem-go/internal/summary"
	"github.com/comigor/triagem-go/internal/triage"
)

func setupServer(t *testing.T) (*httptest.Server, *triage.Client) {
	t.Helper()
	srv := httptest.NewServer(NewRouter(NewService(openTestStore(t), Canned{})))
	t.Cleanup(srv.Close)
	return srv, triage.NewClient(srv.URL)
}

func TestHandler_BootstrapAndTurn(t *testing.T) {
	ctx := context.Background()
	_, c := setupServer(t)

	opening, err := c.SendMessage(ctx, "", "")
	require.NoError(t, err)
	require.Equal(t, Opening, opening.Message)
	require.NotEmpty(t, opening.SessionID)

	reply, err := c.SendMessage(ctx, "Estou com febre", opening.SessionID)
	require.NoError(t, err)
	require.Equal(t, opening.SessionID, reply.SessionID)
	require.Contains(t, reply.Message, "febre")

	msgs, err := c.Messages(ctx, opening.SessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, triage.RoleAssistant, msgs[0].Role)
	require.Equal(t, triage.RoleUser, msgs[1].Role)
	require.False(t, msgs[1].Timestamp.IsZero())
}

func TestHandler_UnknownSession(t *testing.T) {
	ctx := context.Background()
	_, c := setupServer(t)

	_, err := c.SendMessage(ctx, "oi", "missing")
	var te *triage.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusNotFound, te.StatusCode)

	_, err = c.Summary(ctx, "missing")
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusNotFound, te.StatusCode)
}

func TestHandler_BadBodies(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Post(srv.URL+"/chat/message", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/chat/", "application/json", bytes.NewBufferString(`{"numero_paciente":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_EmptyTriageDecodesToPlaceholders(t *testing.T) {
	ctx := context.Background()
	_, c := setupServer(t)

	id, err := c.CreateConversation(ctx, "11999998888")
	require.NoError(t, err)

	raw, err := c.Summary(ctx, id)
	require.NoError(t, err)
	d := summary.Assemble(raw)
	require.Equal(t, summary.Placeholder, d.MainComplaint)
	require.Empty(t, d.Symptoms)
	require.Equal(t, []string{summary.NoSymptoms}, d.SymptomLines())
}

// A new patient with no prior conversations looks up, starts a triage,
// hits an emergency, views the summary and comes back.
func TestHandler_FullFlow(t *testing.T) {
	ctx := context.Background()
	_, c := setupServer(t)

	g := gate.New(c, nil)
	require.NoError(t, g.SubmitPhone(ctx, "11999998888"))
	require.Equal(t, gate.StepConversationSelect, g.Step())
	require.Empty(t, g.Conversations())
	require.False(t, g.CanContinue())

	payload, err := g.ChooseNew(ctx)
	require.NoError(t, err)
	require.Equal(t, "11999998888", payload.PhoneNumber)
	require.Equal(t, gate.StepPhoneInput, g.Step())

	var notices []string
	chat := screen.EnterChat(ctx, c, recordTitles(&notices), &payload)
	require.Equal(t, payload.SessionID, chat.SessionID())
	require.Equal(t, screen.Greeting, chat.Messages()[0].Content)

	require.NoError(t, chat.Send(ctx, "Estou com dor de cabeça há 2 dias, uns 6/10"))
	require.Empty(t, notices)
	require.NoError(t, chat.Send(ctx, "Agora sinto dor no peito"))
	require.Equal(t, []string{"Situação de Emergência Detectada"}, notices)
	require.True(t, chat.Messages()[4].IsEmergency)
	require.True(t, chat.CanViewSummary())

	nav, err := chat.ViewSummary(ctx)
	require.NoError(t, err)
	require.Equal(t, bridge.RouteSummary, nav.Route)

	s, _ := screen.EnterSummary(nav.Summary, nil)
	d := s.Display()
	require.Equal(t, "Estou com dor de cabeça há 2 dias, uns 6/10", d.MainComplaint)
	require.Equal(t, []string{"dor de cabeça", "dor no peito"}, d.Symptoms)
	require.Equal(t, "há 2 dias", d.Duration)
	require.Equal(t, "6", d.Intensity)
	require.Equal(t, summary.Placeholder, d.History)

	// The conversation is now listed for the phone.
	g = gate.New(c, nil)
	require.NoError(t, g.SubmitPhone(ctx, "11999998888"))
	require.True(t, g.CanContinue())
	convs := g.Conversations()
	require.Len(t, convs, 1)
	require.Equal(t, payload.SessionID, convs[0].SessionID)

	resumed, err := g.ChooseExisting(ctx, convs[0].SessionID)
	require.NoError(t, err)
	require.Len(t, resumed.ExistingMessages, 4)
	require.Equal(t, EmergencyReply, resumed.ExistingMessages[3].Body)
}

func recordTitles(titles *[]string) notify.Notifier {
	return notify.Func(func(n notify.Notice) { *titles = append(*titles, n.Title) })
}
