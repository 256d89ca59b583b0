package screen

import (
	"github.com/comigor/triagem-go/internal/bridge"
	"github.com/comigor/triagem-go/internal/notify"
	"github.com/comigor/triagem-go/internal/summary"
)

// Summary is the triage summary screen.
type Summary struct {
	payload bridge.SummaryPayload
	display summary.Display
}

// EnterSummary builds the summary screen. A nil payload cannot be shown;
// the user is notified and sent home.
func EnterSummary(payload *bridge.SummaryPayload, notifier notify.Notifier) (*Summary, bridge.Navigation) {
	if payload == nil {
		if notifier == nil {
			notifier = notify.Discard
		}
		notifier.Notify(notify.Notice{
			Title:       "Resumo não encontrado",
			Description: "Não foi possível encontrar o resumo da triagem solicitada.",
			Destructive: true,
		})
		return nil, bridge.Home()
	}
	return &Summary{
		payload: *payload,
		display: summary.Assemble(payload.Summary),
	}, bridge.Stay()
}

func (s *Summary) SessionID() string { return s.payload.SessionID }

func (s *Summary) Display() summary.Display { return s.display }

// BackToChat returns to the conversation without refetching it.
func (s *Summary) BackToChat() bridge.Navigation {
	return s.payload.BackToChat()
}

// NewTriage starts over with no prior context.
func (s *Summary) NewTriage() bridge.Navigation {
	return bridge.ToChat(nil)
}
