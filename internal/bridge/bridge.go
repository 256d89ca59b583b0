// Package bridge carries state between screens so a screen that already
// knows the session and its history does not ask the service again.
package bridge

import (
	"fmt"
	"slices"
	"time"

	"github.com/comigor/triagem-go/internal/emergency"
	"github.com/comigor/triagem-go/internal/triage"
)

// Route names a screen.
type Route string

const (
	RouteNone    Route = ""
	RouteHome    Route = "home"
	RouteChat    Route = "chat"
	RouteSummary Route = "summary"
)

// ChatPayload is handed to the chat screen.
type ChatPayload struct {
	SessionID        string
	PhoneNumber      string
	ExistingMessages []triage.Message
}

// SummaryPayload is handed to the summary screen. Messages keeps the
// transcript so the user can go back to the chat without a refetch.
type SummaryPayload struct {
	SessionID   string
	PhoneNumber string
	Summary     triage.RawSummary
	Messages    []triage.Message
}

// Navigation is a one-shot transition event. At most one of Chat and
// Summary is set, matching Route. A nil Chat on RouteChat means the chat
// screen starts without prior context.
type Navigation struct {
	Route   Route
	Chat    *ChatPayload
	Summary *SummaryPayload
}

// Stay keeps the current screen. It is the zero Navigation.
func Stay() Navigation {
	return Navigation{}
}

// Home navigates to the start screen.
func Home() Navigation {
	return Navigation{Route: RouteHome}
}

// ToChat navigates to the chat screen. p may be nil.
func ToChat(p *ChatPayload) Navigation {
	if p != nil {
		cp := *p
		cp.ExistingMessages = slices.Clone(p.ExistingMessages)
		p = &cp
	}
	return Navigation{Route: RouteChat, Chat: p}
}

// ToSummary navigates to the summary screen.
func ToSummary(p SummaryPayload) Navigation {
	p.Messages = slices.Clone(p.Messages)
	return Navigation{Route: RouteSummary, Summary: &p}
}

// BackToChat returns to the chat screen with the transcript already known.
func (p SummaryPayload) BackToChat() Navigation {
	return ToChat(&ChatPayload{
		SessionID:        p.SessionID,
		PhoneNumber:      p.PhoneNumber,
		ExistingMessages: p.Messages,
	})
}

// DisplayMessage is a message ready to render.
type DisplayMessage struct {
	ID          string
	Content     string
	IsUser      bool
	Timestamp   time.Time
	IsEmergency bool
}

// ToDisplay drops system messages and flags emergencies, keeping server
// order. IDs are ordinals over the visible messages, so appending to the
// history never changes an earlier ID.
func ToDisplay(messages []triage.Message) []DisplayMessage {
	out := make([]DisplayMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == triage.RoleSystem {
			continue
		}
		out = append(out, DisplayMessage{
			ID:          fmt.Sprintf("msg-%d", len(out)),
			Content:     m.Body,
			IsUser:      m.Role == triage.RoleUser,
			Timestamp:   m.Timestamp,
			IsEmergency: emergency.IsEmergency(m.Body),
		})
	}
	return out
}
