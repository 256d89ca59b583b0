package triage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// roleFromWire maps the service's "cargo" values onto Role. The service
// calls the assistant "ai".
func roleFromWire(cargo string) Role {
	switch strings.ToLower(cargo) {
	case "ai", "assistant":
		return RoleAssistant
	case "user":
		return RoleUser
	case "system":
		return RoleSystem
	default:
		return Role(cargo)
	}
}

func (r Role) wire() string {
	if r == RoleAssistant {
		return "ai"
	}
	return string(r)
}

// Timestamp accepts the service's timestamps with or without a zone.
// Zoneless values are taken as UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := cast.ToTimeInDefaultLocationE(raw, time.UTC)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", string(data), err)
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Message is one entry of a session's history, in server order.
type Message struct {
	Role      Role
	Body      string
	Timestamp time.Time
}

type wireMessage struct {
	Cargo     string    `json:"cargo"`
	Body      string    `json:"body"`
	Timestamp Timestamp `json:"timestamp"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Role = roleFromWire(w.Cargo)
	m.Body = w.Body
	m.Timestamp = w.Timestamp.Time
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		Cargo:     m.Role.wire(),
		Body:      m.Body,
		Timestamp: Timestamp{m.Timestamp},
	})
}

// Conversation is a listing row for a phone number's prior sessions.
type Conversation struct {
	SessionID   string    `json:"session_id"`
	Timestamp   Timestamp `json:"timestamp"`
	LastMessage string    `json:"last_message"`
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type messageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type createRequest struct {
	PhoneNumber string `json:"numero_paciente"`
}

type createResponse struct {
	SessionID string `json:"session_id"`
}

// Text is a nullable scalar from the summary record. Numbers and booleans
// are kept as their string form.
type Text struct {
	Value string
	Valid bool
}

// NewText returns a present Text.
func NewText(s string) Text {
	return Text{Value: s, Valid: true}
}

func (t *Text) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, ok, err := scalar(raw)
	if err != nil {
		return err
	}
	*t = Text{Value: v, Valid: ok}
	return nil
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

// Symptoms holds the summary's symptoms field, which the service sends
// either as a single string or as a list. List items are kept in place;
// a null item becomes "".
type Symptoms struct {
	List   []string
	Single Text
	IsList bool
}

func (s *Symptoms) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if items, ok := raw.([]any); ok {
		list := make([]string, 0, len(items))
		for _, item := range items {
			v, _, err := scalar(item)
			if err != nil {
				return fmt.Errorf("symptoms: %w", err)
			}
			list = append(list, v)
		}
		*s = Symptoms{List: list, IsList: true}
		return nil
	}
	v, ok, err := scalar(raw)
	if err != nil {
		return fmt.Errorf("symptoms: %w", err)
	}
	*s = Symptoms{Single: Text{Value: v, Valid: ok}}
	return nil
}

func (s Symptoms) MarshalJSON() ([]byte, error) {
	if s.IsList {
		if s.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(s.List)
	}
	return json.Marshal(s.Single)
}

// RawSummary is the triage record as the service returns it.
type RawSummary struct {
	MainComplaint Text     `json:"main_complaint"`
	Symptoms      Symptoms `json:"symptoms"`
	Duration      Text     `json:"duration"`
	Frequency     Text     `json:"frequency"`
	Intensity     Text     `json:"intensity"`
	History       Text     `json:"history"`
	MeasuresTaken Text     `json:"measures_taken"`
}

func scalar(raw any) (string, bool, error) {
	switch raw.(type) {
	case nil:
		return "", false, nil
	case map[string]any, []any:
		return "", false, fmt.Errorf("unexpected structured value %v", raw)
	}
	v, err := cast.ToStringE(raw)
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
