// Package summary turns the service's triage record into a display form
// with no missing fields.
package summary

import (
	"strings"

	"github.com/comigor/triagem-go/internal/triage"
)

const (
	// Placeholder replaces any scalar the service left empty.
	Placeholder = "Não informado"
	// NoSymptoms is shown instead of an empty symptom list.
	NoSymptoms = "Nenhum sintoma especificado"
)

// Display is the summary as shown to the user. Symptoms is never nil.
type Display struct {
	MainComplaint string
	Symptoms      []string
	Duration      string
	Frequency     string
	Intensity     string
	History       string
	MeasuresTaken string
}

// Field is a labelled line of the summary screen.
type Field struct {
	Label string
	Value string
}

// Assemble normalizes raw. It never fails.
func Assemble(raw triage.RawSummary) Display {
	return Display{
		MainComplaint: text(raw.MainComplaint),
		Symptoms:      symptoms(raw.Symptoms),
		Duration:      text(raw.Duration),
		Frequency:     text(raw.Frequency),
		Intensity:     text(raw.Intensity),
		History:       text(raw.History),
		MeasuresTaken: text(raw.MeasuresTaken),
	}
}

// SymptomLines returns the symptom list, or the single NoSymptoms line.
func (d Display) SymptomLines() []string {
	if len(d.Symptoms) == 0 {
		return []string{NoSymptoms}
	}
	return d.Symptoms
}

// Fields lists the scalar fields in screen order.
func (d Display) Fields() []Field {
	return []Field{
		{Label: "Queixa principal", Value: d.MainComplaint},
		{Label: "Duração", Value: d.Duration},
		{Label: "Frequência", Value: d.Frequency},
		{Label: "Intensidade", Value: d.Intensity},
		{Label: "Histórico", Value: d.History},
		{Label: "Medidas tomadas", Value: d.MeasuresTaken},
	}
}

func text(t triage.Text) string {
	if !t.Valid || strings.TrimSpace(t.Value) == "" {
		return Placeholder
	}
	return t.Value
}

func symptoms(s triage.Symptoms) []string {
	if s.IsList {
		out := make([]string, len(s.List))
		for i, item := range s.List {
			if strings.TrimSpace(item) == "" {
				item = Placeholder
			}
			out[i] = item
		}
		return out
	}
	if s.Single.Valid && strings.TrimSpace(s.Single.Value) != "" {
		return []string{s.Single.Value}
	}
	return []string{}
}
