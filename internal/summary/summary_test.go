package summary

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/triagem-go/internal/triage"
)

func TestAssemble_SubstitutesPlaceholders(t *testing.T) {
	var raw triage.RawSummary
	require.NoError(t, json.Unmarshal([]byte(`{
		"main_complaint": null,
		"symptoms": "tosse",
		"duration": "2 dias",
		"frequency": "",
		"intensity": null,
		"history": "asma",
		"measures_taken": null
	}`), &raw))

	got := Assemble(raw)
	require.Equal(t, Display{
		MainComplaint: Placeholder,
		Symptoms:      []string{"tosse"},
		Duration:      "2 dias",
		Frequency:     Placeholder,
		Intensity:     Placeholder,
		History:       "asma",
		MeasuresTaken: Placeholder,
	}, got)
}

func TestAssemble_EmptyRecord(t *testing.T) {
	got := Assemble(triage.RawSummary{})
	require.NotNil(t, got.Symptoms)
	require.Empty(t, got.Symptoms)
	require.Equal(t, []string{NoSymptoms}, got.SymptomLines())
	for _, f := range got.Fields() {
		require.Equal(t, Placeholder, f.Value, f.Label)
	}
}

func TestAssemble_SymptomListKept(t *testing.T) {
	raw := triage.RawSummary{Symptoms: triage.Symptoms{List: []string{"febre", "tosse"}, IsList: true}}
	got := Assemble(raw)
	require.Equal(t, []string{"febre", "tosse"}, got.Symptoms)
	require.Equal(t, got.Symptoms, got.SymptomLines())
}

func TestAssemble_NullSymptomItemKeepsItsPlace(t *testing.T) {
	var raw triage.RawSummary
	require.NoError(t, json.Unmarshal([]byte(`{"symptoms":["febre", null, " ", "tosse"]}`), &raw))

	got := Assemble(raw)
	require.Equal(t, []string{"febre", Placeholder, Placeholder, "tosse"}, got.Symptoms)
}

func TestAssemble_BlankScalarSymptomIsEmpty(t *testing.T) {
	raw := triage.RawSummary{Symptoms: triage.Symptoms{Single: triage.NewText("  ")}}
	require.Empty(t, Assemble(raw).Symptoms)
}

func TestAssemble_DoesNotAliasInput(t *testing.T) {
	list := []string{"febre"}
	got := Assemble(triage.RawSummary{Symptoms: triage.Symptoms{List: list, IsList: true}})
	got.Symptoms[0] = "changed"
	require.Equal(t, "febre", list[0])
}
