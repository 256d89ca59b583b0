package stub

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Opening is the reply to the bootstrap turn (an empty message).
const Opening = "Olá! Sou seu assistente de triagem médica. Vou fazer algumas perguntas para entender melhor sua situação. Como posso te ajudar hoje?"

// EmergencyReply is sent, without consulting the Responder, when the
// patient describes an alarming situation.
const EmergencyReply = "⚠️ ATENÇÃO: Pelos sintomas descritos, recomendo que procure atendimento médico de emergência IMEDIATAMENTE. Dirija-se ao pronto-socorro mais próximo ou chame o SAMU (192)."

var alarming = []string{
	"emergência", "socorro", "dor intensa", "sangramento",
	"desmaio", "convulsão", "parada cardíaca", "dificuldade para respirar",
	"intoxicação", "fratura exposta", "queimadura grave",
	"dor no peito", "infarto", "falta de ar",
	"perda de consciência", "hemorragia",
}

// Alarming reports whether a patient message must short-circuit triage.
func Alarming(message string) bool {
	lower := strings.ToLower(message)
	for _, k := range alarming {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Responder produces the assistant side of a conversation.
type Responder interface {
	// Reply answers message given the prior history.
	Reply(ctx context.Context, history []Record, message string) (string, error)
	// Collect extracts the triage record from a whole conversation.
	Collect(ctx context.Context, history []Record) (Triage, error)
}

// Canned answers from a fixed script and extracts the triage record
// with keyword rules. It needs no network.
type Canned struct{}

func (Canned) Reply(_ context.Context, _ []Record, message string) (string, error) {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "dor de cabeça"):
		return "Entendo que você está com dor de cabeça. Para me ajudar a avaliar melhor sua situação, pode me dizer: há quanto tempo você está sentindo essa dor? A dor é constante ou vai e vem?", nil
	case strings.Contains(lower, "febre"):
		return "Você mencionou febre. Isso pode indicar uma infecção. Você mediu sua temperatura? Tem outros sintomas como dor de garganta, tosse ou mal-estar?", nil
	default:
		return "Obrigado por compartilhar essa informação. Para fazer uma avaliação mais precisa, preciso entender melhor seus sintomas. Pode descrever o que está sentindo com mais detalhes?", nil
	}
}

var (
	knownSymptoms = []string{
		"dor de cabeça", "febre", "tosse", "dor de garganta", "náusea",
		"vômito", "tontura", "diarreia", "mal-estar", "dor abdominal",
		"dor no peito", "falta de ar", "cansaço",
	}
	durationRe  = regexp.MustCompile(`(?i)\b(?:há\s+)?(\d+|um|uma|dois|duas|três)\s+(minutos?|horas?|dias?|semanas?|meses|mês)`)
	intensityRe = regexp.MustCompile(`\b(10|[0-9])\s*(?:/\s*10|de\s+10)\b`)
	frequencyRe = regexp.MustCompile(`(?i)(constante|o tempo todo|vai e vem|às vezes|todos os dias|toda noite|toda manhã)`)
	measuresRe  = regexp.MustCompile(`(?i)\b(?:tomei|usei|apliquei)\s+[^.,;!?]+`)
	historyRe   = regexp.MustCompile(`(?i)\b(?:tenho|sou)\s+(hipertens[ãa]o|hipertens[oa]|diabetes|diabétic[oa]|asma|asmátic[oa])\b`)
)

// Collect fills what the patient's own words reveal; the first patient
// message is the main complaint.
func (Canned) Collect(_ context.Context, history []Record) (Triage, error) {
	var t Triage
	seen := map[string]bool{}
	for _, r := range history {
		if r.Cargo != cargoUser || strings.TrimSpace(r.Body) == "" {
			continue
		}
		body := strings.TrimSpace(r.Body)
		lower := strings.ToLower(body)

		if t.MainComplaint == nil {
			t.MainComplaint = &body
		}
		for _, s := range knownSymptoms {
			if strings.Contains(lower, s) && !seen[s] {
				seen[s] = true
				t.Symptoms = append(t.Symptoms, s)
			}
		}
		if m := durationRe.FindString(body); m != "" {
			t.Duration = ptr(m)
		}
		if m := frequencyRe.FindString(body); m != "" {
			t.Frequency = ptr(strings.ToLower(m))
		}
		if m := intensityRe.FindStringSubmatch(body); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				t.Intensity = &n
			}
		}
		if m := historyRe.FindString(body); m != "" {
			t.History = ptr(m)
		}
		if m := measuresRe.FindString(body); m != "" {
			t.MeasuresTaken = ptr(strings.TrimSpace(m))
		}
	}
	return t, nil
}

func ptr(s string) *string { return &s }
