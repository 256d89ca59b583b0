package stub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/triagem-go/internal/config"
	"github.com/comigor/triagem-go/internal/logger"
	"github.com/comigor/triagem-go/internal/triage"
)

// DefaultPrompt instructs the model when no system prompt is configured.
const DefaultPrompt = "Você é um assistente virtual de triagem médica empático e acolhedor. " +
	"Converse de forma amigável e profissional. " +
	"Seu objetivo é coletar informações de triagem do paciente passo a passo, " +
	"perguntando sobre: queixa principal, descrição detalhada dos sintomas, duração e frequência, intensidade da dor (0 a 10), histórico médico relevante e medidas já tomadas. " +
	"Faça uma pergunta de cada vez, guiando o paciente. " +
	"NÃO ofereça diagnósticos ou tratamentos. " +
	"Mantenha sempre um tom empático e encorajador."

const collectPrompt = "Extraia da conversa abaixo os dados de triagem e responda somente com um objeto JSON com as chaves " +
	`"main_complaint", "symptoms" (lista de strings), "duration", "frequency", "intensity" (inteiro de 0 a 10), "history" e "measures_taken". ` +
	"Use null para o que o paciente não informou.\n\n"

// LLMClient is the subset of openai.Client the relay uses; it is easy to mock in tests.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewLLMClient creates an OpenAI-compatible client.
func NewLLMClient(cfg config.LLMConfig) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(c)
}

// Relay answers with an OpenAI-compatible model.
type Relay struct {
	client LLMClient
	model  string
	prompt string
}

// NewRelay builds a Relay for the configured model.
func NewRelay(client LLMClient, cfg config.LLMConfig) *Relay {
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &Relay{client: client, model: cfg.Model, prompt: prompt}
}

func (r *Relay) Reply(ctx context.Context, history []Record, message string) (string, error) {
	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: r.prompt}}
	for _, h := range history {
		switch h.Cargo {
		case cargoUser:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: h.Body})
		case cargoAI:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: h.Body})
		}
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	content, err := r.complete(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// Collect asks the model for the triage record. An answer that is not a
// JSON object yields an empty record.
func (r *Relay) Collect(ctx context.Context, history []Record) (Triage, error) {
	var transcript strings.Builder
	for _, h := range history {
		switch h.Cargo {
		case cargoUser:
			fmt.Fprintf(&transcript, "Paciente: %s\n", h.Body)
		case cargoAI:
			fmt.Fprintf(&transcript, "Assistente: %s\n", h.Body)
		}
	}

	content, err := r.complete(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: collectPrompt + transcript.String() + "\nJSON:"},
		},
		Temperature: 0.3,
		MaxTokens:   256,
	})
	if err != nil {
		return Triage{}, err
	}

	return decodeTriage(content), nil
}

// decodeTriage reads the model's record field by field with the lenient
// client shapes, so a number sent as a string or a single symptom sent
// as a string does not cost the other fields. Unreadable fields stay nil.
func decodeTriage(content string) Triage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(extractObject(content)), &fields); err != nil {
		logger.L.Warn("model returned an unreadable triage record", "error", err, "content", content)
		return Triage{}
	}

	text := func(key string) *string {
		var v triage.Text
		raw, ok := fields[key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			logger.L.Warn("skipping unreadable triage field", "field", key, "error", err)
			return nil
		}
		if !v.Valid || strings.TrimSpace(v.Value) == "" {
			return nil
		}
		return ptr(strings.TrimSpace(v.Value))
	}

	t := Triage{
		MainComplaint: text("main_complaint"),
		Duration:      text("duration"),
		Frequency:     text("frequency"),
		History:       text("history"),
		MeasuresTaken: text("measures_taken"),
	}
	if v := text("intensity"); v != nil {
		if f, err := strconv.ParseFloat(*v, 64); err == nil {
			n := int(f)
			t.Intensity = &n
		} else {
			logger.L.Warn("skipping non-numeric intensity", "value", *v)
		}
	}
	if raw, ok := fields["symptoms"]; ok {
		var sym triage.Symptoms
		if err := json.Unmarshal(raw, &sym); err != nil {
			logger.L.Warn("skipping unreadable triage field", "field", "symptoms", "error", err)
		} else if sym.IsList {
			for _, item := range sym.List {
				if item = strings.TrimSpace(item); item != "" {
					t.Symptoms = append(t.Symptoms, item)
				}
			}
		} else if sym.Single.Valid && strings.TrimSpace(sym.Single.Value) != "" {
			t.Symptoms = []string{strings.TrimSpace(sym.Single.Value)}
		}
	}
	return t
}

func (r *Relay) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		logger.L.Error("LLM call failed", "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	logger.L.Debug("LLM response received", "usage", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}

// extractObject strips code fences and anything around the outermost
// braces.
func extractObject(s string) string {
	if i := strings.Index(s, "{"); i >= 0 {
		s = s[i:]
	}
	if i := strings.LastIndex(s, "}"); i >= 0 {
		s = s[:i+1]
	}
	return strings.TrimSpace(s)
}
