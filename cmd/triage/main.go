// Command triage is a terminal front end for the triage service: phone
// lookup, chat and summary screens driven by navigation events.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/comigor/triagem-go/internal/bridge"
	"github.com/comigor/triagem-go/internal/config"
	"github.com/comigor/triagem-go/internal/gate"
	"github.com/comigor/triagem-go/internal/logger"
	"github.com/comigor/triagem-go/internal/notify"
	"github.com/comigor/triagem-go/internal/screen"
	"github.com/comigor/triagem-go/internal/triage"
)

type terminal struct {
	in      *bufio.Scanner
	out     io.Writer
	channel *triage.Client
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.L.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	t := &terminal{
		in:      bufio.NewScanner(os.Stdin),
		out:     os.Stdout,
		channel: triage.NewClient(cfg.API.BaseURL),
	}
	t.run(ctx)
}

func (t *terminal) run(ctx context.Context) {
	nav := bridge.Home()
	for ctx.Err() == nil {
		var quit bool
		switch nav.Route {
		case bridge.RouteHome:
			nav, quit = t.home(ctx)
		case bridge.RouteChat:
			nav, quit = t.chat(ctx, nav.Chat)
		case bridge.RouteSummary:
			nav, quit = t.summary(nav.Summary)
		default:
			nav = bridge.Home()
		}
		if quit {
			return
		}
	}
}

func (t *terminal) Notify(n notify.Notice) {
	mark := "i"
	if n.Destructive {
		mark = "!"
	}
	fmt.Fprintf(t.out, "[%s] %s: %s\n", mark, n.Title, n.Description)
}

// prompt reads one line; ok is false at end of input.
func (t *terminal) prompt(label string) (line string, ok bool) {
	fmt.Fprint(t.out, label)
	if !t.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(t.in.Text()), true
}

func (t *terminal) home(ctx context.Context) (bridge.Navigation, bool) {
	fmt.Fprintln(t.out, "\n== Triagem médica ==")
	g := gate.New(t.channel, t)
	defer g.Close()

	for {
		switch g.Step() {
		case gate.StepPhoneInput:
			line, ok := t.prompt("Telefone com DDD (\"anonimo\" para seguir sem telefone, \"sair\" para encerrar): ")
			if !ok || line == "sair" {
				return bridge.Home(), true
			}
			if line == "anonimo" {
				return bridge.ToChat(nil), false
			}
			if err := g.SubmitPhone(ctx, line); err == nil {
				fmt.Fprintf(t.out, "Telefone %s\n", gate.FormatPhone(g.Phone()))
			}

		case gate.StepConversationSelect:
			convs := g.Conversations()
			if g.CanContinue() {
				fmt.Fprintln(t.out, "Conversas anteriores:")
				for i, c := range convs {
					fmt.Fprintf(t.out, "  %d) %s  %s\n", i+1, c.Timestamp.Format("02/01/2006 15:04"), c.LastMessage)
				}
			} else {
				fmt.Fprintln(t.out, "Nenhuma conversa anterior encontrada.")
			}
			line, ok := t.prompt(selectPrompt(g.CanContinue()))
			if !ok {
				return bridge.Home(), true
			}
			switch line {
			case "v":
				_ = g.Back()
			case "n":
				if payload, err := g.ChooseNew(ctx); err == nil {
					return bridge.ToChat(&payload), false
				}
			default:
				if !g.CanContinue() {
					fmt.Fprintln(t.out, "Opção inválida.")
					continue
				}
				i, err := strconv.Atoi(line)
				if err != nil || i < 1 || i > len(convs) {
					fmt.Fprintln(t.out, "Opção inválida.")
					continue
				}
				if payload, err := g.ChooseExisting(ctx, convs[i-1].SessionID); err == nil {
					return bridge.ToChat(&payload), false
				}
			}
		}
	}
}

// selectPrompt offers resuming only when there is something to resume.
func selectPrompt(canContinue bool) string {
	if canContinue {
		return "Número da conversa, \"n\" para nova, \"v\" para voltar: "
	}
	return "\"n\" para iniciar uma nova conversa, \"v\" para voltar: "
}

func (t *terminal) chat(ctx context.Context, payload *bridge.ChatPayload) (bridge.Navigation, bool) {
	c := screen.EnterChat(ctx, t.channel, t, payload)
	fmt.Fprintln(t.out, "\n== Conversa == (\"/resumo\" para ver o resumo, \"/inicio\" para voltar)")

	shown := 0
	for {
		msgs := c.Messages()
		for _, m := range msgs[shown:] {
			who := "Assistente"
			if m.IsUser {
				who = "Você"
			}
			if m.IsEmergency {
				who += " [EMERGÊNCIA]"
			}
			fmt.Fprintf(t.out, "%s: %s\n", who, m.Content)
		}
		shown = len(msgs)

		line, ok := t.prompt("> ")
		if !ok {
			return bridge.Home(), true
		}
		switch line {
		case "":
			continue
		case "/inicio":
			return bridge.Home(), false
		case "/resumo":
			if !c.CanViewSummary() {
				fmt.Fprintln(t.out, "Converse um pouco mais antes de ver o resumo.")
				continue
			}
			nav, err := c.ViewSummary(ctx)
			if err == nil || nav.Route != bridge.RouteNone {
				return nav, false
			}
		default:
			// failures were already reported through Notify
			_ = c.Send(ctx, line)
		}
	}
}

func (t *terminal) summary(payload *bridge.SummaryPayload) (bridge.Navigation, bool) {
	s, nav := screen.EnterSummary(payload, t)
	if s == nil {
		return nav, false
	}

	fmt.Fprintln(t.out, "\n== Resumo da triagem ==")
	d := s.Display()
	for _, f := range d.Fields() {
		fmt.Fprintf(t.out, "%s: %s\n", f.Label, f.Value)
	}
	fmt.Fprintln(t.out, "Sintomas:")
	for _, line := range d.SymptomLines() {
		fmt.Fprintf(t.out, "  - %s\n", line)
	}

	for {
		line, ok := t.prompt("\"c\" volta à conversa, \"n\" inicia nova triagem, \"h\" volta ao início: ")
		if !ok {
			return bridge.Home(), true
		}
		switch line {
		case "c":
			return s.BackToChat(), false
		case "n":
			return s.NewTriage(), false
		case "h":
			return bridge.Home(), false
		}
	}
}
