// Package notify describes the transient notices screens raise. How they
// are shown is up to the front end.
package notify

// Notice is a short user-facing message. Destructive notices signal an
// error or an emergency.
type Notice struct {
	Title       string
	Description string
	Destructive bool
}

// Notifier presents notices.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a function to Notifier.
type Func func(n Notice)

func (f Func) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = Func(func(Notice) {})

// Error builds the destructive notice used for failed actions.
func Error(description string) Notice {
	return Notice{Title: "Erro", Description: description, Destructive: true}
}
