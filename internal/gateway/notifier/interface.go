package notifier

// TextNotifier is the only thing callers need to push a message out.
type TextNotifier interface {
	SendText(text string) error
}

// Nop drops every message. It stands in when no channel is configured.
type Nop struct{}

func (Nop) SendText(string) error { return nil }
