package notifier

import (
	"context"
	"strings"
)

// Severity grades a notification; channels may render it as an icon.
type Severity int

const (
	Information Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "information"
	}
}

func (s Severity) Icon() string {
	switch s {
	case Warning:
		return "⚠️"
	case Error:
		return "❌"
	default:
		return "ℹ️"
	}
}

// Notifier delivers one message to an opaque destination (chat id, device token).
// An empty destination means the channel's default.
type Notifier interface {
	SendMessage(ctx context.Context, destination, text string, severity Severity) error
}

// withIcon prefixes text with the severity icon unless it already starts with one.
func withIcon(text string, severity Severity) string {
	icon := severity.Icon()
	if strings.HasPrefix(strings.TrimSpace(text), icon) {
		return text
	}
	return icon + " " + text
}
