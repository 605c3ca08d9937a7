package notifier

import (
	"context"

	"stacker/internal/logger"
)

// LogNotifier writes notifications to the process log. Used when no chat channel is configured.
type LogNotifier struct{}

var _ Notifier = LogNotifier{}

func (LogNotifier) SendMessage(_ context.Context, destination, text string, severity Severity) error {
	l := logger.With("channel", "log", "severity", severity.String())
	if destination != "" {
		l = l.With("destination", destination)
	}
	switch severity {
	case Error:
		l.Error(text)
	case Warning:
		l.Warn(text)
	default:
		l.Info(text)
	}
	return nil
}
