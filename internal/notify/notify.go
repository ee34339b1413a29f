// Package notify defines the best-effort notification sinks used by the
// reservation engine. Transports may fail; failures are logged by callers
// and never affect reservation state.
package notify

import "pkt.systems/pslog"

// Notifier delivers reservation events to a user. Both methods are
// best-effort: an error means the message was not delivered, nothing more.
type Notifier interface {
	Chat(user, subject, body string) error
	Mail(from, user, subject, body string) error
}

// Noop discards every notification.
type Noop struct{}

func (Noop) Chat(string, string, string) error         { return nil }
func (Noop) Mail(string, string, string, string) error { return nil }

// Logger writes notifications to the operational log instead of delivering
// them, which is the default until a real transport is configured.
type Logger struct {
	Log pslog.Logger
}

// NewLogger builds a Logger sink on top of the given logger.
func NewLogger(logger pslog.Logger) Logger {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return Logger{Log: logger.With("sys", "notify")}
}

// Chat logs the chat notification.
func (l Logger) Chat(user, subject, body string) error {
	l.Log.Info("notify.chat", "user", user, "subject", subject, "body", body)
	return nil
}

// Mail logs the mail notification.
func (l Logger) Mail(from, user, subject, body string) error {
	l.Log.Info("notify.mail", "from", from, "user", user, "subject", subject, "body", body)
	return nil
}
