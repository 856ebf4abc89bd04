package notify

import (
	"context"
	"log/slog"

	"github.com/kikoba/kikoba/pkg/notify"
)

// LogNotifier writes notifications to the log. Used when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier logging at info level on logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "log-notifier")}
}

// Notify implements notify.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, msg notify.Message) error {
	n.logger.InfoContext(ctx, msg.Title,
		"kind", msg.Kind,
		"recipients", msg.Recipients,
		"body", msg.Body,
		"data", msg.Data)
	return nil
}

var _ notify.Notifier = (*LogNotifier)(nil)
