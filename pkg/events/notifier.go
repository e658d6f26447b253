package events

import (
	"context"
	"log/slog"

	"github.com/Mindburn-Labs/pact/pkg/identity"
)

// LogNotifier writes notifications to the structured log. Used in
// deployments without an outbound messaging channel configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier logging at Info level.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, recipient identity.Phone, kind Kind, payload map[string]any) error {
	n.logger.Info("notification", "recipient", recipient.String(), "kind", string(kind), "payload", payload)
	return nil
}
