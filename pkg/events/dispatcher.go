package events

import (
	"context"
	"log/slog"
	"time"
)

// Dispatcher drains the outbox and hands events to the Notifier. Delivery
// is best-effort: a failed notification is logged and marked done, not
// retried indefinitely.
type Dispatcher struct {
	outbox   OutboxStore
	notifier Notifier
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher polling the outbox at the given
// interval.
func NewDispatcher(outbox OutboxStore, notifier Notifier, interval time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Dispatcher{
		outbox:   outbox,
		notifier: notifier,
		interval: interval,
		batch:    64,
		logger:   logger,
	}
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers all currently pending events. Exposed separately so tests
// and shutdown paths can flush synchronously.
func (d *Dispatcher) Drain(ctx context.Context) {
	for {
		pending, err := d.outbox.Pending(ctx, d.batch)
		if err != nil {
			d.logger.Error("failed to read outbox", "error", err)
			return
		}
		if len(pending) == 0 {
			return
		}
		for _, ev := range pending {
			if err := d.notifier.Notify(ctx, ev.Recipient, ev.Kind, ev.Payload); err != nil {
				d.logger.Warn("notification delivery failed",
					"event_id", ev.ID, "kind", string(ev.Kind), "recipient", ev.Recipient.String(), "error", err)
			}
			if err := d.outbox.MarkDone(ctx, ev.ID); err != nil {
				d.logger.Error("failed to mark event done", "event_id", ev.ID, "error", err)
				return
			}
		}
	}
}
