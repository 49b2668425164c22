package api

import (
	"context"
	"log"

	"github.com/AppfinityLabs/chitwise/chit"
)

// =============================================================================
// NOTIFICATION WORKER - Consumes post-commit payment events
// =============================================================================

// NotificationWorker drains the ledger's event stream and dispatches
// subscriber notifications. It runs outside every ledger transaction:
// delivery failures are logged and discarded, never surfaced to the
// caller of a ledger operation.
type NotificationWorker struct {
	events <-chan chit.PaymentEvent
	logger *log.Logger
}

func NewNotificationWorker(events <-chan chit.PaymentEvent, logger *log.Logger) *NotificationWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &NotificationWorker{events: events, logger: logger}
}

// Run consumes events until the context is canceled or the stream
// closes. Intended to run in its own goroutine.
func (w *NotificationWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.events:
			if !ok {
				return
			}
			w.deliver(ev)
		}
	}
}

// deliver would hand the event to SMS/push transport. The transport
// itself is a deployment concern; the engine only guarantees the event
// is emitted after commit.
func (w *NotificationWorker) deliver(ev chit.PaymentEvent) {
	switch ev.Kind {
	case chit.EventRecorded:
		w.logger.Printf("notify member=%s: payment of %s received for period %d (seq %d)",
			ev.MemberID, ev.Amount.StringFixed(2), ev.Period, ev.Sequence)
	case chit.EventVoided:
		w.logger.Printf("notify member=%s: payment of %s for period %d was reversed",
			ev.MemberID, ev.Amount.StringFixed(2), ev.Period)
	case chit.EventEdited:
		w.logger.Printf("notify member=%s: payment for period %d corrected to %s",
			ev.MemberID, ev.Period, ev.Amount.StringFixed(2))
	case chit.EventSettled:
		w.logger.Printf("notify subscription=%s: bulk settlement of %s recorded",
			ev.SubscriptionID, ev.Amount.StringFixed(2))
	}
}
