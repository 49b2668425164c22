package chit

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT EVENTS - Post-commit notification decoupling
// =============================================================================

// The ledger emits a PaymentEvent only after its transaction commits.
// Delivery is consumed asynchronously by a separate worker, so a slow
// or failing notification channel can never stall or roll back a
// financial write.

// EventKind distinguishes what happened to the subscription.
type EventKind string

const (
	EventRecorded EventKind = "payment_recorded"
	EventVoided   EventKind = "payment_voided"
	EventEdited   EventKind = "payment_edited"
	EventSettled  EventKind = "bulk_settled"
)

// PaymentEvent describes one committed ledger mutation.
type PaymentEvent struct {
	Kind           EventKind
	SubscriptionID string
	GroupID        string
	MemberID       string
	CollectionID   string
	Period         int
	Sequence       int
	Amount         decimal.Decimal
	At             time.Time
}

// Emitter receives events after commit. Emit must never block and must
// never return an error to the ledger.
type Emitter interface {
	Emit(ev PaymentEvent)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(PaymentEvent) {}

// ChannelEmitter buffers events on a channel for an out-of-process-
// style worker. A full buffer drops the event rather than blocking the
// ledger caller.
type ChannelEmitter struct {
	ch chan PaymentEvent
}

func NewChannelEmitter(buffer int) *ChannelEmitter {
	return &ChannelEmitter{ch: make(chan PaymentEvent, buffer)}
}

func (e *ChannelEmitter) Emit(ev PaymentEvent) {
	select {
	case e.ch <- ev:
	default:
		// Notification loss is acceptable; ledger correctness is not.
	}
}

// Events exposes the consumption side for a notification worker.
func (e *ChannelEmitter) Events() <-chan PaymentEvent { return e.ch }

// Close stops the stream. Only the producer side may call it.
func (e *ChannelEmitter) Close() { close(e.ch) }
