package events

import "context"

// DealStream is the pubsub channel all deal lifecycle events go to.
const DealStream = "events:deal"

// Event types
const (
	EventDealStatusChanged = "deal_status_changed"
	EventPaymentReceived   = "payment_received"
	EventEscrowUnderfunded = "escrow_underfunded"
	EventDisputeOpened     = "dispute_opened"
	EventDisputeResolved   = "dispute_resolved"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
