package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names the webhook events this service understands.
type EventKind string

const (
	KindSale                  EventKind = "sale"
	KindSubscriptionCancelled EventKind = "subscription_cancelled"
	KindSubscriptionFailed    EventKind = "subscription_failed"
	KindUnknown               EventKind = "unknown"
)

// Event is one decoded webhook delivery. The set of implementations is
// closed: SaleEvent, SubscriptionCancelledEvent, SubscriptionFailedEvent
// and UnknownEvent.
type Event interface {
	Kind() EventKind
	// DedupKey identifies the delivery for idempotency. Empty means the
	// event carries no stable id.
	DedupKey() string
	isEvent()
}

type SaleEvent struct {
	UserID         string
	SaleID         string
	ProductID      string
	SubscriptionID string
	Price          decimal.Decimal
	// Timestamp is zero when the provider omitted sale_timestamp.
	Timestamp time.Time
}

func (SaleEvent) Kind() EventKind { return KindSale }
func (SaleEvent) isEvent()        {}

func (e SaleEvent) DedupKey() string {
	return dedupKey(KindSale, e.SaleID)
}

// SubscriptionEnd carries the fields shared by cancellation and failure.
type SubscriptionEnd struct {
	UserID         string
	SubscriptionID string
	ProductID      string
	// CancellationDate is zero when the provider omitted it.
	CancellationDate time.Time
}

// endKey scopes the dedup key to one subscription end. A subscription can fail or
// be cancelled more than once, so the key needs the cancellation date too.
func (e SubscriptionEnd) endKey(kind EventKind) string {
	if e.SubscriptionID == "" || e.CancellationDate.IsZero() {
		return ""
	}
	return dedupKey(kind, e.SubscriptionID+":"+e.CancellationDate.UTC().Format(time.RFC3339Nano))
}

type SubscriptionCancelledEvent struct {
	SubscriptionEnd
}

func (SubscriptionCancelledEvent) Kind() EventKind { return KindSubscriptionCancelled }
func (SubscriptionCancelledEvent) isEvent()        {}

func (e SubscriptionCancelledEvent) DedupKey() string {
	return e.endKey(KindSubscriptionCancelled)
}

type SubscriptionFailedEvent struct {
	SubscriptionEnd
}

func (SubscriptionFailedEvent) Kind() EventKind { return KindSubscriptionFailed }
func (SubscriptionFailedEvent) isEvent()        {}

func (e SubscriptionFailedEvent) DedupKey() string {
	return e.endKey(KindSubscriptionFailed)
}

// UnknownEvent is any event type outside the closed set. It is acknowledged
// and never applied.
type UnknownEvent struct {
	Type string
}

func (UnknownEvent) Kind() EventKind { return KindUnknown }
func (UnknownEvent) DedupKey() string { return "" }
func (UnknownEvent) isEvent()         {}

func dedupKey(kind EventKind, id string) string {
	if id == "" {
		return ""
	}
	return string(kind) + ":" + id
}
