package events

import (
	"time"

	"github.com/spec-kit/dispute-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDisputeCreated          EventType = "dispute_created"
	EventDisputeStatusChanged    EventType = "dispute_status_changed"
	EventDisputeUpdated          EventType = "dispute_updated"
	EventDisputeResolved         EventType = "dispute_resolved"
	EventReturnShipmentRequested EventType = "return_shipment_requested"
)

// AllEventTypes lists every event the service emits.
var AllEventTypes = []EventType{
	EventDisputeCreated,
	EventDisputeStatusChanged,
	EventDisputeUpdated,
	EventDisputeResolved,
	EventReturnShipmentRequested,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type   domain.SubjectType `json:"type"`
	UserID string             `json:"user_id,omitempty"`
}

// Event represents a domain event emitted after a transition commits.
type Event struct {
	ID         string                `json:"id"`
	Type       EventType             `json:"type"`
	DisputeID  string                `json:"dispute_id"`
	Status     domain.DisputeStatus  `json:"status"`
	Version    int64                 `json:"version"`
	Transition domain.TransitionName `json:"transition,omitempty"`
	Recipients []string              `json:"recipients,omitempty"`
	Actor      Actor                 `json:"actor"`
	Timestamp  time.Time             `json:"timestamp"`
	Payload    interface{}           `json:"payload,omitempty"`
}

// DisputeCreatedPayload payload.
type DisputeCreatedPayload struct {
	DisputeCode  string              `json:"dispute_code"`
	Type         domain.DisputeType  `json:"type"`
	ShipmentType domain.ShipmentType `json:"shipment_type"`
	SubOrderID   string              `json:"sub_order_id"`
	ProductIndex int                 `json:"product_index"`
}

// DisputeStatusChangedPayload payload.
type DisputeStatusChangedPayload struct {
	OldStatus domain.DisputeStatus `json:"old_status"`
	NewStatus domain.DisputeStatus `json:"new_status"`
}

// DisputeResolvedPayload payload.
type DisputeResolvedPayload struct {
	Kind       domain.SettlementKind `json:"kind,omitempty"`
	Ruling     *domain.Ruling        `json:"ruling,omitempty"`
	Settlement *domain.Settlement    `json:"settlement,omitempty"`
}

// ReturnShipmentRequestedPayload asks logistics to collect the item on the agreed date.
type ReturnShipmentRequestedPayload struct {
	SubOrderID   string    `json:"sub_order_id"`
	ProductIndex int       `json:"product_index"`
	RenterID     string    `json:"renter_id"`
	OwnerID      string    `json:"owner_id"`
	ReturnDate   time.Time `json:"return_date"`
}

// Notice is the compact message fanned out to real-time subscribers.
type Notice struct {
	DisputeID string               `json:"dispute_id"`
	EventType EventType            `json:"event_type"`
	Status    domain.DisputeStatus `json:"status"`
	Version   int64                `json:"version"`
}

// NoticeOf reduces an event to its real-time notice.
func NoticeOf(event Event) Notice {
	return Notice{DisputeID: event.DisputeID, EventType: event.Type, Status: event.Status, Version: event.Version}
}
