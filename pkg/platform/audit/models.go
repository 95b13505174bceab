package audit

import (
	"context"
	"time"

	id "portfolio/pkg/domain"
)

// EventCategory classifies audit events by retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers changes to a teacher's evidence record and the
	// public codes that attest to it.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	EventEvidenceCreated    AuditEvent = "evidence_created"
	EventEvidenceUpdated    AuditEvent = "evidence_updated"
	EventEvidenceDeleted    AuditEvent = "evidence_deleted"
	EventVerificationIssued AuditEvent = "verification_issued"
	EventDocumentGenerated  AuditEvent = "document_generated"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventEvidenceCreated:    CategoryCompliance,
	EventEvidenceDeleted:    CategoryCompliance,
	EventVerificationIssued: CategoryCompliance,

	EventEvidenceUpdated:   CategoryOperations,
	EventDocumentGenerated: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ComplianceEvent captures actions that must be persisted together with the
// change they describe. Use with the compliance publisher for fail-closed
// semantics.
type ComplianceEvent struct {
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Reason    string
	RequestID string
}

// ToEvent converts to the stored Event shape.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  AuditEvent(e.Action).Category(),
		Timestamp: e.Timestamp,
		UserID:    e.UserID,
		Subject:   e.Subject,
		Action:    e.Action,
		Reason:    e.Reason,
		RequestID: e.RequestID,
	}
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}

// OutboxEntry is a serialized event waiting to be published.
type OutboxEntry struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}
