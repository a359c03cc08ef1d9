package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the category of audit event
type EventType string

const (
	// Organization events
	EventOrganizationCreated EventType = "organization.created"
	EventOrganizationUpdated EventType = "organization.updated"
	EventOrganizationDeleted EventType = "organization.deleted"

	// Membership lifecycle events
	EventMembershipCreated       EventType = "membership.created"
	EventMembershipLevelChanged  EventType = "membership.level_changed"
	EventMembershipStatusChanged EventType = "membership.status_changed"
	EventMembershipJoinRequested EventType = "membership.join_requested"
	EventMembershipJoinApproved  EventType = "membership.join_approved"
	EventMembershipJoinRejected  EventType = "membership.join_rejected"
	EventMembershipLeft          EventType = "membership.left"
	EventMembershipRemoved       EventType = "membership.removed"

	// Role events
	EventRoleAdded   EventType = "role.added"
	EventRoleRemoved EventType = "role.removed"

	// Season events
	EventSeasonCreated   EventType = "season.created"
	EventSeasonActivated EventType = "season.activated"

	// Registration events
	EventRegistrationRequested EventType = "registration.requested"
	EventRegistrationApproved  EventType = "registration.approved"
	EventRegistrationRejected  EventType = "registration.rejected"
	EventRegistrationCancelled EventType = "registration.cancelled"
	EventRegistrationPayment   EventType = "registration.payment"

	// Bulk import
	EventImportCompleted EventType = "import.completed"
)

// SubjectType names the kind of record an event is about
type SubjectType string

const (
	SubjectOrganization SubjectType = "organization"
	SubjectMembership   SubjectType = "membership"
	SubjectRole         SubjectType = "role"
	SubjectSeason       SubjectType = "season"
	SubjectRegistration SubjectType = "registration"
)

// Event is a single audit entry
type Event struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	// ActorID is nil for system actions such as the status sync
	ActorID        *int64 `json:"actor_id,omitempty"`
	OrganizationID int64  `json:"organization_id"`

	SubjectType SubjectType `json:"subject_type"`
	SubjectID   int64       `json:"subject_id"`

	// FromState and ToState hold the status or level before and after
	FromState string `json:"from_state,omitempty"`
	ToState   string `json:"to_state,omitempty"`

	Message  string         `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewEvent creates an event stamped with a fresh id and the current time
func NewEvent(eventType EventType, actorID *int64, orgID int64, subject SubjectType, subjectID int64) *Event {
	return &Event{
		ID:             uuid.New(),
		Timestamp:      time.Now().UTC(),
		Type:           eventType,
		ActorID:        actorID,
		OrganizationID: orgID,
		SubjectType:    subject,
		SubjectID:      subjectID,
	}
}

// Transition sets the from and to states
func (e *Event) Transition(from, to string) *Event {
	e.FromState = from
	e.ToState = to
	return e
}

// WithMessage sets the message
func (e *Event) WithMessage(msg string) *Event {
	e.Message = msg
	return e
}

// WithMetadata adds a metadata entry
func (e *Event) WithMetadata(key string, value any) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// Actor returns a pointer to id for Event.ActorID
func Actor(id int64) *int64 {
	return &id
}

// SearchFilter represents filters for searching audit events
type SearchFilter struct {
	OrganizationID *int64
	ActorID        *int64
	SubjectType    SubjectType
	SubjectID      *int64
	EventTypes     []EventType

	Since *time.Time
	Until *time.Time

	Limit  int
	Offset int
}

// RetentionPolicy defines how long audit events are kept
type RetentionPolicy struct {
	RetentionDays int
}

// DefaultRetentionPolicy keeps two years of events
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 730}
}
