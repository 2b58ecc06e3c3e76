package notification

import (
	"database/sql"
	"time"
)

// Type classifies what a notification is about.
type Type string

const (
	TypePaymentReminder Type = "payment_reminder"
	TypePaymentSuccess  Type = "payment_success"
	TypePaymentFailed   Type = "payment_failed"
	TypeBirthday        Type = "birthday"
	TypeAnniversary     Type = "anniversary"
	TypeAnnouncement    Type = "announcement"
	TypeSystem          Type = "system"
)

// Priority orders notifications for display and escalation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// DeliveryOutcome records one channel's delivery attempt. Outcomes are
// written after the notification row exists and never roll it back.
type DeliveryOutcome struct {
	Sent   bool      `json:"sent"`
	SentAt time.Time `json:"sentAt,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// RelatedEntity points a notification at the record it is about.
type RelatedEntity struct {
	Kind string `json:"kind"` // e.g. "obligation", "period"
	ID   int64  `json:"id"`
}

// Notification is a persisted message to a member, delivered over zero or
// more channels with independently tracked outcomes. The recipient owns
// read and delete operations; creation is owned by the system.
type Notification struct {
	ID            int64
	RecipientID   int64
	Type          Type
	Title         string
	Message       string
	Priority      Priority
	Channels      []Channel
	Delivery      map[Channel]DeliveryOutcome
	IsRead        bool
	ReadAt        sql.NullTime
	RelatedEntity *RelatedEntity
	ActionURL     sql.NullString
	ActionText    sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
