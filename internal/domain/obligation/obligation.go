package obligation

import (
	"database/sql"
	"time"
)

// Type mirrors the period charge types; ad-hoc obligations reuse them.
type Type string

const (
	TypeMembershipFee       Type = "membership_fee"
	TypeProjectContribution Type = "project_contribution"
	TypeEventFee            Type = "event_fee"
	TypeDonation            Type = "donation"
	TypeFine                Type = "fine"
	TypeOther               Type = "other"
)

// Obligation is one member's instance of a charge, tracked through the
// settlement state machine. At most one obligation exists per
// (member, period, type); that key is the generation idempotency boundary.
type Obligation struct {
	ID                   int64
	MemberID             int64
	PeriodID             sql.NullInt64 // null for ad-hoc charges
	Type                 Type
	Category             string
	Amount               int64 // minor units
	Currency             string
	Status               Status
	DueDate              time.Time
	PaidAt               sql.NullTime
	GatewayOrderRef      sql.NullString
	GatewaySettlementRef sql.NullString
	GatewaySignature     sql.NullString
	ReceiptNumber        sql.NullString
	FiscalYear           string
	Description          sql.NullString
	RemindersSent        int
	LastReminderAt       sql.NullTime
	ProcessedBy          sql.NullInt64 // acting admin for cancel/refund
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Overdue reports whether the obligation is unpaid past its due date.
func (o *Obligation) Overdue(now time.Time) bool {
	if o.Status != StatusPending {
		return false
	}
	return now.After(o.DueDate)
}

// DaysOverdue is the whole number of days past due, zero when not overdue.
func (o *Obligation) DaysOverdue(now time.Time) int {
	if !o.Overdue(now) {
		return 0
	}
	return int(now.Sub(o.DueDate).Hours() / 24)
}
