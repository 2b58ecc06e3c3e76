package period

import (
	"database/sql"
	"fmt"
	"time"
)

// Type mirrors the charge types the club levies.
type Type string

const (
	TypeMembershipFee       Type = "membership_fee"
	TypeProjectContribution Type = "project_contribution"
	TypeEventFee            Type = "event_fee"
	TypeDonation            Type = "donation"
	TypeFine                Type = "fine"
	TypeOther               Type = "other"
)

// Category is the billing cadence of a period.
type Category string

const (
	CategoryQuarterly Category = "quarterly"
	CategoryAnnual    Category = "annual"
	CategoryMonthly   Category = "monthly"
	CategoryOneTime   Category = "one_time"
)

// Status is computed from the clock against the period's date boundaries.
// It is never stored.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusActive   Status = "active"
	StatusOverdue  Status = "overdue"
	StatusClosed   Status = "closed"
)

// EligibilityMode selects the base member set a period applies to.
type EligibilityMode string

const (
	EligibilityAll      EligibilityMode = "all"
	EligibilityActive   EligibilityMode = "active"
	EligibilitySpecific EligibilityMode = "specific"
)

// Eligibility is the rule determining which members receive an obligation.
type Eligibility struct {
	Mode            EligibilityMode
	IncludeIDs      []int64 // used when Mode is specific
	ExcludeIDs      []int64
	MembershipTypes []string // empty means no type filter
}

// LateFeeKind selects how a late fee is computed.
type LateFeeKind string

const (
	LateFeeFixed      LateFeeKind = "fixed"
	LateFeePercentage LateFeeKind = "percentage"
)

// LateFee configures an optional penalty applied after the grace period.
type LateFee struct {
	Enabled         bool
	Kind            LateFeeKind
	Amount          int64 // minor units for fixed, basis points for percentage
	GracePeriodDays int
}

// ReminderSchedule configures pre-due reminder tiers in days before the
// due date, e.g. [7, 3, 1].
type ReminderSchedule struct {
	Enabled       bool
	DaysBeforeDue []int
}

// Period is a billing window: one definition that materializes into one
// obligation per eligible member.
type Period struct {
	ID           int64
	Title        string
	Description  sql.NullString
	Type         Type
	Category     Category
	Amount       int64 // minor units
	Currency     string
	StartDate    time.Time
	DueDate      time.Time
	FinalDate    time.Time
	FiscalYear   string
	Quarter      string // Q1..Q4 or N/A
	Eligibility  Eligibility
	Reminders    ReminderSchedule
	LateFee      LateFee
	AutoGenerate bool
	Generated    bool
	IsActive     bool
	Notes        sql.NullString
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidationError carries a field-level detail for a rejected period.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate enforces the period invariants before create or update.
// Violations reject the write, they are never clamped.
func (p *Period) Validate() error {
	if p.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if p.Amount < 0 {
		return &ValidationError{Field: "amount", Message: "amount must not be negative"}
	}
	if p.FiscalYear == "" {
		return &ValidationError{Field: "fiscalYear", Message: "fiscal year is required"}
	}
	if p.StartDate.IsZero() || p.DueDate.IsZero() || p.FinalDate.IsZero() {
		return &ValidationError{Field: "dates", Message: "start, due and final dates are required"}
	}
	if !p.StartDate.Before(p.DueDate) {
		return &ValidationError{Field: "dueDate", Message: "due date must be after start date"}
	}
	if !p.DueDate.Before(p.FinalDate) {
		return &ValidationError{Field: "finalDate", Message: "final date must be after due date"}
	}
	if p.Eligibility.Mode == EligibilitySpecific && len(p.Eligibility.IncludeIDs) == 0 {
		return &ValidationError{Field: "eligibility", Message: "specific eligibility requires an include list"}
	}
	for _, d := range p.Reminders.DaysBeforeDue {
		if d <= 0 {
			return &ValidationError{Field: "reminderSchedule", Message: "reminder tiers must be positive day counts"}
		}
	}
	return nil
}

// StatusAt derives the period's lifecycle status from the given clock.
func (p *Period) StatusAt(now time.Time) Status {
	switch {
	case now.Before(p.StartDate):
		return StatusUpcoming
	case now.Before(p.DueDate):
		return StatusActive
	case now.Before(p.FinalDate):
		return StatusOverdue
	default:
		return StatusClosed
	}
}
