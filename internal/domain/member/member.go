package member

import (
	"database/sql"
	"time"
)

// MembershipType classifies how a member belongs to the club.
type MembershipType string

const (
	TypeRegular  MembershipType = "regular"
	TypeHonorary MembershipType = "honorary"
	TypeCharter  MembershipType = "charter"
	TypeLife     MembershipType = "life"
)

// Status is the member's standing in the club.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// ClubPosition identifies an officer role. Officers may administer
// billing periods and override obligation state.
type ClubPosition string

const (
	PositionPresident ClubPosition = "president"
	PositionSecretary ClubPosition = "secretary"
	PositionTreasurer ClubPosition = "treasurer"
	PositionMember    ClubPosition = "member"
)

// IsOfficer reports whether the position grants administrative rights
// over billing periods and obligation overrides.
func (p ClubPosition) IsOfficer() bool {
	switch p {
	case PositionPresident, PositionSecretary, PositionTreasurer:
		return true
	}
	return false
}

// Member is a club member as seen by the billing core. Profile CRUD is
// owned by an external collaborator; this package only reads.
type Member struct {
	ID              int64
	MemberCode      string // human-facing id, e.g. "RCM-0042"
	FirstName       string
	LastName        sql.NullString
	Email           string
	MembershipType  MembershipType
	Status          Status
	TelegramChatID  sql.NullInt64
	BirthDate       sql.NullTime
	AnniversaryDate sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FullName joins first and optional last name.
func (m *Member) FullName() string {
	if m.LastName.Valid {
		return m.FirstName + " " + m.LastName.String
	}
	return m.FirstName
}
