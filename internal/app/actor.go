package app

import "club_billing_portal/internal/domain/member"

// Actor is the authenticated caller as consumed from the identity
// collaborator. The core never mints actors, only checks them.
type Actor struct {
	MemberID int64
	Position member.ClubPosition
}

// IsAdmin reports whether the actor may administer periods and apply
// obligation overrides.
func (a Actor) IsAdmin() bool {
	return a.Position.IsOfficer()
}
