package member

import "context"

// Filter narrows a directory listing. Zero value matches every member.
type Filter struct {
	OnlyActive      bool
	MembershipTypes []MembershipType
	IncludeIDs      []int64 // restricts to these ids when set
	ExcludeIDs      []int64
}

// Repository defines the read surface the billing core needs from the
// member directory. Mutation belongs to the external profile service.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Member, error)
	List(ctx context.Context, f Filter) ([]*Member, error)
	// ListByBirthday returns active members whose birth date falls on the
	// given month and day, ignoring year.
	ListByBirthday(ctx context.Context, month int, day int) ([]*Member, error)
	// ListByAnniversary is the same month/day match over anniversary dates.
	ListByAnniversary(ctx context.Context, month int, day int) ([]*Member, error)
}
