package obligation

import (
	"context"
	"time"
)

// ListFilter narrows ledger listings. Pagination is 1-based.
type ListFilter struct {
	Status   Status
	MemberID int64 // 0 means all members
	From     time.Time
	To       time.Time
	Page     int
	Limit    int
}

// StatusTotal aggregates count and amount for one status bucket.
type StatusTotal struct {
	Count  int
	Amount int64
}

// Repository is the obligation ledger's persistence boundary. All writes
// that change status are guarded by the expected current status so that
// concurrent callers cannot bypass the state machine.
type Repository interface {
	// CreateIfAbsent inserts the obligation unless one already exists for
	// its (member, period, type) key. The insert must be atomic at the
	// storage layer; created reports whether a new row was written.
	CreateIfAbsent(ctx context.Context, o *Obligation) (created bool, err error)
	// Create inserts an ad-hoc obligation without the period key check.
	Create(ctx context.Context, o *Obligation) error

	GetByID(ctx context.Context, id int64) (*Obligation, error)
	GetByOrderRef(ctx context.Context, orderRef string) (*Obligation, error)

	List(ctx context.Context, f ListFilter) ([]*Obligation, int, error)
	TotalsByStatus(ctx context.Context, f ListFilter) (map[Status]StatusTotal, error)

	// MarkProcessing transitions pending -> processing, storing the
	// gateway order reference. ErrStatusConflict when not pending.
	MarkProcessing(ctx context.Context, id int64, orderRef string) error
	// MarkCompleted transitions pending|processing -> completed.
	MarkCompleted(ctx context.Context, id int64, settlementRef, signature, receiptNumber string, paidAt time.Time) error
	// MarkFailed transitions pending|processing -> failed.
	MarkFailed(ctx context.Context, id int64) error
	// Override applies an administrative cancel or refund, recording the
	// acting member. Legality of the step is still enforced.
	Override(ctx context.Context, id int64, to Status, actorID int64) error

	// SettleByOrderRef is the webhook upsert: it completes the obligation
	// identified by its gateway order reference unless a settlement was
	// already applied. applied is false on replay; the returned obligation
	// reflects the row either way.
	SettleByOrderRef(ctx context.Context, orderRef, settlementRef string, paidAt time.Time) (applied bool, o *Obligation, err error)
	// FailByOrderRef records a gateway-reported failure, pending|processing only.
	FailByOrderRef(ctx context.Context, orderRef string) (applied bool, o *Obligation, err error)

	// ListPendingDueOn returns pending obligations whose due date falls on
	// the given calendar day.
	ListPendingDueOn(ctx context.Context, day time.Time) ([]*Obligation, error)
	// ListPendingOverdue returns pending obligations due strictly before day.
	ListPendingOverdue(ctx context.Context, day time.Time) ([]*Obligation, error)
	// RecordReminder increments the reminder counter and stamps the time.
	RecordReminder(ctx context.Context, id int64, at time.Time) error

	// NextReceiptSeq atomically advances and returns the per-year receipt
	// counter. Concurrent settlements never see the same value.
	NextReceiptSeq(ctx context.Context, year int) (int, error)
}
