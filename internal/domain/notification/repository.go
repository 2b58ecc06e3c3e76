package notification

import (
	"context"
	"time"
)

// ListFilter narrows a recipient's notification listing.
type ListFilter struct {
	RecipientID int64
	OnlyUnread  bool
	Page        int
	Limit       int
}

// Repository defines persistence for notifications. Delivery outcomes are
// updated on the already-persisted record so channel failures can never
// undo creation.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id int64) (*Notification, error)
	List(ctx context.Context, f ListFilter) ([]*Notification, int, error)
	CountUnread(ctx context.Context, recipientID int64) (int, error)

	// UpdateDelivery records one channel's outcome.
	UpdateDelivery(ctx context.Context, id int64, ch Channel, out DeliveryOutcome) error

	// MarkRead flips the read flag for the recipient's own notification.
	MarkRead(ctx context.Context, id, recipientID int64, at time.Time) error
	MarkAllRead(ctx context.Context, recipientID int64, at time.Time) (int, error)

	Delete(ctx context.Context, id, recipientID int64) error
	DeleteRead(ctx context.Context, recipientID int64) (int, error)

	// DeleteOldRead removes read notifications created before the cutoff,
	// regardless of recipient. Used by the retention sweep.
	DeleteOldRead(ctx context.Context, cutoff time.Time) (int, error)
}
