// Package event is the boundary to the real-time fan-out collaborator.
// The billing core only emits; connection management lives elsewhere.
package event

// Publisher pushes an event to one recipient's live channel. Delivery is
// best effort; an error means the attempt failed, not that it will retry.
type Publisher interface {
	Emit(recipientID int64, event string, payload any) error
}
