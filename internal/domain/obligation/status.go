package obligation

// Status is the settlement state of an obligation.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// CanTransition reports whether moving from one status to another is a
// legal step of the settlement state machine. Cancellation and refund are
// administrative overrides; everything else is monotone.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusProcessing:
		return from == StatusPending
	case StatusCompleted, StatusFailed:
		return from == StatusPending || from == StatusProcessing
	case StatusCancelled:
		return from == StatusPending || from == StatusProcessing || from == StatusFailed
	case StatusRefunded:
		return from == StatusCompleted
	}
	return false
}

// AdminOnly reports whether a transition target requires an elevated actor.
func AdminOnly(to Status) bool {
	return to == StatusCancelled || to == StatusRefunded
}

// Settled reports whether the status is terminal for payment collection.
func (s Status) Settled() bool {
	return s == StatusCompleted || s == StatusRefunded
}
