package app

import "fmt"

// Application-level errors shared across services. The HTTP layer maps
// these onto response codes.
var (
	ErrNotAuthorized      = fmt.Errorf("actor lacks the required club position")
	ErrSignatureMismatch  = fmt.Errorf("settlement signature mismatch")
	ErrGatewayUnavailable = fmt.Errorf("payment gateway unavailable")
	ErrIllegalTransition  = fmt.Errorf("illegal obligation status transition")
	ErrPeriodGenerated    = fmt.Errorf("billing period already has completed settlements")
)
