// Package gateway is the boundary to the external payment gateway. The
// core only creates orders; capture and settlement happen on the gateway's
// side and come back through confirmations and webhooks.
package gateway

import "context"

// Order is the gateway's handle for a settlement attempt.
type Order struct {
	Ref      string
	Amount   int64
	Currency string
}

// Client requests gateway orders. Implementations must bound their
// timeouts; a failure leaves the obligation pending and is safe to retry.
type Client interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)
}
