package period

import "context"

// ListFilter narrows period listings. Zero value lists everything.
type ListFilter struct {
	FiscalYear string
	Category   Category
	Type       Type
	OnlyActive bool
}

// Repository defines persistence for billing-window definitions.
type Repository interface {
	Create(ctx context.Context, p *Period) error
	GetByID(ctx context.Context, id int64) (*Period, error)
	Update(ctx context.Context, p *Period) error
	List(ctx context.Context, f ListFilter) ([]*Period, error)
	// ListPendingGeneration returns active periods flagged for automatic
	// generation whose obligations have not been materialized yet.
	ListPendingGeneration(ctx context.Context) ([]*Period, error)
	// MarkGenerated flips the generated flag after a batch completes.
	MarkGenerated(ctx context.Context, id int64) error
}
