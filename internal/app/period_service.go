package app

import (
	"context"
	"fmt"

	"club_billing_portal/internal/domain/period"

	"github.com/sirupsen/logrus"
)

// PeriodService owns billing-window definitions and manual generation
// triggers. All mutations require an officer actor.
type PeriodService struct {
	periodRepo period.Repository
	generator  *Generator
	clock      Clock
	logger     *logrus.Logger
}

func NewPeriodService(pr period.Repository, g *Generator, clock Clock, logger *logrus.Logger) *PeriodService {
	return &PeriodService{
		periodRepo: pr,
		generator:  g,
		clock:      clock,
		logger:     logger,
	}
}

// CreateResult reports a stored period's inline generation attempt.
// GenerationErr is set when the period was created but immediate generation
// failed; the period stays unmarked, so the scheduled sweep retries it.
type CreateResult struct {
	Generation    *GenerateResult
	GenerationErr error
}

// Create validates and stores a new period. When the period is flagged for
// automatic generation and already underway, obligations are materialized
// immediately.
func (s *PeriodService) Create(ctx context.Context, actor Actor, p *period.Period) (*CreateResult, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.CreatedBy = actor.MemberID
	if p.Currency == "" {
		p.Currency = "INR"
	}
	if p.Quarter == "" {
		p.Quarter = "N/A"
	}

	if err := s.periodRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create billing period: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"period_id": p.ID,
		"title":     p.Title,
		"actor_id":  actor.MemberID,
	}).Info("Billing period created")

	out := &CreateResult{}
	if p.AutoGenerate && !s.clock.Now().Before(p.StartDate) {
		gen, err := s.generator.Generate(ctx, p)
		if err != nil {
			// Creation already succeeded; report the generation failure
			// without undoing the period.
			s.logger.WithError(err).WithField("period_id", p.ID).Error("Automatic generation failed after period creation")
			out.GenerationErr = err
			return out, nil
		}
		out.Generation = gen
	}
	return out, nil
}

// Update re-validates and stores changes. Date-order violations reject the
// update, they are never clamped.
func (s *PeriodService) Update(ctx context.Context, actor Actor, p *period.Period) error {
	if !actor.IsAdmin() {
		return ErrNotAuthorized
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return s.periodRepo.Update(ctx, p)
}

func (s *PeriodService) Get(ctx context.Context, id int64) (*period.Period, error) {
	return s.periodRepo.GetByID(ctx, id)
}

// List filters periods; statusFilter, when set, matches the computed
// lifecycle status at the current clock.
func (s *PeriodService) List(ctx context.Context, f period.ListFilter, statusFilter period.Status) ([]*period.Period, error) {
	periods, err := s.periodRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if statusFilter == "" {
		return periods, nil
	}
	now := s.clock.Now()
	filtered := make([]*period.Period, 0, len(periods))
	for _, p := range periods {
		if p.StatusAt(now) == statusFilter {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// Generate is the manual trigger behind POST /periods/:id/generate.
func (s *PeriodService) Generate(ctx context.Context, actor Actor, periodID int64) (*GenerateResult, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	p, err := s.periodRepo.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	return s.generator.Generate(ctx, p)
}

// StatusAt exposes the computed status for handlers rendering listings.
func (s *PeriodService) StatusAt(p *period.Period) period.Status {
	return p.StatusAt(s.clock.Now())
}
