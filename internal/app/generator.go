package app

import (
	"context"
	"database/sql"
	"fmt"

	"club_billing_portal/internal/domain/member"
	"club_billing_portal/internal/domain/obligation"
	"club_billing_portal/internal/domain/period"

	"github.com/sirupsen/logrus"
)

// GenerateResult reports one generation run.
type GenerateResult struct {
	Created []*obligation.Obligation
	Skipped int
}

// Generator materializes a billing period into per-member obligations.
// Idempotency rests entirely on the ledger's (member, period, type) unique
// key, so concurrent runs (the scheduled sweep racing a manual trigger)
// stay correct without application locks.
type Generator struct {
	periodRepo     period.Repository
	memberRepo     member.Repository
	obligationRepo obligation.Repository
	logger         *logrus.Logger
}

func NewGenerator(pr period.Repository, mr member.Repository, or obligation.Repository, logger *logrus.Logger) *Generator {
	return &Generator{
		periodRepo:     pr,
		memberRepo:     mr,
		obligationRepo: or,
		logger:         logger,
	}
}

// eligibilityFilter maps a period's eligibility rule onto a directory filter.
func eligibilityFilter(e period.Eligibility) member.Filter {
	f := member.Filter{ExcludeIDs: e.ExcludeIDs}
	for _, t := range e.MembershipTypes {
		f.MembershipTypes = append(f.MembershipTypes, member.MembershipType(t))
	}
	switch e.Mode {
	case period.EligibilityAll:
		// no base restriction
	case period.EligibilitySpecific:
		f.IncludeIDs = e.IncludeIDs
	default: // active
		f.OnlyActive = true
	}
	return f
}

// Generate resolves the eligible member set and inserts one pending
// obligation per member. A member whose insert fails is logged and
// skipped; the batch continues. Re-invocation creates nothing and reports
// the whole set as skipped.
func (g *Generator) Generate(ctx context.Context, p *period.Period) (*GenerateResult, error) {
	members, err := g.memberRepo.List(ctx, eligibilityFilter(p.Eligibility))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve eligible members: %w", err)
	}

	result := &GenerateResult{Created: make([]*obligation.Obligation, 0, len(members))}
	for _, m := range members {
		o := &obligation.Obligation{
			MemberID:   m.ID,
			PeriodID:   sql.NullInt64{Int64: p.ID, Valid: true},
			Type:       obligation.Type(p.Type),
			Category:   string(p.Category),
			Amount:     p.Amount,
			Currency:   p.Currency,
			Status:     obligation.StatusPending,
			DueDate:    p.DueDate,
			FiscalYear: p.FiscalYear,
		}
		if p.Description.Valid {
			o.Description = p.Description
		} else {
			o.Description = sql.NullString{String: p.Title, Valid: true}
		}

		created, err := g.obligationRepo.CreateIfAbsent(ctx, o)
		if err != nil {
			g.logger.WithError(err).WithFields(logrus.Fields{
				"period_id": p.ID,
				"member_id": m.ID,
			}).Error("Skipping member: obligation insert failed")
			result.Skipped++
			continue
		}
		if !created {
			result.Skipped++
			continue
		}
		result.Created = append(result.Created, o)
	}

	if err := g.periodRepo.MarkGenerated(ctx, p.ID); err != nil {
		return result, fmt.Errorf("failed to mark period generated: %w", err)
	}
	p.Generated = true

	g.logger.WithFields(logrus.Fields{
		"period_id": p.ID,
		"created":   len(result.Created),
		"skipped":   result.Skipped,
	}).Info("Obligation generation completed")
	return result, nil
}
