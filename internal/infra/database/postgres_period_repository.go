package database

import (
	"context"
	"database/sql"
	"fmt"

	"club_billing_portal/internal/domain/period"

	"github.com/lib/pq"
)

// Custom errors
var ErrPeriodNotFound = fmt.Errorf("billing period not found")

const periodColumns = `id, title, description, period_type, category, amount, currency,
	start_date, due_date, final_date, fiscal_year, quarter,
	eligibility_mode, include_member_ids, exclude_member_ids, membership_types,
	reminders_enabled, reminder_tiers,
	late_fee_enabled, late_fee_kind, late_fee_amount, late_fee_grace_days,
	auto_generate, generated, is_active, notes, created_by, created_at, updated_at`

type PostgresPeriodRepository struct {
	db *sql.DB
}

func NewPostgresPeriodRepository(db *sql.DB) *PostgresPeriodRepository {
	return &PostgresPeriodRepository{db: db}
}

func (r *PostgresPeriodRepository) Create(ctx context.Context, p *period.Period) error {
	query := `INSERT INTO billing_periods (
			title, description, period_type, category, amount, currency,
			start_date, due_date, final_date, fiscal_year, quarter,
			eligibility_mode, include_member_ids, exclude_member_ids, membership_types,
			reminders_enabled, reminder_tiers,
			late_fee_enabled, late_fee_kind, late_fee_amount, late_fee_grace_days,
			auto_generate, is_active, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
		RETURNING id, generated, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.Title, p.Description, p.Type, p.Category, p.Amount, p.Currency,
		p.StartDate, p.DueDate, p.FinalDate, p.FiscalYear, p.Quarter,
		p.Eligibility.Mode, pq.Array(p.Eligibility.IncludeIDs), pq.Array(p.Eligibility.ExcludeIDs),
		pq.Array(p.Eligibility.MembershipTypes),
		p.Reminders.Enabled, pq.Array(p.Reminders.DaysBeforeDue),
		p.LateFee.Enabled, p.LateFee.Kind, p.LateFee.Amount, p.LateFee.GracePeriodDays,
		p.AutoGenerate, p.IsActive, p.Notes, p.CreatedBy,
	).Scan(&p.ID, &p.Generated, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating billing period: %w", err)
	}
	return nil
}

func scanPeriod(row interface{ Scan(...any) error }) (*period.Period, error) {
	p := &period.Period{}
	var includeIDs, excludeIDs pq.Int64Array
	var membershipTypes pq.StringArray
	var tiers pq.Int64Array
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Type, &p.Category, &p.Amount, &p.Currency,
		&p.StartDate, &p.DueDate, &p.FinalDate, &p.FiscalYear, &p.Quarter,
		&p.Eligibility.Mode, &includeIDs, &excludeIDs, &membershipTypes,
		&p.Reminders.Enabled, &tiers,
		&p.LateFee.Enabled, &p.LateFee.Kind, &p.LateFee.Amount, &p.LateFee.GracePeriodDays,
		&p.AutoGenerate, &p.Generated, &p.IsActive, &p.Notes, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Eligibility.IncludeIDs = includeIDs
	p.Eligibility.ExcludeIDs = excludeIDs
	p.Eligibility.MembershipTypes = membershipTypes
	p.Reminders.DaysBeforeDue = make([]int, len(tiers))
	for i, t := range tiers {
		p.Reminders.DaysBeforeDue[i] = int(t)
	}
	return p, nil
}

func (r *PostgresPeriodRepository) GetByID(ctx context.Context, id int64) (*period.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM billing_periods WHERE id = $1`
	p, err := scanPeriod(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPeriodNotFound
		}
		return nil, fmt.Errorf("error getting billing period by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresPeriodRepository) Update(ctx context.Context, p *period.Period) error {
	query := `UPDATE billing_periods SET
			title = $1, description = $2, period_type = $3, category = $4, amount = $5, currency = $6,
			start_date = $7, due_date = $8, final_date = $9, fiscal_year = $10, quarter = $11,
			eligibility_mode = $12, include_member_ids = $13, exclude_member_ids = $14, membership_types = $15,
			reminders_enabled = $16, reminder_tiers = $17,
			late_fee_enabled = $18, late_fee_kind = $19, late_fee_amount = $20, late_fee_grace_days = $21,
			auto_generate = $22, is_active = $23, notes = $24, updated_at = NOW()
		WHERE id = $25
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.Title, p.Description, p.Type, p.Category, p.Amount, p.Currency,
		p.StartDate, p.DueDate, p.FinalDate, p.FiscalYear, p.Quarter,
		p.Eligibility.Mode, pq.Array(p.Eligibility.IncludeIDs), pq.Array(p.Eligibility.ExcludeIDs),
		pq.Array(p.Eligibility.MembershipTypes),
		p.Reminders.Enabled, pq.Array(p.Reminders.DaysBeforeDue),
		p.LateFee.Enabled, p.LateFee.Kind, p.LateFee.Amount, p.LateFee.GracePeriodDays,
		p.AutoGenerate, p.IsActive, p.Notes, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrPeriodNotFound
		}
		return fmt.Errorf("error updating billing period: %w", err)
	}
	return nil
}

func (r *PostgresPeriodRepository) List(ctx context.Context, f period.ListFilter) ([]*period.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM billing_periods WHERE TRUE`
	args := []any{}
	argIndex := 1

	if f.FiscalYear != "" {
		query += fmt.Sprintf(" AND fiscal_year = $%d", argIndex)
		args = append(args, f.FiscalYear)
		argIndex++
	}
	if f.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIndex)
		args = append(args, f.Category)
		argIndex++
	}
	if f.Type != "" {
		query += fmt.Sprintf(" AND period_type = $%d", argIndex)
		args = append(args, f.Type)
		argIndex++
	}
	if f.OnlyActive {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY due_date"

	return r.queryPeriods(ctx, query, args...)
}

func (r *PostgresPeriodRepository) ListPendingGeneration(ctx context.Context) ([]*period.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM billing_periods
		WHERE auto_generate = TRUE AND generated = FALSE AND is_active = TRUE AND start_date <= NOW()
		ORDER BY due_date`
	return r.queryPeriods(ctx, query)
}

func (r *PostgresPeriodRepository) MarkGenerated(ctx context.Context, id int64) error {
	query := `UPDATE billing_periods SET generated = TRUE, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error marking billing period generated: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (r *PostgresPeriodRepository) queryPeriods(ctx context.Context, query string, args ...any) ([]*period.Period, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying billing periods: %w", err)
	}
	defer rows.Close()

	periods := make([]*period.Period, 0)
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning billing period row: %w", err)
		}
		periods = append(periods, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating billing period rows: %w", err)
	}
	return periods, nil
}
