package database

import (
	"context"
	"database/sql"
	"fmt"

	"club_billing_portal/internal/domain/obligation"

	"time"
)

// Custom errors specific to the obligation ledger
var ErrObligationNotFound = fmt.Errorf("obligation not found")
var ErrStatusConflict = fmt.Errorf("obligation status does not permit this transition")

const obligationColumns = `id, member_id, period_id, obligation_type, category, amount, currency,
	status, due_date, paid_at, gateway_order_ref, gateway_settlement_ref, gateway_signature,
	receipt_number, fiscal_year, description, reminders_sent, last_reminder_at, processed_by,
	created_at, updated_at`

type PostgresObligationRepository struct {
	db *sql.DB
}

func NewPostgresObligationRepository(db *sql.DB) *PostgresObligationRepository {
	return &PostgresObligationRepository{db: db}
}

func scanObligation(row interface{ Scan(...any) error }) (*obligation.Obligation, error) {
	o := &obligation.Obligation{}
	err := row.Scan(&o.ID, &o.MemberID, &o.PeriodID, &o.Type, &o.Category, &o.Amount, &o.Currency,
		&o.Status, &o.DueDate, &o.PaidAt, &o.GatewayOrderRef, &o.GatewaySettlementRef, &o.GatewaySignature,
		&o.ReceiptNumber, &o.FiscalYear, &o.Description, &o.RemindersSent, &o.LastReminderAt, &o.ProcessedBy,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// CreateIfAbsent is the atomic insert-if-absent on the
// (member, period, type) key. ON CONFLICT DO NOTHING keeps concurrent
// generation runs correct without a read-then-write window.
func (r *PostgresObligationRepository) CreateIfAbsent(ctx context.Context, o *obligation.Obligation) (bool, error) {
	query := `INSERT INTO obligations (member_id, period_id, obligation_type, category, amount, currency,
			status, due_date, fiscal_year, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (member_id, period_id, obligation_type) WHERE period_id IS NOT NULL DO NOTHING
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, o.MemberID, o.PeriodID, o.Type, o.Category, o.Amount,
		o.Currency, o.Status, o.DueDate, o.FiscalYear, o.Description,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return false, nil // key already present, nothing inserted
	}
	if err != nil {
		return false, fmt.Errorf("error creating obligation: %w", err)
	}
	return true, nil
}

func (r *PostgresObligationRepository) Create(ctx context.Context, o *obligation.Obligation) error {
	query := `INSERT INTO obligations (member_id, period_id, obligation_type, category, amount, currency,
			status, due_date, fiscal_year, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, o.MemberID, o.PeriodID, o.Type, o.Category, o.Amount,
		o.Currency, o.Status, o.DueDate, o.FiscalYear, o.Description,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating ad-hoc obligation: %w", err)
	}
	return nil
}

func (r *PostgresObligationRepository) GetByID(ctx context.Context, id int64) (*obligation.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE id = $1`
	o, err := scanObligation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrObligationNotFound
		}
		return nil, fmt.Errorf("error getting obligation by ID: %w", err)
	}
	return o, nil
}

func (r *PostgresObligationRepository) GetByOrderRef(ctx context.Context, orderRef string) (*obligation.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE gateway_order_ref = $1`
	o, err := scanObligation(r.db.QueryRowContext(ctx, query, orderRef))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrObligationNotFound
		}
		return nil, fmt.Errorf("error getting obligation by order ref: %w", err)
	}
	return o, nil
}

func buildObligationFilter(f obligation.ListFilter) (string, []any) {
	where := " WHERE TRUE"
	args := []any{}
	argIndex := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, f.Status)
		argIndex++
	}
	if f.MemberID != 0 {
		where += fmt.Sprintf(" AND member_id = $%d", argIndex)
		args = append(args, f.MemberID)
		argIndex++
	}
	if !f.From.IsZero() {
		where += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, f.From)
		argIndex++
	}
	if !f.To.IsZero() {
		where += fmt.Sprintf(" AND created_at <= $%d", argIndex)
		args = append(args, f.To)
		argIndex++
	}
	return where, args
}

func (r *PostgresObligationRepository) List(ctx context.Context, f obligation.ListFilter) ([]*obligation.Obligation, int, error) {
	where, args := buildObligationFilter(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM obligations`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting obligations: %w", err)
	}

	query := `SELECT ` + obligationColumns + ` FROM obligations` + where + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, (page-1)*f.Limit)
	}

	obligations, err := r.queryObligations(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return obligations, total, nil
}

func (r *PostgresObligationRepository) TotalsByStatus(ctx context.Context, f obligation.ListFilter) (map[obligation.Status]obligation.StatusTotal, error) {
	f.Status = "" // totals always span every status bucket
	where, args := buildObligationFilter(f)
	query := `SELECT status, COUNT(*), COALESCE(SUM(amount), 0) FROM obligations` + where + ` GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error aggregating obligations: %w", err)
	}
	defer rows.Close()

	totals := make(map[obligation.Status]obligation.StatusTotal)
	for rows.Next() {
		var s obligation.Status
		var t obligation.StatusTotal
		if err := rows.Scan(&s, &t.Count, &t.Amount); err != nil {
			return nil, fmt.Errorf("error scanning obligation totals: %w", err)
		}
		totals[s] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating obligation totals: %w", err)
	}
	return totals, nil
}

// guardedUpdate runs an UPDATE whose WHERE clause encodes the legal source
// statuses. Zero rows affected means either a missing row or an illegal
// transition; the follow-up read disambiguates.
func (r *PostgresObligationRepository) guardedUpdate(ctx context.Context, id int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating obligation: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrStatusConflict
}

func (r *PostgresObligationRepository) MarkProcessing(ctx context.Context, id int64, orderRef string) error {
	query := `UPDATE obligations
		SET status = 'processing', gateway_order_ref = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	return r.guardedUpdate(ctx, id, query, id, orderRef)
}

func (r *PostgresObligationRepository) MarkCompleted(ctx context.Context, id int64, settlementRef, signature, receiptNumber string, paidAt time.Time) error {
	query := `UPDATE obligations
		SET status = 'completed', gateway_settlement_ref = $2, gateway_signature = $3,
			receipt_number = $4, paid_at = $5, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')`
	return r.guardedUpdate(ctx, id, query, id, settlementRef, signature, receiptNumber, paidAt)
}

func (r *PostgresObligationRepository) MarkFailed(ctx context.Context, id int64) error {
	query := `UPDATE obligations
		SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')`
	return r.guardedUpdate(ctx, id, query, id)
}

func (r *PostgresObligationRepository) Override(ctx context.Context, id int64, to obligation.Status, actorID int64) error {
	var query string
	switch to {
	case obligation.StatusCancelled:
		query = `UPDATE obligations
			SET status = 'cancelled', processed_by = $2, updated_at = NOW()
			WHERE id = $1 AND status IN ('pending', 'processing', 'failed')`
	case obligation.StatusRefunded:
		query = `UPDATE obligations
			SET status = 'refunded', processed_by = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'completed'`
	default:
		return ErrStatusConflict
	}
	return r.guardedUpdate(ctx, id, query, id, actorID)
}

// SettleByOrderRef is the webhook upsert. The guarded UPDATE applies the
// settlement at most once; replays affect zero rows and report applied=false.
func (r *PostgresObligationRepository) SettleByOrderRef(ctx context.Context, orderRef, settlementRef string, paidAt time.Time) (bool, *obligation.Obligation, error) {
	query := `UPDATE obligations
		SET status = 'completed', gateway_settlement_ref = $2, paid_at = $3, updated_at = NOW()
		WHERE gateway_order_ref = $1 AND status IN ('pending', 'processing')
		RETURNING ` + obligationColumns
	o, err := scanObligation(r.db.QueryRowContext(ctx, query, orderRef, settlementRef, paidAt))
	if err == nil {
		return true, o, nil
	}
	if err != sql.ErrNoRows {
		return false, nil, fmt.Errorf("error settling obligation by order ref: %w", err)
	}
	o, err = r.GetByOrderRef(ctx, orderRef)
	if err != nil {
		return false, nil, err
	}
	return false, o, nil
}

func (r *PostgresObligationRepository) FailByOrderRef(ctx context.Context, orderRef string) (bool, *obligation.Obligation, error) {
	query := `UPDATE obligations
		SET status = 'failed', updated_at = NOW()
		WHERE gateway_order_ref = $1 AND status IN ('pending', 'processing')
		RETURNING ` + obligationColumns
	o, err := scanObligation(r.db.QueryRowContext(ctx, query, orderRef))
	if err == nil {
		return true, o, nil
	}
	if err != sql.ErrNoRows {
		return false, nil, fmt.Errorf("error failing obligation by order ref: %w", err)
	}
	o, err = r.GetByOrderRef(ctx, orderRef)
	if err != nil {
		return false, nil, err
	}
	return false, o, nil
}

func (r *PostgresObligationRepository) ListPendingDueOn(ctx context.Context, day time.Time) ([]*obligation.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations
		WHERE status = 'pending' AND due_date = $1::date
		ORDER BY id`
	return r.queryObligations(ctx, query, day)
}

func (r *PostgresObligationRepository) ListPendingOverdue(ctx context.Context, day time.Time) ([]*obligation.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations
		WHERE status = 'pending' AND due_date < $1::date
		ORDER BY due_date`
	return r.queryObligations(ctx, query, day)
}

func (r *PostgresObligationRepository) RecordReminder(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE obligations
		SET reminders_sent = reminders_sent + 1, last_reminder_at = $2, updated_at = NOW()
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("error recording reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrObligationNotFound
	}
	return nil
}

// NextReceiptSeq advances the per-year counter in a single upsert, so
// concurrent settlements cannot draw the same number.
func (r *PostgresObligationRepository) NextReceiptSeq(ctx context.Context, year int) (int, error) {
	query := `INSERT INTO receipt_counters (year, last_seq) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_seq = receipt_counters.last_seq + 1
		RETURNING last_seq`
	var seq int
	if err := r.db.QueryRowContext(ctx, query, year).Scan(&seq); err != nil {
		return 0, fmt.Errorf("error advancing receipt counter: %w", err)
	}
	return seq, nil
}

func (r *PostgresObligationRepository) queryObligations(ctx context.Context, query string, args ...any) ([]*obligation.Obligation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying obligations: %w", err)
	}
	defer rows.Close()

	obligations := make([]*obligation.Obligation, 0)
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning obligation row: %w", err)
		}
		obligations = append(obligations, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating obligation rows: %w", err)
	}
	return obligations, nil
}
