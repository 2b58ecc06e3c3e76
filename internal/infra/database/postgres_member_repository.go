package database

import (
	"context"
	"database/sql"
	"fmt"

	"club_billing_portal/internal/domain/member"

	"github.com/lib/pq"
)

// Custom errors
var ErrMemberNotFound = fmt.Errorf("member not found")

const memberColumns = `id, member_code, first_name, last_name, email, membership_type, status,
	telegram_chat_id, birth_date, anniversary_date, created_at, updated_at`

type PostgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) *PostgresMemberRepository {
	return &PostgresMemberRepository{db: db}
}

func scanMember(row interface{ Scan(...any) error }) (*member.Member, error) {
	m := &member.Member{}
	err := row.Scan(&m.ID, &m.MemberCode, &m.FirstName, &m.LastName, &m.Email,
		&m.MembershipType, &m.Status, &m.TelegramChatID, &m.BirthDate,
		&m.AnniversaryDate, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *PostgresMemberRepository) GetByID(ctx context.Context, id int64) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	m, err := scanMember(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("error getting member by ID: %w", err)
	}
	return m, nil
}

// List resolves an eligibility-style filter in a single query so callers do
// not race a changing directory while composing the set by hand.
func (r *PostgresMemberRepository) List(ctx context.Context, f member.Filter) ([]*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE TRUE`
	args := []any{}
	argIndex := 1

	if f.OnlyActive {
		query += " AND status = 'active'"
	}
	if len(f.IncludeIDs) > 0 {
		query += fmt.Sprintf(" AND id = ANY($%d::bigint[])", argIndex)
		args = append(args, pq.Array(f.IncludeIDs))
		argIndex++
	}
	if len(f.MembershipTypes) > 0 {
		types := make([]string, len(f.MembershipTypes))
		for i, t := range f.MembershipTypes {
			types[i] = string(t)
		}
		query += fmt.Sprintf(" AND membership_type = ANY($%d::varchar[])", argIndex)
		args = append(args, pq.Array(types))
		argIndex++
	}
	if len(f.ExcludeIDs) > 0 {
		query += fmt.Sprintf(" AND NOT (id = ANY($%d::bigint[]))", argIndex)
		args = append(args, pq.Array(f.ExcludeIDs))
		argIndex++
	}
	query += " ORDER BY id"

	return r.queryMembers(ctx, query, args...)
}

func (r *PostgresMemberRepository) ListByBirthday(ctx context.Context, month, day int) ([]*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members
		WHERE status = 'active' AND birth_date IS NOT NULL
		  AND EXTRACT(MONTH FROM birth_date) = $1 AND EXTRACT(DAY FROM birth_date) = $2
		ORDER BY id`
	return r.queryMembers(ctx, query, month, day)
}

func (r *PostgresMemberRepository) ListByAnniversary(ctx context.Context, month, day int) ([]*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members
		WHERE status = 'active' AND anniversary_date IS NOT NULL
		  AND EXTRACT(MONTH FROM anniversary_date) = $1 AND EXTRACT(DAY FROM anniversary_date) = $2
		ORDER BY id`
	return r.queryMembers(ctx, query, month, day)
}

func (r *PostgresMemberRepository) queryMembers(ctx context.Context, query string, args ...any) ([]*member.Member, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying members: %w", err)
	}
	defer rows.Close()

	members := make([]*member.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning member row: %w", err)
		}
		members = append(members, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}
	return members, nil
}
