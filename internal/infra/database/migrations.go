package database

import (
	"database/sql"
	"fmt"
)

// Migrate applies the billing schema. Statements are idempotent so the
// service can run them on every start.
func Migrate(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id BIGSERIAL PRIMARY KEY,
		member_code VARCHAR(32) NOT NULL UNIQUE,
		first_name VARCHAR(128) NOT NULL,
		last_name VARCHAR(128),
		email VARCHAR(256) NOT NULL,
		membership_type VARCHAR(16) NOT NULL DEFAULT 'regular',
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		telegram_chat_id BIGINT,
		birth_date DATE,
		anniversary_date DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS billing_periods (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(256) NOT NULL,
		description TEXT,
		period_type VARCHAR(32) NOT NULL,
		category VARCHAR(16) NOT NULL,
		amount BIGINT NOT NULL CHECK (amount >= 0),
		currency VARCHAR(8) NOT NULL DEFAULT 'INR',
		start_date DATE NOT NULL,
		due_date DATE NOT NULL,
		final_date DATE NOT NULL,
		fiscal_year VARCHAR(16) NOT NULL,
		quarter VARCHAR(4) NOT NULL DEFAULT 'N/A',
		eligibility_mode VARCHAR(16) NOT NULL DEFAULT 'active',
		include_member_ids BIGINT[] NOT NULL DEFAULT '{}',
		exclude_member_ids BIGINT[] NOT NULL DEFAULT '{}',
		membership_types VARCHAR(16)[] NOT NULL DEFAULT '{}',
		reminders_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		reminder_tiers INT[] NOT NULL DEFAULT '{7,3,1}',
		late_fee_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		late_fee_kind VARCHAR(16) NOT NULL DEFAULT 'fixed',
		late_fee_amount BIGINT NOT NULL DEFAULT 0,
		late_fee_grace_days INT NOT NULL DEFAULT 0,
		auto_generate BOOLEAN NOT NULL DEFAULT TRUE,
		generated BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		notes TEXT,
		created_by BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT period_date_order CHECK (start_date < due_date AND due_date < final_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_periods_fiscal_category ON billing_periods (fiscal_year, category)`,
	`CREATE INDEX IF NOT EXISTS idx_periods_active_due ON billing_periods (is_active, due_date)`,

	`CREATE TABLE IF NOT EXISTS obligations (
		id BIGSERIAL PRIMARY KEY,
		member_id BIGINT NOT NULL REFERENCES members(id),
		period_id BIGINT REFERENCES billing_periods(id),
		obligation_type VARCHAR(32) NOT NULL,
		category VARCHAR(16) NOT NULL DEFAULT 'one_time',
		amount BIGINT NOT NULL CHECK (amount >= 0),
		currency VARCHAR(8) NOT NULL DEFAULT 'INR',
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		due_date DATE NOT NULL,
		paid_at TIMESTAMPTZ,
		gateway_order_ref VARCHAR(128),
		gateway_settlement_ref VARCHAR(128),
		gateway_signature VARCHAR(256),
		receipt_number VARCHAR(32),
		fiscal_year VARCHAR(16) NOT NULL DEFAULT '',
		description TEXT,
		reminders_sent INT NOT NULL DEFAULT 0,
		last_reminder_at TIMESTAMPTZ,
		processed_by BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// The generation idempotency key. Partial: ad-hoc obligations carry no period.
	`CREATE UNIQUE INDEX IF NOT EXISTS obligation_member_period_type_unique
		ON obligations (member_id, period_id, obligation_type) WHERE period_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_obligations_member_status ON obligations (member_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_obligations_status_due ON obligations (status, due_date)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS obligation_order_ref_unique
		ON obligations (gateway_order_ref) WHERE gateway_order_ref IS NOT NULL`,

	// Receipt numbering source. The upsert on (year) is the atomicity point.
	`CREATE TABLE IF NOT EXISTS receipt_counters (
		year INT PRIMARY KEY,
		last_seq INT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		recipient_id BIGINT NOT NULL REFERENCES members(id),
		notification_type VARCHAR(32) NOT NULL,
		title VARCHAR(256) NOT NULL,
		message TEXT NOT NULL,
		priority VARCHAR(16) NOT NULL DEFAULT 'medium',
		channels VARCHAR(16)[] NOT NULL DEFAULT '{in_app}',
		delivery JSONB NOT NULL DEFAULT '{}',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		read_at TIMESTAMPTZ,
		related_kind VARCHAR(32),
		related_id BIGINT,
		action_url VARCHAR(512),
		action_text VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient_read ON notifications (recipient_id, is_read)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient_created ON notifications (recipient_id, created_at DESC)`,
}
