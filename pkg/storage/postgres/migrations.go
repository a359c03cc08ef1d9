package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema in application order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					type VARCHAR(20) NOT NULL CHECK (type IN ('league', 'team', 'squad', 'club', 'practice_group')),
					parent_id BIGINT REFERENCES organizations(id) ON DELETE CASCADE,
					name VARCHAR(200) NOT NULL,
					slug VARCHAR(200) NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					membership_open BOOLEAN NOT NULL DEFAULT TRUE,
					profile JSONB,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_organizations_type ON organizations(type);
				CREATE INDEX IF NOT EXISTS idx_organizations_parent_id ON organizations(parent_id);
			`,
		},
		{
			Version:     2,
			Description: "Create memberships and member_roles tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS memberships (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					permission_level VARCHAR(20) NOT NULL CHECK (permission_level IN ('owner', 'admin', 'manager', 'member')),
					status VARCHAR(20) NOT NULL CHECK (status IN ('active', 'inactive', 'prospect', 'expired', 'pending_renewal')),
					joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, organization_id)
				);

				CREATE INDEX IF NOT EXISTS idx_memberships_org_level ON memberships(organization_id, permission_level);
				CREATE INDEX IF NOT EXISTS idx_memberships_user_id ON memberships(user_id);

				CREATE TABLE IF NOT EXISTS member_roles (
					id BIGSERIAL PRIMARY KEY,
					membership_id BIGINT NOT NULL REFERENCES memberships(id) ON DELETE CASCADE,
					role_type VARCHAR(30) NOT NULL,
					is_primary BOOLEAN NOT NULL DEFAULT FALSE,
					notes TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(membership_id, role_type)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create seasons and season_memberships tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS seasons (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name VARCHAR(200) NOT NULL,
					start_date TIMESTAMPTZ NOT NULL,
					end_date TIMESTAMPTZ NOT NULL,
					registration_open_date TIMESTAMPTZ NOT NULL,
					registration_close_date TIMESTAMPTZ NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT FALSE,
					auto_approve_registration BOOLEAN NOT NULL DEFAULT FALSE,
					max_members INT,
					registration_fee BIGINT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CHECK (start_date < end_date),
					CHECK (registration_open_date <= registration_close_date)
				);

				CREATE INDEX IF NOT EXISTS idx_seasons_org_active ON seasons(organization_id, is_active);

				CREATE TABLE IF NOT EXISTS season_memberships (
					id BIGSERIAL PRIMARY KEY,
					membership_id BIGINT REFERENCES memberships(id) ON DELETE SET NULL,
					user_id BIGINT NOT NULL,
					season_id BIGINT NOT NULL REFERENCES seasons(id) ON DELETE CASCADE,
					registration_status VARCHAR(20) NOT NULL CHECK (registration_status IN ('pending', 'approved', 'rejected', 'waitlisted')),
					registration_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					approved_date TIMESTAMPTZ,
					approved_by BIGINT,
					payment_status VARCHAR(20) NOT NULL CHECK (payment_status IN ('pending', 'paid', 'waived', 'refunded')),
					notes TEXT NOT NULL DEFAULT '',
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_season_memberships_open
					ON season_memberships(membership_id, season_id)
					WHERE registration_status <> 'rejected' AND membership_id IS NOT NULL;
				CREATE INDEX IF NOT EXISTS idx_season_memberships_season_status
					ON season_memberships(season_id, registration_status);
			`,
		},
		{
			Version:     4,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id BIGSERIAL PRIMARY KEY,
					event_id UUID NOT NULL UNIQUE,
					timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					event_type VARCHAR(64) NOT NULL,
					actor_id BIGINT,
					organization_id BIGINT,
					subject_type VARCHAR(32) NOT NULL,
					subject_id BIGINT NOT NULL,
					from_state VARCHAR(32) NOT NULL DEFAULT '',
					to_state VARCHAR(32) NOT NULL DEFAULT '',
					message TEXT NOT NULL DEFAULT '',
					metadata JSONB
				);

				CREATE INDEX IF NOT EXISTS idx_audit_events_org_time ON audit_events(organization_id, timestamp DESC);
				CREATE INDEX IF NOT EXISTS idx_audit_events_subject ON audit_events(subject_type, subject_id);
			`,
		},
	}
}

// Migrate applies every migration not yet recorded in schema_migrations
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
	}

	return nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Description, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}
