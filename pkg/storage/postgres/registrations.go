package postgres

import (
	"context"
	"fmt"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

const registrationColumns = `id, membership_id, user_id, season_id, registration_status, registration_date,
	approved_date, approved_by, payment_status, notes, updated_at`

func scanRegistration(row scanner) (*models.SeasonMembership, error) {
	var sm models.SeasonMembership
	err := row.Scan(
		&sm.ID, &sm.MembershipID, &sm.UserID, &sm.SeasonID, &sm.RegistrationStatus, &sm.RegistrationDate,
		&sm.ApprovedDate, &sm.ApprovedBy, &sm.PaymentStatus, &sm.Notes, &sm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sm, nil
}

func (r *repos) CreateRegistration(ctx context.Context, sm *models.SeasonMembership) error {
	query := `
		INSERT INTO season_memberships (membership_id, user_id, season_id, registration_status,
			registration_date, approved_date, approved_by, payment_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, updated_at
	`
	err := r.q.QueryRowContext(ctx, query,
		sm.MembershipID, sm.UserID, sm.SeasonID, sm.RegistrationStatus,
		sm.RegistrationDate, sm.ApprovedDate, sm.ApprovedBy, sm.PaymentStatus, sm.Notes,
	).Scan(&sm.ID, &sm.UpdatedAt)
	if err != nil {
		return wrapErr("failed to create registration", err)
	}
	return nil
}

func (r *repos) GetRegistration(ctx context.Context, id int64) (*models.SeasonMembership, error) {
	query := `SELECT ` + registrationColumns + ` FROM season_memberships WHERE id = $1`
	sm, err := scanRegistration(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get registration %d", id), err)
	}
	return sm, nil
}

func (r *repos) UpdateRegistration(ctx context.Context, sm *models.SeasonMembership) error {
	query := `
		UPDATE season_memberships
		SET registration_status = $1, approved_date = $2, approved_by = $3,
			payment_status = $4, notes = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	err := r.q.QueryRowContext(ctx, query,
		sm.RegistrationStatus, sm.ApprovedDate, sm.ApprovedBy, sm.PaymentStatus, sm.Notes, sm.ID,
	).Scan(&sm.UpdatedAt)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to update registration %d", sm.ID), err)
	}
	return nil
}

func (r *repos) FindOpenRegistration(ctx context.Context, userID, seasonID int64) (*models.SeasonMembership, error) {
	query := `SELECT ` + registrationColumns + ` FROM season_memberships
		WHERE user_id = $1 AND season_id = $2 AND registration_status <> 'rejected'
		ORDER BY id LIMIT 1`
	sm, err := scanRegistration(r.q.QueryRowContext(ctx, query, userID, seasonID))
	if err != nil {
		return nil, wrapErr("failed to find registration", err)
	}
	return sm, nil
}

func (r *repos) CountRegistrations(ctx context.Context, seasonID int64, status models.RegistrationStatus) (int, error) {
	query := `SELECT COUNT(*) FROM season_memberships WHERE season_id = $1 AND registration_status = $2`
	var n int
	if err := r.q.QueryRowContext(ctx, query, seasonID, status).Scan(&n); err != nil {
		return 0, wrapErr("failed to count registrations", err)
	}
	return n, nil
}

func (r *repos) ListRegistrations(ctx context.Context, seasonID int64) ([]*models.SeasonMembership, error) {
	query := `SELECT ` + registrationColumns + ` FROM season_memberships WHERE season_id = $1 ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, wrapErr("failed to list registrations", err)
	}
	defer rows.Close()

	var out []*models.SeasonMembership
	for rows.Next() {
		sm, err := scanRegistration(rows)
		if err != nil {
			return nil, wrapErr("failed to scan registration", err)
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("failed to list registrations", err)
	}
	return out, nil
}

func (r *repos) HasRegistration(ctx context.Context, membershipID, seasonID int64, status models.RegistrationStatus) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM season_memberships
		WHERE membership_id = $1 AND season_id = $2 AND registration_status = $3
	)`
	var ok bool
	if err := r.q.QueryRowContext(ctx, query, membershipID, seasonID, status).Scan(&ok); err != nil {
		return false, wrapErr("failed to check registration", err)
	}
	return ok, nil
}

func (r *repos) DetachMembership(ctx context.Context, membershipID int64) error {
	query := `UPDATE season_memberships SET membership_id = NULL, updated_at = NOW() WHERE membership_id = $1`
	if _, err := r.q.ExecContext(ctx, query, membershipID); err != nil {
		return wrapErr("failed to detach registrations", err)
	}
	return nil
}
