package postgres

import (
	"context"
	"fmt"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

const seasonColumns = `id, organization_id, name, start_date, end_date, registration_open_date, registration_close_date,
	is_active, auto_approve_registration, max_members, registration_fee, created_at, updated_at`

func scanSeason(row scanner) (*models.Season, error) {
	var s models.Season
	err := row.Scan(
		&s.ID, &s.OrganizationID, &s.Name, &s.StartDate, &s.EndDate,
		&s.RegistrationOpenDate, &s.RegistrationCloseDate,
		&s.IsActive, &s.AutoApproveRegistration, &s.MaxMembers, &s.RegistrationFee,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repos) CreateSeason(ctx context.Context, s *models.Season) error {
	query := `
		INSERT INTO seasons (organization_id, name, start_date, end_date, registration_open_date,
			registration_close_date, is_active, auto_approve_registration, max_members, registration_fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	err := r.q.QueryRowContext(ctx, query,
		s.OrganizationID, s.Name, s.StartDate, s.EndDate, s.RegistrationOpenDate,
		s.RegistrationCloseDate, s.IsActive, s.AutoApproveRegistration, s.MaxMembers, s.RegistrationFee,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return wrapErr("failed to create season", err)
	}
	return nil
}

func (r *repos) GetSeason(ctx context.Context, id int64) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE id = $1`
	s, err := scanSeason(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get season %d", id), err)
	}
	return s, nil
}

func (r *repos) UpdateSeason(ctx context.Context, s *models.Season) error {
	query := `
		UPDATE seasons
		SET name = $1, start_date = $2, end_date = $3, registration_open_date = $4,
			registration_close_date = $5, is_active = $6, auto_approve_registration = $7,
			max_members = $8, registration_fee = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at
	`
	err := r.q.QueryRowContext(ctx, query,
		s.Name, s.StartDate, s.EndDate, s.RegistrationOpenDate, s.RegistrationCloseDate,
		s.IsActive, s.AutoApproveRegistration, s.MaxMembers, s.RegistrationFee, s.ID,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to update season %d", s.ID), err)
	}
	return nil
}

func (r *repos) ListSeasons(ctx context.Context, orgID int64) ([]*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE organization_id = $1 ORDER BY start_date DESC`
	return r.querySeasons(ctx, query, orgID)
}

func (r *repos) ActiveSeason(ctx context.Context, orgID int64) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons
		WHERE organization_id = $1 AND is_active
		ORDER BY start_date DESC
		LIMIT 1`
	s, err := scanSeason(r.q.QueryRowContext(ctx, query, orgID))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get active season for organization %d", orgID), err)
	}
	return s, nil
}

func (r *repos) ListActiveSeasons(ctx context.Context) ([]*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE is_active ORDER BY id`
	return r.querySeasons(ctx, query)
}

func (r *repos) LockSeason(ctx context.Context, id int64) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE id = $1 FOR UPDATE`
	s, err := scanSeason(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to lock season %d", id), err)
	}
	return s, nil
}

func (r *repos) querySeasons(ctx context.Context, query string, args ...any) ([]*models.Season, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("failed to list seasons", err)
	}
	defer rows.Close()

	var out []*models.Season
	for rows.Next() {
		s, err := scanSeason(rows)
		if err != nil {
			return nil, wrapErr("failed to scan season", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("failed to list seasons", err)
	}
	return out, nil
}
