package seasons

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

var tracer = observability.Tracer("seasons")

// Registrar runs season and registration operations. Transactions go
// through the membership manager so audit events and cache invalidations
// follow the same commit rules.
type Registrar struct {
	mgr     *membership.Manager
	store   storage.Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRegistrar creates a registrar. logger and metrics may be nil.
func NewRegistrar(mgr *membership.Manager, store storage.Store, logger *observability.Logger, metrics *observability.Metrics) *Registrar {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Registrar{mgr: mgr, store: store, logger: logger, metrics: metrics}
}

func (r *Registrar) do(ctx context.Context, op string, actorID int64, fields map[string]any, fn membership.TxFunc) error {
	if actorID != 0 {
		ctx = observability.WithActorID(ctx, actorID)
	}
	ctx, span := tracer.Start(ctx, "seasons."+op, trace.WithAttributes(
		attribute.String("seasons.operation", op),
		attribute.Int64("actor.id", actorID),
	))
	err := r.mgr.Run(ctx, actorID, fn)
	observability.EndSpan(span, err)

	logger := observability.FromContextOr(ctx, r.logger).WithFields(fields).WithField("operation", op)
	switch {
	case err == nil:
		logger.Info("registration operation completed")
	case isRejection(err):
		r.metrics.RecordRegistration("rejected_" + op)
		logger.WithError(err).Warn("registration operation rejected")
	default:
		r.metrics.RecordRegistration("error")
		logger.WithError(err).Error("registration operation failed")
	}
	return err
}

func isRejection(err error) bool {
	return IsRegistrationError(err) ||
		rbac.IsUnauthorized(err) ||
		storage.IsNotFound(err) ||
		errors.Is(err, ErrInvalidSeason) ||
		errors.Is(err, membership.ErrInvalidInput)
}

// RequestRegistration registers a membership for a season. The actor must be
// the member or hold manage_members on the season's organization. The new
// registration is waitlisted when the season is full, approved when the
// season auto-approves, and pending otherwise.
func (r *Registrar) RequestRegistration(ctx context.Context, actorID, membershipID, seasonID int64) (*models.SeasonMembership, error) {
	var created *models.SeasonMembership
	fields := map[string]any{"membership_id": membershipID, "season_id": seasonID}
	err := r.do(ctx, "request", actorID, fields, func(ctx context.Context, tx *membership.Tx) error {
		repos := tx.Repositories()
		season, err := repos.Seasons().LockSeason(ctx, seasonID)
		if err != nil {
			return fmt.Errorf("failed to lock season: %w", err)
		}
		mem, err := tx.GetMembership(ctx, membershipID)
		if err != nil {
			return err
		}
		if mem.UserID != tx.ActorID() {
			if err := tx.Authorize(ctx, season.OrganizationID, rbac.ActionManageMembers); err != nil {
				return err
			}
		}
		if mem.OrganizationID != season.OrganizationID || mem.Status == models.MembershipProspect {
			return &RegistrationError{Kind: NotEligible, SeasonID: seasonID, MembershipID: membershipID}
		}

		now := tx.Now()
		if !season.RegistrationOpen(now) {
			return &RegistrationError{Kind: RegistrationWindowClosed, SeasonID: seasonID, MembershipID: membershipID}
		}
		// a registration detached by leaving still holds the user's place
		if _, err := repos.Registrations().FindOpenRegistration(ctx, mem.UserID, seasonID); err == nil {
			return &RegistrationError{Kind: AlreadyRegistered, SeasonID: seasonID, MembershipID: membershipID}
		} else if !storage.IsNotFound(err) {
			return fmt.Errorf("failed to check existing registration: %w", err)
		}

		event := eventSubmit
		full, err := seasonFull(ctx, repos, season)
		if err != nil {
			return err
		}
		switch {
		case full:
			event = eventWaitlist
		case season.AutoApproveRegistration:
			event = eventAutoApprove
		}

		sm := &models.SeasonMembership{
			MembershipID:     &mem.ID,
			UserID:           mem.UserID,
			SeasonID:         seasonID,
			RegistrationDate: now,
			PaymentStatus:    models.PaymentPending,
		}
		if !season.HasFee() {
			sm.PaymentStatus = models.PaymentWaived
		}
		if _, err := newRegistrationFSM(sm).fire(ctx, event); err != nil {
			return err
		}
		if sm.RegistrationStatus == models.RegistrationApproved {
			sm.ApprovedDate = &now
		}

		if err := repos.Registrations().CreateRegistration(ctx, sm); err != nil {
			if storage.IsDuplicate(err) {
				return &RegistrationError{Kind: AlreadyRegistered, SeasonID: seasonID, MembershipID: membershipID}
			}
			return fmt.Errorf("failed to create registration: %w", err)
		}
		tx.Record(tx.NewEvent(audit.EventRegistrationRequested, season.OrganizationID, audit.SubjectRegistration, sm.ID).
			Transition("", string(sm.RegistrationStatus)).
			WithMetadata("season_id", seasonID).
			WithMetadata("membership_id", membershipID).
			WithMetadata("user_id", mem.UserID))
		created = sm
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.metrics.RecordRegistration(string(created.RegistrationStatus))
	return created, nil
}

// seasonFull reports whether the approved count has reached max_members
func seasonFull(ctx context.Context, repos storage.Repositories, season *models.Season) (bool, error) {
	if season.MaxMembers == nil {
		return false, nil
	}
	n, err := repos.Registrations().CountRegistrations(ctx, season.ID, models.RegistrationApproved)
	if err != nil {
		return false, fmt.Errorf("failed to count approved registrations: %w", err)
	}
	return n >= *season.MaxMembers, nil
}

// lockRegistration loads a registration with its season row locked. The
// registration is re-read after the lock so its status is current.
func lockRegistration(ctx context.Context, repos storage.Repositories, id int64) (*models.SeasonMembership, *models.Season, error) {
	sm, err := repos.Registrations().GetRegistration(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get registration: %w", err)
	}
	season, err := repos.Seasons().LockSeason(ctx, sm.SeasonID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock season: %w", err)
	}
	if sm, err = repos.Registrations().GetRegistration(ctx, id); err != nil {
		return nil, nil, fmt.Errorf("failed to reload registration: %w", err)
	}
	return sm, season, nil
}

// Approve moves a pending or waitlisted registration to approved. The actor
// needs manage_members on the season's organization. A full season fails
// with CapacityExceeded.
func (r *Registrar) Approve(ctx context.Context, actorID, registrationID int64) (*models.SeasonMembership, error) {
	var updated *models.SeasonMembership
	fields := map[string]any{"registration_id": registrationID}
	err := r.do(ctx, "approve", actorID, fields, func(ctx context.Context, tx *membership.Tx) error {
		repos := tx.Repositories()
		sm, season, err := lockRegistration(ctx, repos, registrationID)
		if err != nil {
			return err
		}
		if err := tx.Authorize(ctx, season.OrganizationID, rbac.ActionManageMembers); err != nil {
			return err
		}
		machine := newRegistrationFSM(sm)
		if !machine.fsm.Can(eventApprove) {
			return &RegistrationError{Kind: InvalidTransition, SeasonID: season.ID, MembershipID: derefID(sm.MembershipID),
				From: string(sm.RegistrationStatus), Event: eventApprove}
		}
		full, err := seasonFull(ctx, repos, season)
		if err != nil {
			return err
		}
		if full {
			return &RegistrationError{Kind: CapacityExceeded, SeasonID: season.ID, MembershipID: derefID(sm.MembershipID)}
		}

		from := sm.RegistrationStatus
		if _, err := machine.fire(ctx, eventApprove); err != nil {
			return err
		}
		now, actor := tx.Now(), tx.ActorID()
		sm.ApprovedDate = &now
		sm.ApprovedBy = &actor
		if err := repos.Registrations().UpdateRegistration(ctx, sm); err != nil {
			return fmt.Errorf("failed to update registration: %w", err)
		}
		tx.Record(tx.NewEvent(audit.EventRegistrationApproved, season.OrganizationID, audit.SubjectRegistration, sm.ID).
			Transition(string(from), string(sm.RegistrationStatus)).
			WithMetadata("season_id", season.ID).
			WithMetadata("user_id", sm.UserID))
		updated = sm
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.metrics.RecordRegistration(string(models.RegistrationApproved))
	return updated, nil
}

// Reject moves a pending or waitlisted registration to rejected. The actor
// needs manage_members on the season's organization.
func (r *Registrar) Reject(ctx context.Context, actorID, registrationID int64) (*models.SeasonMembership, error) {
	var updated *models.SeasonMembership
	fields := map[string]any{"registration_id": registrationID}
	err := r.do(ctx, "reject", actorID, fields, func(ctx context.Context, tx *membership.Tx) error {
		repos := tx.Repositories()
		sm, season, err := lockRegistration(ctx, repos, registrationID)
		if err != nil {
			return err
		}
		if err := tx.Authorize(ctx, season.OrganizationID, rbac.ActionManageMembers); err != nil {
			return err
		}
		from := sm.RegistrationStatus
		if _, err := newRegistrationFSM(sm).fire(ctx, eventReject); err != nil {
			return err
		}
		actor := tx.ActorID()
		sm.ApprovedBy = &actor
		if err := repos.Registrations().UpdateRegistration(ctx, sm); err != nil {
			return fmt.Errorf("failed to update registration: %w", err)
		}
		tx.Record(tx.NewEvent(audit.EventRegistrationRejected, season.OrganizationID, audit.SubjectRegistration, sm.ID).
			Transition(string(from), string(sm.RegistrationStatus)).
			WithMetadata("season_id", season.ID).
			WithMetadata("user_id", sm.UserID))
		updated = sm
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.metrics.RecordRegistration(string(models.RegistrationRejected))
	return updated, nil
}

// Cancel moves a registration in any state to rejected. The registrant may
// cancel their own registration; anyone else needs admin or owner on the
// season's organization. Cancelling frees capacity but promotes nobody.
func (r *Registrar) Cancel(ctx context.Context, actorID, registrationID int64) (*models.SeasonMembership, error) {
	var updated *models.SeasonMembership
	fields := map[string]any{"registration_id": registrationID}
	err := r.do(ctx, "cancel", actorID, fields, func(ctx context.Context, tx *membership.Tx) error {
		repos := tx.Repositories()
		sm, season, err := lockRegistration(ctx, repos, registrationID)
		if err != nil {
			return err
		}
		if sm.UserID != tx.ActorID() {
			if err := tx.RequireLevel(ctx, season.OrganizationID, models.PermissionAdmin); err != nil {
				return err
			}
		}
		from := sm.RegistrationStatus
		changed, err := newRegistrationFSM(sm).fire(ctx, eventCancel)
		if err != nil {
			return err
		}
		updated = sm
		if !changed {
			return nil
		}
		if err := repos.Registrations().UpdateRegistration(ctx, sm); err != nil {
			return fmt.Errorf("failed to update registration: %w", err)
		}
		tx.Record(tx.NewEvent(audit.EventRegistrationCancelled, season.OrganizationID, audit.SubjectRegistration, sm.ID).
			Transition(string(from), string(sm.RegistrationStatus)).
			WithMetadata("season_id", season.ID).
			WithMetadata("user_id", sm.UserID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.metrics.RecordRegistration("cancelled")
	return updated, nil
}

// MarkPayment sets the payment status of a registration. The actor needs
// manage_finances on the season's organization.
func (r *Registrar) MarkPayment(ctx context.Context, actorID, registrationID int64, status models.PaymentStatus) (*models.SeasonMembership, error) {
	var updated *models.SeasonMembership
	fields := map[string]any{"registration_id": registrationID, "payment_status": string(status)}
	err := r.do(ctx, "mark_payment", actorID, fields, func(ctx context.Context, tx *membership.Tx) error {
		if !status.Valid() {
			return fmt.Errorf("%w: unknown payment status %q", membership.ErrInvalidInput, status)
		}
		repos := tx.Repositories()
		sm, err := repos.Registrations().GetRegistration(ctx, registrationID)
		if err != nil {
			return fmt.Errorf("failed to get registration: %w", err)
		}
		season, err := repos.Seasons().GetSeason(ctx, sm.SeasonID)
		if err != nil {
			return fmt.Errorf("failed to get season: %w", err)
		}
		if err := tx.Authorize(ctx, season.OrganizationID, rbac.ActionManageFinances); err != nil {
			return err
		}
		updated = sm
		if sm.PaymentStatus == status {
			return nil
		}
		from := sm.PaymentStatus
		sm.PaymentStatus = status
		if err := repos.Registrations().UpdateRegistration(ctx, sm); err != nil {
			return fmt.Errorf("failed to update registration: %w", err)
		}
		tx.Record(tx.NewEvent(audit.EventRegistrationPayment, season.OrganizationID, audit.SubjectRegistration, sm.ID).
			Transition(string(from), string(status)).
			WithMetadata("season_id", season.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetRegistration loads a registration by id
func (r *Registrar) GetRegistration(ctx context.Context, id int64) (*models.SeasonMembership, error) {
	sm, err := r.store.Registrations().GetRegistration(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return sm, nil
}

// ListRegistrations lists the registrations of a season
func (r *Registrar) ListRegistrations(ctx context.Context, seasonID int64) ([]*models.SeasonMembership, error) {
	regs, err := r.store.Registrations().ListRegistrations(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}
