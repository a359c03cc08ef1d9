// Package importer applies bulk membership changes to one organization in a
// single transaction. Parsing the source file is the caller's job; the
// importer receives rows that are already split into fields.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
	"github.com/vincentdavis/league-gotta-bike/pkg/orgs"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

// DefaultMaxErrors is how many row errors a report keeps
const DefaultMaxErrors = 20

// ErrImportFailed is returned when at least one row was rejected. Nothing
// from the import is kept.
var ErrImportFailed = errors.New("import failed")

// Row is one membership line
type Row struct {
	// Line is the 1-based source line, used only for reporting
	Line            int      `json:"line"`
	UserID          int64    `json:"user_id"`
	PermissionLevel string   `json:"permission_level"`
	Status          string   `json:"status,omitempty"`
	Roles           []string `json:"roles,omitempty"`
	PrimaryRole     string   `json:"primary_role,omitempty"`
}

// RowError describes a rejected row
type RowError struct {
	Line    int    `json:"line"`
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func (e *RowError) Unwrap() error { return e.Err }

// Report summarizes an import. Counts describe what would have been applied;
// when Errors is non-empty nothing was applied.
type Report struct {
	Rows       int         `json:"rows"`
	Created    int         `json:"created"`
	Updated    int         `json:"updated"`
	Unchanged  int         `json:"unchanged"`
	RolesAdded int         `json:"roles_added"`
	Failed     int         `json:"failed"`
	Errors     []*RowError `json:"errors,omitempty"`
	// Truncated is set when more rows failed than Errors holds
	Truncated bool `json:"truncated"`
}

// Importer applies rows through the membership manager
type Importer struct {
	mgr       *membership.Manager
	maxErrors int
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// New creates an importer. maxErrors <= 0 uses DefaultMaxErrors.
func New(mgr *membership.Manager, maxErrors int, logger *observability.Logger, metrics *observability.Metrics) *Importer {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Importer{mgr: mgr, maxErrors: maxErrors, logger: logger, metrics: metrics}
}

// Import creates or updates one membership per row in orgID. The actor needs
// manage_members, plus assign_permissions when any row grants admin or
// owner. Every row is checked even after a failure so the report lists up
// to maxErrors problems; any failure rolls the whole import back and
// returns ErrImportFailed together with the report.
func (im *Importer) Import(ctx context.Context, actorID, orgID int64, rows []Row) (*Report, error) {
	var report *Report
	err := im.mgr.Run(ctx, actorID, func(ctx context.Context, tx *membership.Tx) error {
		report = &Report{Rows: len(rows)}
		parsedRows := make([]*parsed, len(rows))
		parseErrs := make([]error, len(rows))
		for i, row := range rows {
			parsedRows[i], parseErrs[i] = parseRow(row)
		}
		if err := authorize(ctx, tx, orgID, parsedRows); err != nil {
			return err
		}
		for i, row := range rows {
			err := parseErrs[i]
			if err == nil {
				err = im.applyRow(ctx, tx, orgID, row, parsedRows[i], report)
			}
			if err == nil {
				continue
			}
			if !isRowError(err) {
				return fmt.Errorf("line %d: %w", row.Line, err)
			}
			report.Failed++
			if len(report.Errors) < im.maxErrors {
				report.Errors = append(report.Errors, &RowError{Line: row.Line, UserID: row.UserID, Message: err.Error(), Err: err})
			} else {
				report.Truncated = true
			}
		}
		if report.Failed > 0 {
			return fmt.Errorf("%w: %d of %d rows rejected", ErrImportFailed, report.Failed, report.Rows)
		}
		tx.Record(tx.NewEvent(audit.EventImportCompleted, orgID, audit.SubjectOrganization, orgID).
			WithMetadata("rows", report.Rows).
			WithMetadata("created", report.Created).
			WithMetadata("updated", report.Updated).
			WithMetadata("roles_added", report.RolesAdded))
		return nil
	})

	logger := observability.FromContextOr(ctx, im.logger).WithFields(map[string]any{
		"organization_id": orgID,
		"rows":            len(rows),
	})
	switch {
	case err == nil:
		im.metrics.RecordImportRows("created", report.Created)
		im.metrics.RecordImportRows("updated", report.Updated)
		im.metrics.RecordImportRows("unchanged", report.Unchanged)
		logger.WithFields(map[string]any{"created": report.Created, "updated": report.Updated}).Info("import completed")
	case errors.Is(err, ErrImportFailed):
		im.metrics.RecordImportRows("rejected", report.Rows)
		logger.WithField("failed", report.Failed).Warn("import rejected")
	default:
		logger.WithError(err).Error("import failed")
	}

	if err != nil && !errors.Is(err, ErrImportFailed) {
		return nil, err
	}
	return report, err
}

// authorize checks manage_members, plus assign_permissions when any parsed
// row grants admin or owner
func authorize(ctx context.Context, tx *membership.Tx, orgID int64, rows []*parsed) error {
	if err := tx.Authorize(ctx, orgID, rbac.ActionManageMembers); err != nil {
		return err
	}
	for _, p := range rows {
		if p != nil && grantsAdmin(p.level) {
			return tx.Authorize(ctx, orgID, rbac.ActionAssignPermissions)
		}
	}
	return nil
}

func grantsAdmin(level models.PermissionLevel) bool {
	return level.Rank() >= models.PermissionAdmin.Rank()
}

// parsed is a validated row
type parsed struct {
	level   models.PermissionLevel
	status  models.MembershipStatus
	roles   []models.RoleType
	primary models.RoleType
}

func parseRow(row Row) (*parsed, error) {
	if row.UserID <= 0 {
		return nil, fmt.Errorf("%w: user id is required", membership.ErrInvalidInput)
	}
	level, err := models.ParsePermissionLevel(strings.ToLower(strings.TrimSpace(row.PermissionLevel)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", membership.ErrInvalidInput, err)
	}
	p := &parsed{level: level, status: models.MembershipActive}
	if s := strings.TrimSpace(row.Status); s != "" {
		if p.status, err = models.ParseMembershipStatus(strings.ToLower(s)); err != nil {
			return nil, fmt.Errorf("%w: %s", membership.ErrInvalidInput, err)
		}
	}
	for _, raw := range row.Roles {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		rt, err := models.ParseRoleType(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", membership.ErrInvalidInput, err)
		}
		p.roles = append(p.roles, rt)
	}
	if raw := strings.ToLower(strings.TrimSpace(row.PrimaryRole)); raw != "" {
		if p.primary, err = models.ParseRoleType(raw); err != nil {
			return nil, fmt.Errorf("%w: %s", membership.ErrInvalidInput, err)
		}
	}
	return p, nil
}

func (im *Importer) applyRow(ctx context.Context, tx *membership.Tx, orgID int64, row Row, p *parsed, report *Report) error {
	m, err := tx.FindMembership(ctx, row.UserID, orgID)
	switch {
	case storage.IsNotFound(err):
		if m, err = tx.CreateMembership(ctx, row.UserID, orgID, p.level, p.status); err != nil {
			return err
		}
		report.Created++
	case err != nil:
		return err
	default:
		// changing an admin or owner's level is an assign_permissions action
		if m.PermissionLevel != p.level && grantsAdmin(m.PermissionLevel) {
			if err := tx.Authorize(ctx, orgID, rbac.ActionAssignPermissions); err != nil {
				return err
			}
		}
		changed := m.PermissionLevel != p.level || m.Status != p.status
		if m, err = tx.SetPermissionLevel(ctx, m, p.level); err != nil {
			return err
		}
		if m, err = tx.SetStatus(ctx, m, p.status); err != nil {
			return err
		}
		if changed {
			report.Updated++
		} else {
			report.Unchanged++
		}
	}

	for _, rt := range p.roles {
		if _, err := tx.AddRole(ctx, m, rt, rt == p.primary); err != nil {
			return err
		}
		report.RolesAdded++
	}
	if p.primary != "" && !containsRole(p.roles, p.primary) {
		if _, err := tx.AddRole(ctx, m, p.primary, true); err != nil {
			return err
		}
		report.RolesAdded++
	}
	return nil
}

func containsRole(roles []models.RoleType, rt models.RoleType) bool {
	for _, r := range roles {
		if r == rt {
			return true
		}
	}
	return false
}

// isRowError reports whether err is a problem with the row's content, as
// opposed to a storage fault that aborts the import
func isRowError(err error) bool {
	return membership.IsMembershipError(err) ||
		errors.Is(err, membership.ErrInvalidInput) ||
		orgs.IsHierarchyViolation(err)
}
