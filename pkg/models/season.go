package models

import (
	"errors"
	"time"
)

// Season is a time-boxed registration period owned by one organization
type Season struct {
	ID                      int64     `json:"id"`
	OrganizationID          int64     `json:"organization_id"`
	Name                    string    `json:"name"`
	StartDate               time.Time `json:"start_date"`
	EndDate                 time.Time `json:"end_date"`
	RegistrationOpenDate    time.Time `json:"registration_open_date"`
	RegistrationCloseDate   time.Time `json:"registration_close_date"`
	IsActive                bool      `json:"is_active"`
	AutoApproveRegistration bool      `json:"auto_approve_registration"`
	MaxMembers              *int      `json:"max_members,omitempty"`
	// RegistrationFee is in cents
	RegistrationFee *int64    `json:"registration_fee,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks the date ordering and capacity
func (s *Season) Validate() error {
	if s.Name == "" {
		return errors.New("season name is required")
	}
	if !s.StartDate.Before(s.EndDate) {
		return errors.New("season start date must be before end date")
	}
	if s.RegistrationCloseDate.Before(s.RegistrationOpenDate) {
		return errors.New("registration open date must not be after close date")
	}
	if s.MaxMembers != nil && *s.MaxMembers < 0 {
		return errors.New("max members must not be negative")
	}
	if s.RegistrationFee != nil && *s.RegistrationFee < 0 {
		return errors.New("registration fee must not be negative")
	}
	return nil
}

// RegistrationOpen reports whether now falls inside the inclusive window
func (s *Season) RegistrationOpen(now time.Time) bool {
	return !now.Before(s.RegistrationOpenDate) && !now.After(s.RegistrationCloseDate)
}

// HasFee reports whether registering costs anything
func (s *Season) HasFee() bool {
	return s.RegistrationFee != nil && *s.RegistrationFee > 0
}

// Clone returns a deep copy of the season
func (s *Season) Clone() *Season {
	if s == nil {
		return nil
	}
	c := *s
	if s.MaxMembers != nil {
		v := *s.MaxMembers
		c.MaxMembers = &v
	}
	if s.RegistrationFee != nil {
		v := *s.RegistrationFee
		c.RegistrationFee = &v
	}
	return &c
}

// RegistrationStatus is the state of a season registration
type RegistrationStatus string

const (
	RegistrationPending    RegistrationStatus = "pending"
	RegistrationApproved   RegistrationStatus = "approved"
	RegistrationRejected   RegistrationStatus = "rejected"
	RegistrationWaitlisted RegistrationStatus = "waitlisted"
)

// Terminal reports whether no normal transition leaves s
func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationApproved || s == RegistrationRejected
}

// PaymentStatus tracks the registration fee
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentWaived   PaymentStatus = "waived"
	PaymentRefunded PaymentStatus = "refunded"
)

// Valid reports whether p is a known payment status
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentWaived, PaymentRefunded:
		return true
	}
	return false
}

// SeasonMembership is a registration of a membership for a season. Rows are
// never deleted; when the membership is removed MembershipID is cleared and
// UserID keeps the record attributable.
type SeasonMembership struct {
	ID                 int64              `json:"id"`
	MembershipID       *int64             `json:"membership_id,omitempty"`
	UserID             int64              `json:"user_id"`
	SeasonID           int64              `json:"season_id"`
	RegistrationStatus RegistrationStatus `json:"registration_status"`
	RegistrationDate   time.Time          `json:"registration_date"`
	ApprovedDate       *time.Time         `json:"approved_date,omitempty"`
	ApprovedBy         *int64             `json:"approved_by,omitempty"`
	PaymentStatus      PaymentStatus      `json:"payment_status"`
	Notes              string             `json:"notes,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Clone returns a deep copy of the registration
func (sm *SeasonMembership) Clone() *SeasonMembership {
	if sm == nil {
		return nil
	}
	c := *sm
	if sm.MembershipID != nil {
		v := *sm.MembershipID
		c.MembershipID = &v
	}
	if sm.ApprovedDate != nil {
		v := *sm.ApprovedDate
		c.ApprovedDate = &v
	}
	if sm.ApprovedBy != nil {
		v := *sm.ApprovedBy
		c.ApprovedBy = &v
	}
	return &c
}
