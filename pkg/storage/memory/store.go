// Package memory implements storage.Store in process memory.
//
// All state sits behind one mutex. InTx holds the mutex for the whole
// function, works on a copy of the state and swaps the copy in on success, so
// transactions are fully serialized and a failed function leaves no trace.
// Repositories obtained from a Store outside InTx lock per call. Calling Store
// methods from inside an InTx function deadlocks; use the repositories passed
// to the function instead.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

type state struct {
	nextID        int64
	orgs          map[int64]*models.Organization
	memberships   map[int64]*models.Membership
	roles         map[int64]*models.MemberRole
	seasons       map[int64]*models.Season
	registrations map[int64]*models.SeasonMembership
}

func newState() *state {
	return &state{
		orgs:          make(map[int64]*models.Organization),
		memberships:   make(map[int64]*models.Membership),
		roles:         make(map[int64]*models.MemberRole),
		seasons:       make(map[int64]*models.Season),
		registrations: make(map[int64]*models.SeasonMembership),
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *state) clone() *state {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.orgs {
		c.orgs[k] = v.Clone()
	}
	for k, v := range s.memberships {
		c.memberships[k] = v.Clone()
	}
	for k, v := range s.roles {
		c.roles[k] = v.Clone()
	}
	for k, v := range s.seasons {
		c.seasons[k] = v.Clone()
	}
	for k, v := range s.registrations {
		c.registrations[k] = v.Clone()
	}
	return c
}

// deleteOrganization removes id and everything that references it, children
// included, the way the postgres foreign keys cascade
func (s *state) deleteOrganization(id int64) {
	for cid, o := range s.orgs {
		if o.ParentID != nil && *o.ParentID == id {
			s.deleteOrganization(cid)
		}
	}
	for mid, m := range s.memberships {
		if m.OrganizationID != id {
			continue
		}
		for rid, role := range s.roles {
			if role.MembershipID == mid {
				delete(s.roles, rid)
			}
		}
		for _, sm := range s.registrations {
			if sm.MembershipID != nil && *sm.MembershipID == mid {
				sm.MembershipID = nil
			}
		}
		delete(s.memberships, mid)
	}
	for sid, season := range s.seasons {
		if season.OrganizationID != id {
			continue
		}
		for rid, sm := range s.registrations {
			if sm.SeasonID == sid {
				delete(s.registrations, rid)
			}
		}
		delete(s.seasons, sid)
	}
	delete(s.orgs, id)
}

// Store is an in-memory storage.Store
type Store struct {
	mu     sync.Mutex
	state  *state
	now    func() time.Time
	closed bool
}

// New creates an empty store
func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) repos() *repos {
	return &repos{
		now: s.now,
		st: func() (*state, func()) {
			s.mu.Lock()
			return s.state, s.mu.Unlock
		},
	}
}

func (s *Store) Organizations() storage.OrganizationRepository { return s.repos() }
func (s *Store) Memberships() storage.MembershipRepository     { return s.repos() }
func (s *Store) Roles() storage.RoleRepository                 { return s.repos() }
func (s *Store) Seasons() storage.SeasonRepository             { return s.repos() }
func (s *Store) Registrations() storage.RegistrationRepository { return s.repos() }

// InTx runs fn against a private copy of the state and commits it on success
func (s *Store) InTx(ctx context.Context, fn storage.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	r := &repos{
		now: s.now,
		st:  func() (*state, func()) { return work, func() {} },
	}
	if err := fn(ctx, r); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// HealthCheck always succeeds for an open store
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Close marks the store closed
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
