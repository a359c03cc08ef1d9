// Package models defines the persisted entities shared by the league
// packages: organizations and their typed profiles, memberships, member
// roles, seasons and season registrations.
//
// The types carry no behaviour beyond value validation. Hierarchy rules live
// in package orgs, authorization in package rbac and state transitions in
// packages membership and seasons.
package models
