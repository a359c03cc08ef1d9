// Package seasons runs season registration and keeps membership status in
// step with the active season.
//
// # Registration states
//
//	(new) -> pending | approved | waitlisted
//	pending, waitlisted -> approved | rejected
//
// approved and rejected are terminal for normal transitions. Cancel is a
// privileged override that moves any registration to rejected. Nothing is
// promoted from the waitlist automatically; staff approve waitlisted entries
// explicitly once capacity frees up.
//
// Every operation that reads the approved count locks the season row first,
// so concurrent requests for the last seat serialize and the loser is
// waitlisted (RequestRegistration) or gets CapacityExceeded (Approve).
//
// # Status sync
//
// Syncer marks memberships active or inactive depending on whether they hold
// an approved registration in their organization's active season. Owners,
// admins and prospects are left alone.
package seasons
