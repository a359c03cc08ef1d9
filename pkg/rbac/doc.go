// Package rbac resolves a user's permission level on an organization and
// decides which actions that level allows.
//
// # Levels
//
// Every membership carries exactly one level: owner, admin, manager or member.
// Levels are not inherited through the organization tree. An owner of a league
// has no level on the league's teams unless they hold a membership there too.
// Only active memberships confer a level; a user without one resolves to
// NotAMember, which allows nothing.
//
// # Actions
//
// Actions map to an explicit set of allowed levels rather than a threshold:
//
//	action              member  manager  admin  owner
//	view                  x        x       x      x
//	participate           x        x       x      x
//	create_event                   x       x      x
//	manage_members                 x       x      x
//	view_finances                  x       x      x
//	edit_org                               x      x
//	assign_permissions                     x      x
//	manage_finances                        x      x
//	delete_org                                    x
//
// # Caching
//
// CachedResolver fronts a Resolver with an in-process expirable LRU and an
// optional Redis tier. It is meant for read paths such as rendering and
// request gating. Mutating operations resolve against the repositories of
// their own transaction and never consult the cache. Lifecycle operations
// that change or remove a membership call Invalidate after commit.
package rbac
