package service

import "github.com/iliyamo/garbage-collector/internal/model"

// Actor is the authenticated caller of an operation, as established by
// the session middleware.
type Actor struct {
	ID   uint64
	Role model.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// canManage reports whether the actor may mutate a resource owned by ownerID.
func (a Actor) canManage(ownerID uint64) bool { return a.IsAdmin() || a.ID == ownerID }

func requireAdmin(a Actor) error {
	if !a.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
