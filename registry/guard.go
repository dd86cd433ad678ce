package registry

import "github.com/ruteri/peer-name-service/interfaces"

// Roles holds the two singleton roles.
type Roles struct {
	Admin   interfaces.Identity
	Manager interfaces.Identity
}

// Guard decides whether a caller may act on a node. Its predicates never mutate state.
type Guard struct {
	store *RecordStore
	roles *Roles
}

// NewGuard creates a guard over the given store and roles.
func NewGuard(store *RecordStore, roles *Roles) *Guard {
	return &Guard{store: store, roles: roles}
}

// IsOwner is true iff node has a record and caller is its owner.
func (g *Guard) IsOwner(node interfaces.Node, caller interfaces.Identity) bool {
	owner, ok := g.store.OwnerOf(node)
	return ok && owner == caller
}

// IsManager reports whether caller holds the manager role.
func (g *Guard) IsManager(caller interfaces.Identity) bool {
	return g.roles.Manager == caller
}

// IsAdmin reports whether caller holds the admin role.
func (g *Guard) IsAdmin(caller interfaces.Identity) bool {
	return g.roles.Admin == caller
}
