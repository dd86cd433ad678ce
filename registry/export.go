package registry

import (
	"fmt"

	"github.com/ruteri/peer-name-service/interfaces"
)

// State is a point-in-time copy of the registry contents.
type State struct {
	Admin     interfaces.Identity `json:"admin"`
	Manager   interfaces.Identity `json:"manager"`
	Owners    []Entry             `json:"owners"`
	Resolvers []Entry             `json:"resolvers"`

	// JournalSeq is the last journal sequence number reflected in this state.
	JournalSeq int64 `json:"journal_seq"`
}

// Export copies the registry state. If mark is not nil it is called while writes are
// blocked and its result is stored as the state's JournalSeq.
func (r *Registry) Export(mark func() int64) *State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := &State{
		Admin:     r.roles.Admin,
		Manager:   r.roles.Manager,
		Owners:    r.store.Owners(),
		Resolvers: r.store.Resolvers(),
	}
	if mark != nil {
		state.JournalSeq = mark()
	}
	return state
}

// Restore replaces the registry contents with state. The admin of state must match.
// No events are emitted.
func (r *Registry) Restore(state *State) error {
	if state.Admin != r.Admin() {
		return fmt.Errorf("snapshot admin %s does not match registry admin %s", state.Admin, r.Admin())
	}
	if state.Manager.IsZero() {
		return ErrRoleUnset
	}

	store := NewRecordStore()
	for _, e := range state.Owners {
		store.SetOwner(e.Node, e.Identity)
	}
	for _, e := range state.Resolvers {
		store.SetResolver(e.Node, e.Identity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.store = store
	r.roles.Manager = state.Manager
	r.guard = NewGuard(r.store, &r.roles)
	return nil
}

// Apply replays a previously emitted event onto the registry without authorization checks
// and without emitting it again.
func (r *Registry) Apply(ev interfaces.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case interfaces.Transferred:
		r.store.SetOwner(e.NodeID, e.NewOwner)
	case interfaces.ResolverChanged:
		r.store.SetResolver(e.NodeID, e.Resolver)
	case interfaces.Renounced:
		r.store.RemoveOwner(e.NodeID)
		if e.ResolverCleared {
			r.store.RemoveResolver(e.NodeID)
		}
	case interfaces.ManagerChanged:
		r.roles.Manager = e.NewManager
	case interfaces.Registered:
		// Preceded by Transferred and ResolverChanged which carry the state.
	default:
		return fmt.Errorf("cannot apply event of type %T", ev)
	}
	return nil
}

// Stats returns the number of records and resolver entries.
func (r *Registry) Stats() (records, resolvers int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Len()
}
