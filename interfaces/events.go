package interfaces

// EventKind names an event type. It is also the discriminator used when events are persisted.
type EventKind string

const (
	KindRegistered      EventKind = "registered"
	KindResolverChanged EventKind = "resolver_changed"
	KindTransferred     EventKind = "transferred"
	KindManagerChanged  EventKind = "manager_changed"
	KindRenounced       EventKind = "renounced"
)

// Event describes a successful mutation of registry state.
type Event interface {
	Kind() EventKind
	// Node returns the affected node, or the zero node for role changes.
	Node() Node
}

// Registered is emitted when a name or subname gets its first record.
type Registered struct {
	NodeID Node     `json:"node"`
	Owner  Identity `json:"owner"`
}

func (e Registered) Kind() EventKind { return KindRegistered }
func (e Registered) Node() Node      { return e.NodeID }

// ResolverChanged is emitted on every resolver write.
type ResolverChanged struct {
	NodeID   Node     `json:"node"`
	Resolver Identity `json:"resolver"`
}

func (e ResolverChanged) Kind() EventKind { return KindResolverChanged }
func (e ResolverChanged) Node() Node      { return e.NodeID }

// Transferred is emitted on every owner write, including the initial one at registration.
type Transferred struct {
	NodeID   Node     `json:"node"`
	NewOwner Identity `json:"new_owner"`
}

func (e Transferred) Kind() EventKind { return KindTransferred }
func (e Transferred) Node() Node      { return e.NodeID }

// ManagerChanged is emitted when the admin reassigns the manager role.
type ManagerChanged struct {
	OldManager Identity `json:"old_manager"`
	NewManager Identity `json:"new_manager"`
}

func (e ManagerChanged) Kind() EventKind { return KindManagerChanged }
func (e ManagerChanged) Node() Node      { return Node{} }

// Renounced is emitted when a record is deleted by its owner or by the manager.
// ResolverCleared reports whether the resolver entry was removed along with it.
type Renounced struct {
	NodeID          Node     `json:"node"`
	By              Identity `json:"by"`
	ResolverCleared bool     `json:"resolver_cleared"`
}

func (e Renounced) Kind() EventKind { return KindRenounced }
func (e Renounced) Node() Node      { return e.NodeID }

// EventSink accepts events emitted by the registry. Implementations must not call back
// into the registry, since Emit runs inside the registry's critical section.
type EventSink interface {
	Emit(ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev Event)

// Emit calls f(ev).
func (f EventSinkFunc) Emit(ev Event) {
	f(ev)
}
