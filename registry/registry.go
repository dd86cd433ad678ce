package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/ruteri/peer-name-service/interfaces"
	"github.com/ruteri/peer-name-service/nodehash"
)

// ErrRoleUnset is returned by New when admin or manager is the zero identity.
var ErrRoleUnset = errors.New("admin and manager must be set")

// Config contains everything needed to construct a Registry.
type Config struct {
	// Admin may reassign the manager. Fixed for the lifetime of the registry.
	Admin interfaces.Identity

	// Manager may register top-level names and renounce any record.
	Manager interfaces.Identity

	// Hasher derives nodes from names. Defaults to nodehash.New(nil).
	Hasher *nodehash.Hasher

	// Sink receives events for successful mutations. Optional.
	Sink interfaces.EventSink

	// ClearResolverOnRenounce removes the resolver entry together with the record.
	// By default the resolver survives renouncement and is inherited on re-registration.
	ClearResolverOnRenounce bool

	// Log is the structured logger. Defaults to slog.Default().
	Log *slog.Logger
}

// Registry orchestrates the public registry operations.
// Every public method is a single critical section over the store and the roles.
type Registry struct {
	mu     sync.RWMutex
	store  *RecordStore
	roles  Roles
	guard  *Guard
	hasher *nodehash.Hasher
	sink   interfaces.EventSink
	log    *slog.Logger

	clearResolverOnRenounce bool
}

// New creates an empty registry.
func New(cfg *Config) (*Registry, error) {
	if cfg.Admin.IsZero() || cfg.Manager.IsZero() {
		return nil, ErrRoleUnset
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = nodehash.New(nil)
	}
	logger := cfg.Log
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		store:                   NewRecordStore(),
		roles:                   Roles{Admin: cfg.Admin, Manager: cfg.Manager},
		hasher:                  hasher,
		sink:                    cfg.Sink,
		log:                     logger,
		clearResolverOnRenounce: cfg.ClearResolverOnRenounce,
	}
	r.guard = NewGuard(r.store, &r.roles)
	return r, nil
}

func (r *Registry) emit(events ...interfaces.Event) {
	if r.sink == nil {
		return
	}
	for _, ev := range events {
		r.sink.Emit(ev)
	}
}

// Register creates a record for name owned by owner and points it at resolver.
func (r *Registry) Register(caller interfaces.Identity, name interfaces.Name, owner, resolver interfaces.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.guard.IsManager(caller) {
		return interfaces.ErrUnauthorizedCaller
	}
	node := r.hasher.Hash(name)
	if _, exists := r.store.OwnerOf(node); exists {
		return interfaces.ErrNameAlreadyExists
	}

	r.store.SetOwner(node, owner)
	r.store.SetResolver(node, resolver)

	r.log.Debug("Registered name",
		slog.String("node", node.String()),
		slog.String("owner", owner.String()))

	r.emit(
		interfaces.Transferred{NodeID: node, NewOwner: owner},
		interfaces.ResolverChanged{NodeID: node, Resolver: resolver},
		interfaces.Registered{NodeID: node, Owner: owner},
	)
	return nil
}

// RegisterSub creates a record for sub under parent owned by the caller.
// The caller must own parent.
func (r *Registry) RegisterSub(caller interfaces.Identity, parent, sub interfaces.Name, resolver interfaces.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.authorizeOwner(caller, r.hasher.Hash(parent)); err != nil {
		return err
	}
	subnode := r.hasher.HashSub(parent, sub)
	if _, exists := r.store.OwnerOf(subnode); exists {
		return interfaces.ErrNameAlreadyExists
	}

	r.store.SetOwner(subnode, caller)
	r.store.SetResolver(subnode, resolver)

	r.log.Debug("Registered subname",
		slog.String("node", subnode.String()),
		slog.String("owner", caller.String()))

	r.emit(
		interfaces.Transferred{NodeID: subnode, NewOwner: caller},
		interfaces.ResolverChanged{NodeID: subnode, Resolver: resolver},
		interfaces.Registered{NodeID: subnode, Owner: caller},
	)
	return nil
}

// UpdateResolver points name at a new resolver. The caller must own name.
func (r *Registry) UpdateResolver(caller interfaces.Identity, name interfaces.Name, resolver interfaces.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node := r.hasher.Hash(name)
	if err := r.authorizeOwner(caller, node); err != nil {
		return err
	}

	r.store.SetResolver(node, resolver)
	r.emit(interfaces.ResolverChanged{NodeID: node, Resolver: resolver})
	return nil
}

// UpdateSubResolver points sub under parent at a new resolver. The caller must own parent.
// The subname itself does not need an active record.
func (r *Registry) UpdateSubResolver(caller interfaces.Identity, parent, sub interfaces.Name, resolver interfaces.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.authorizeOwner(caller, r.hasher.Hash(parent)); err != nil {
		return err
	}

	subnode := r.hasher.HashSub(parent, sub)
	r.store.SetResolver(subnode, resolver)
	r.emit(interfaces.ResolverChanged{NodeID: subnode, Resolver: resolver})
	return nil
}

// Transfer hands name over to newOwner. The caller must own name.
func (r *Registry) Transfer(caller interfaces.Identity, name interfaces.Name, newOwner interfaces.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node := r.hasher.Hash(name)
	if err := r.authorizeOwner(caller, node); err != nil {
		return err
	}

	r.store.SetOwner(node, newOwner)

	r.log.Debug("Transferred name",
		slog.String("node", node.String()),
		slog.String("from", caller.String()),
		slog.String("to", newOwner.String()))

	r.emit(interfaces.Transferred{NodeID: node, NewOwner: newOwner})
	return nil
}

// RenounceByManager deletes the record of name. Manager only.
func (r *Registry) RenounceByManager(caller interfaces.Identity, name interfaces.Name) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.guard.IsManager(caller) {
		return interfaces.ErrUnauthorizedCaller
	}
	node := r.hasher.Hash(name)
	if _, exists := r.store.OwnerOf(node); !exists {
		return interfaces.ErrNameNotExists
	}

	r.renounce(caller, node)
	return nil
}

// RenounceByOwner deletes the record of name. The caller must own name.
// Ownership is checked first, so a missing record is reported as ErrUnauthorizedCaller.
func (r *Registry) RenounceByOwner(caller interfaces.Identity, name interfaces.Name) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node := r.hasher.Hash(name)
	if !r.guard.IsOwner(node, caller) {
		return interfaces.ErrUnauthorizedCaller
	}
	if _, exists := r.store.OwnerOf(node); !exists {
		return interfaces.ErrNameNotExists
	}

	r.renounce(caller, node)
	return nil
}

func (r *Registry) renounce(caller interfaces.Identity, node interfaces.Node) {
	r.store.RemoveOwner(node)
	if r.clearResolverOnRenounce {
		r.store.RemoveResolver(node)
	}

	r.log.Debug("Renounced name",
		slog.String("node", node.String()),
		slog.String("by", caller.String()))

	r.emit(interfaces.Renounced{NodeID: node, By: caller, ResolverCleared: r.clearResolverOnRenounce})
}

// ChangeManager reassigns the manager role. Admin only. The manager can never be unset.
func (r *Registry) ChangeManager(caller interfaces.Identity, newManager interfaces.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.guard.IsAdmin(caller) {
		return interfaces.ErrUnauthorizedCaller
	}
	if newManager.IsZero() {
		return interfaces.ErrZeroIdentity
	}

	old := r.roles.Manager
	r.roles.Manager = newManager

	r.log.Info("Manager changed",
		slog.String("old", old.String()),
		slog.String("new", newManager.String()))

	r.emit(interfaces.ManagerChanged{OldManager: old, NewManager: newManager})
	return nil
}

// authorizeOwner checks that node has a record and that caller owns it.
func (r *Registry) authorizeOwner(caller interfaces.Identity, node interfaces.Node) error {
	if _, exists := r.store.OwnerOf(node); !exists {
		return interfaces.ErrNameNotExists
	}
	if !r.guard.IsOwner(node, caller) {
		return interfaces.ErrUnauthorizedCaller
	}
	return nil
}

// Node computes the node for name.
func (r *Registry) Node(name interfaces.Name) interfaces.Node {
	return r.hasher.Hash(name)
}

// SubNode computes the node for sub under parent.
func (r *Registry) SubNode(parent, sub interfaces.Name) interfaces.Node {
	return r.hasher.HashSub(parent, sub)
}

// Exists reports whether name has an active record.
func (r *Registry) Exists(name interfaces.Name) bool {
	_, ok := r.OwnerOf(name)
	return ok
}

// SubExists reports whether sub under parent has an active record.
func (r *Registry) SubExists(parent, sub interfaces.Name) bool {
	_, ok := r.SubOwnerOf(parent, sub)
	return ok
}

// OwnerOf returns the owner of name.
func (r *Registry) OwnerOf(name interfaces.Name) (interfaces.Identity, bool) {
	return r.ownerOfNode(r.hasher.Hash(name))
}

// SubOwnerOf returns the owner of sub under parent.
func (r *Registry) SubOwnerOf(parent, sub interfaces.Name) (interfaces.Identity, bool) {
	return r.ownerOfNode(r.hasher.HashSub(parent, sub))
}

// ResolverOf returns the resolver of name. A resolver may outlive the record.
func (r *Registry) ResolverOf(name interfaces.Name) (interfaces.Identity, bool) {
	return r.resolverOfNode(r.hasher.Hash(name))
}

// SubResolverOf returns the resolver of sub under parent.
func (r *Registry) SubResolverOf(parent, sub interfaces.Name) (interfaces.Identity, bool) {
	return r.resolverOfNode(r.hasher.HashSub(parent, sub))
}

func (r *Registry) ownerOfNode(node interfaces.Node) (interfaces.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.OwnerOf(node)
}

func (r *Registry) resolverOfNode(node interfaces.Node) (interfaces.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.ResolverOf(node)
}

// Admin returns the admin identity.
func (r *Registry) Admin() interfaces.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roles.Admin
}

// Manager returns the current manager identity.
func (r *Registry) Manager() interfaces.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roles.Manager
}

var _ interfaces.NameRegistry = (*Registry)(nil)
