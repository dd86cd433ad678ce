package interfaces

import "errors"

var (
	// ErrUnauthorizedCaller is returned when the caller lacks the role or ownership
	// required for the requested mutation.
	ErrUnauthorizedCaller = errors.New("unauthorized caller")

	// ErrNameAlreadyExists is returned when registering over a node that already has a record.
	ErrNameAlreadyExists = errors.New("name already exists")

	// ErrNameNotExists is returned when a mutation targets a node with no active record.
	ErrNameNotExists = errors.New("name does not exist")

	// ErrZeroIdentity is returned when a role would be handed to the zero identity.
	ErrZeroIdentity = errors.New("identity must not be zero")
)

// NameResolver is the read side of the registry.
type NameResolver interface {
	// Node computes the node for a top-level name.
	Node(name Name) Node

	// SubNode computes the node for a subname under parent.
	SubNode(parent, sub Name) Node

	// Exists reports whether name has an active record.
	Exists(name Name) bool

	// SubExists reports whether sub under parent has an active record.
	SubExists(parent, sub Name) bool

	// OwnerOf returns the owner recorded for name.
	OwnerOf(name Name) (Identity, bool)

	// SubOwnerOf returns the owner recorded for sub under parent.
	SubOwnerOf(parent, sub Name) (Identity, bool)

	// ResolverOf returns the resolver recorded for name.
	ResolverOf(name Name) (Identity, bool)

	// SubResolverOf returns the resolver recorded for sub under parent.
	SubResolverOf(parent, sub Name) (Identity, bool)

	// Admin returns the admin identity.
	Admin() Identity

	// Manager returns the current manager identity.
	Manager() Identity
}

// NameRegistry combines lookups with the authorized mutations.
// Every mutation receives the acting caller explicitly.
type NameRegistry interface {
	NameResolver

	// Register creates a top-level record. Manager only.
	Register(caller Identity, name Name, owner, resolver Identity) error

	// RegisterSub creates a subname record owned by the caller, who must own parent.
	RegisterSub(caller Identity, parent, sub Name, resolver Identity) error

	// UpdateResolver overwrites the resolver of a name owned by the caller.
	UpdateResolver(caller Identity, name Name, resolver Identity) error

	// UpdateSubResolver overwrites the resolver of sub under a parent owned by the caller.
	UpdateSubResolver(caller Identity, parent, sub Name, resolver Identity) error

	// Transfer replaces the owner of a name owned by the caller.
	Transfer(caller Identity, name Name, newOwner Identity) error

	// RenounceByManager deletes a record. Manager only.
	RenounceByManager(caller Identity, name Name) error

	// RenounceByOwner deletes a record owned by the caller.
	RenounceByOwner(caller Identity, name Name) error

	// ChangeManager reassigns the manager role. Admin only; newManager must not be zero.
	ChangeManager(caller Identity, newManager Identity) error
}
