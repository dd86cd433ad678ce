// Package interfaces defines the core interfaces and types for the name registry,
// separating interface definitions from implementations.
//
// # Registry Interfaces
//
// NameResolver: the read side. Node derivation, existence, owner and resolver lookups,
// and the current role holders.
//
// NameRegistry: NameResolver plus the authorized mutations. Every mutation takes the
// acting caller explicitly and returns ErrUnauthorizedCaller, ErrNameAlreadyExists or
// ErrNameNotExists when it is refused.
//
// # Events
//
// Event and its implementations (Registered, ResolverChanged, Transferred, ManagerChanged,
// Renounced) describe successful mutations. EventSink receives them.
//
// # Storage Interfaces
//
// StorageBackend: content-addressed storage for registry snapshots across file, S3, IPFS
// and Vault backends.
//
// StorageBackendFactory: creates storage backends from URI strings and aggregates them into
// a replicated multi-backend.
//
// # Types
//
//   - Name: opaque caller-supplied bytes
//   - Node: 16-byte identifier derived from a name or a (parent, sub) pair
//   - Identity: 20-byte account address
//   - ContentID: 32-byte SHA-256 hash for content addressing
package interfaces
