// Package storage provides content-addressed storage for registry snapshots with
// pluggable backends.
//
// Content is identified by the SHA-256 hash of its bytes. Every backend verifies fetched
// content against its identifier, so a misbehaving backend can withhold a snapshot but
// not substitute a different one.
//
// # Backends
//
// Backends are selected by location URI:
//
//	file:///var/lib/nameservice/snapshots
//	s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=us-west-2&endpoint=https://minio:9000&path_style=true
//	ipfs://127.0.0.1:5001/?timeout=30s
//	vault://vault.example.com:8200/secret/nameservice?cert=client.pem&key=client-key.pem
//
// The IPFS backend stores each snapshot as a single raw block, whose CIDv1 is derived
// from the content ID (see CIDFor). The Vault backend writes into a KV v2 mount and
// authenticates with a TLS client certificate, either from the URI or from the source
// given to StorageBackendFactory.WithTLSAuth.
//
// Content types (snapshots, journal segments) are kept in separate namespaces on every
// backend except IPFS, where the address is the content alone.
//
// # Replication
//
// MultiStorageBackend writes to every available backend and reads from the first that
// has the content:
//
//	factory := storage.NewStorageBackendFactory(logger)
//	locs, err := storage.ParseLocations(cfg.Snapshots.Locations)
//	backend, err := factory.CreateMultiBackend(locs)
//	id, err := backend.Store(ctx, data, interfaces.SnapshotType)
package storage
