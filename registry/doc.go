// Package registry implements the name registry core: the record store, the role and
// ownership guard, and the service that composes them with node hashing and event emission.
//
// The registry keeps two node-keyed mappings. A record maps a node to its owner and
// exists only while a name is registered. A resolver entry maps a node to the identity
// that answers for it, and may outlive the record.
//
// Two singleton roles gate the top level:
//
//   - Admin is fixed at construction and may only reassign the manager.
//   - Manager registers top-level names and may renounce any record.
//
// Owners control their own records: they update resolvers, register subnames one level
// below, transfer and renounce. A subname is owned by whoever owned the parent when the
// subname was registered, and later parent transfers do not propagate.
//
// Every mutation either completes fully and emits its events, or fails with one of
// interfaces.ErrUnauthorizedCaller, interfaces.ErrNameAlreadyExists or
// interfaces.ErrNameNotExists and leaves the registry untouched.
//
// Example:
//
//	reg, err := registry.New(&registry.Config{Admin: admin, Manager: manager, Sink: sink})
//	if err != nil {
//		return err
//	}
//	err = reg.Register(manager, interfaces.Name("shop"), alice, resolverA)
//	err = reg.RegisterSub(alice, interfaces.Name("shop"), interfaces.Name("us"), resolverB)
//
// The journal and snapshot packages use Apply, Export and Restore to rebuild a
// registry after restart.
package registry
