package registry

import (
	"bytes"
	"sort"

	"github.com/ruteri/peer-name-service/interfaces"
)

// RecordStore holds the two node-keyed mappings: owners (records) and resolvers.
// It is not safe for concurrent use; Registry serializes access to it.
type RecordStore struct {
	owners    map[interfaces.Node]interfaces.Identity
	resolvers map[interfaces.Node]interfaces.Identity
}

// NewRecordStore creates an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		owners:    make(map[interfaces.Node]interfaces.Identity),
		resolvers: make(map[interfaces.Node]interfaces.Identity),
	}
}

// OwnerOf returns the owner recorded for node.
func (s *RecordStore) OwnerOf(node interfaces.Node) (interfaces.Identity, bool) {
	owner, ok := s.owners[node]
	return owner, ok
}

// ResolverOf returns the resolver recorded for node.
func (s *RecordStore) ResolverOf(node interfaces.Node) (interfaces.Identity, bool) {
	resolver, ok := s.resolvers[node]
	return resolver, ok
}

// SetOwner inserts or overwrites the owner of node.
func (s *RecordStore) SetOwner(node interfaces.Node, owner interfaces.Identity) {
	s.owners[node] = owner
}

// SetResolver inserts or overwrites the resolver of node.
func (s *RecordStore) SetResolver(node interfaces.Node, resolver interfaces.Identity) {
	s.resolvers[node] = resolver
}

// RemoveOwner deletes the owner entry of node, if any. The resolver entry is untouched.
func (s *RecordStore) RemoveOwner(node interfaces.Node) {
	delete(s.owners, node)
}

// RemoveResolver deletes the resolver entry of node, if any.
func (s *RecordStore) RemoveResolver(node interfaces.Node) {
	delete(s.resolvers, node)
}

// Len returns the number of records and resolver entries.
func (s *RecordStore) Len() (records, resolvers int) {
	return len(s.owners), len(s.resolvers)
}

// Entry is a single node-to-identity mapping.
type Entry struct {
	Node     interfaces.Node     `json:"node"`
	Identity interfaces.Identity `json:"identity"`
}

// Owners returns all records sorted by node.
func (s *RecordStore) Owners() []Entry {
	return sortedEntries(s.owners)
}

// Resolvers returns all resolver entries sorted by node.
func (s *RecordStore) Resolvers() []Entry {
	return sortedEntries(s.resolvers)
}

func sortedEntries(m map[interfaces.Node]interfaces.Identity) []Entry {
	entries := make([]Entry, 0, len(m))
	for node, id := range m {
		entries = append(entries, Entry{Node: node, Identity: id})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Node[:], entries[j].Node[:]) < 0
	})
	return entries
}
