package registry

import (
	"github.com/ruteri/peer-name-service/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockNameRegistry mocks the interfaces.NameRegistry interface
type MockNameRegistry struct {
	mock.Mock
}

// Node mocks the Node method
func (m *MockNameRegistry) Node(name interfaces.Name) interfaces.Node {
	args := m.Called(name)
	return args.Get(0).(interfaces.Node)
}

// SubNode mocks the SubNode method
func (m *MockNameRegistry) SubNode(parent, sub interfaces.Name) interfaces.Node {
	args := m.Called(parent, sub)
	return args.Get(0).(interfaces.Node)
}

// Exists mocks the Exists method
func (m *MockNameRegistry) Exists(name interfaces.Name) bool {
	args := m.Called(name)
	return args.Bool(0)
}

// SubExists mocks the SubExists method
func (m *MockNameRegistry) SubExists(parent, sub interfaces.Name) bool {
	args := m.Called(parent, sub)
	return args.Bool(0)
}

// OwnerOf mocks the OwnerOf method
func (m *MockNameRegistry) OwnerOf(name interfaces.Name) (interfaces.Identity, bool) {
	args := m.Called(name)
	return args.Get(0).(interfaces.Identity), args.Bool(1)
}

// SubOwnerOf mocks the SubOwnerOf method
func (m *MockNameRegistry) SubOwnerOf(parent, sub interfaces.Name) (interfaces.Identity, bool) {
	args := m.Called(parent, sub)
	return args.Get(0).(interfaces.Identity), args.Bool(1)
}

// ResolverOf mocks the ResolverOf method
func (m *MockNameRegistry) ResolverOf(name interfaces.Name) (interfaces.Identity, bool) {
	args := m.Called(name)
	return args.Get(0).(interfaces.Identity), args.Bool(1)
}

// SubResolverOf mocks the SubResolverOf method
func (m *MockNameRegistry) SubResolverOf(parent, sub interfaces.Name) (interfaces.Identity, bool) {
	args := m.Called(parent, sub)
	return args.Get(0).(interfaces.Identity), args.Bool(1)
}

// Admin mocks the Admin method
func (m *MockNameRegistry) Admin() interfaces.Identity {
	args := m.Called()
	return args.Get(0).(interfaces.Identity)
}

// Manager mocks the Manager method
func (m *MockNameRegistry) Manager() interfaces.Identity {
	args := m.Called()
	return args.Get(0).(interfaces.Identity)
}

// Register mocks the Register method
func (m *MockNameRegistry) Register(caller interfaces.Identity, name interfaces.Name, owner, resolver interfaces.Identity) error {
	args := m.Called(caller, name, owner, resolver)
	return args.Error(0)
}

// RegisterSub mocks the RegisterSub method
func (m *MockNameRegistry) RegisterSub(caller interfaces.Identity, parent, sub interfaces.Name, resolver interfaces.Identity) error {
	args := m.Called(caller, parent, sub, resolver)
	return args.Error(0)
}

// UpdateResolver mocks the UpdateResolver method
func (m *MockNameRegistry) UpdateResolver(caller interfaces.Identity, name interfaces.Name, resolver interfaces.Identity) error {
	args := m.Called(caller, name, resolver)
	return args.Error(0)
}

// UpdateSubResolver mocks the UpdateSubResolver method
func (m *MockNameRegistry) UpdateSubResolver(caller interfaces.Identity, parent, sub interfaces.Name, resolver interfaces.Identity) error {
	args := m.Called(caller, parent, sub, resolver)
	return args.Error(0)
}

// Transfer mocks the Transfer method
func (m *MockNameRegistry) Transfer(caller interfaces.Identity, name interfaces.Name, newOwner interfaces.Identity) error {
	args := m.Called(caller, name, newOwner)
	return args.Error(0)
}

// RenounceByManager mocks the RenounceByManager method
func (m *MockNameRegistry) RenounceByManager(caller interfaces.Identity, name interfaces.Name) error {
	args := m.Called(caller, name)
	return args.Error(0)
}

// RenounceByOwner mocks the RenounceByOwner method
func (m *MockNameRegistry) RenounceByOwner(caller interfaces.Identity, name interfaces.Name) error {
	args := m.Called(caller, name)
	return args.Error(0)
}

// ChangeManager mocks the ChangeManager method
func (m *MockNameRegistry) ChangeManager(caller interfaces.Identity, newManager interfaces.Identity) error {
	args := m.Called(caller, newManager)
	return args.Error(0)
}

var _ interfaces.NameRegistry = (*MockNameRegistry)(nil)
