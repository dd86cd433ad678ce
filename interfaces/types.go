package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NodeSize is the width of a node identifier in bytes.
const NodeSize = 16

// Name is an opaque, caller-supplied name. It is never validated or normalized.
type Name []byte

// String returns the name bytes as a string.
func (n Name) String() string {
	return string(n)
}

// Node is the fixed-width identifier derived from a Name or a (parent, sub) pair.
// Nodes are the only key space for records and resolvers.
type Node [NodeSize]byte

// NewNodeFromHex parses a node from a 32-char hex string with optional 0x prefix.
func NewNodeFromHex(s string) (Node, error) {
	clean := strings.TrimPrefix(s, "0x")
	if len(clean) != 2*NodeSize {
		return Node{}, errors.New("invalid node length: hex string must be 32 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Node{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var node Node
	copy(node[:], raw)
	return node, nil
}

// String returns the 0x-prefixed hex representation.
func (n Node) String() string {
	return "0x" + hex.EncodeToString(n[:])
}

// Bytes returns the raw 16-byte node.
func (n Node) Bytes() []byte {
	return n[:]
}

// MarshalText implements encoding.TextMarshaler.
func (n Node) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Node) UnmarshalText(text []byte) error {
	parsed, err := NewNodeFromHex(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Identity is an opaque account reference supplied by the hosting environment.
// It uses the 20-byte Ethereum address space so that callers can be resolved from signatures.
type Identity [20]byte

// ZeroIdentity is the unset identity.
var ZeroIdentity Identity

// NewIdentityFromBytes creates an identity from a 20-byte slice.
func NewIdentityFromBytes(addr []byte) (Identity, error) {
	if len(addr) != 20 {
		return Identity{}, errors.New("invalid identity length: must be 20 bytes")
	}

	var res Identity
	copy(res[:], addr)
	return res, nil
}

// NewIdentityFromHex parses an identity from a 40-char hex string with optional 0x prefix.
func NewIdentityFromHex(addr string) (Identity, error) {
	if !common.IsHexAddress(addr) {
		return Identity{}, fmt.Errorf("invalid identity %q: expected 40 hex characters", addr)
	}
	return Identity(common.HexToAddress(addr)), nil
}

// Address returns the identity as a go-ethereum address.
func (id Identity) Address() common.Address {
	return common.Address(id)
}

// String returns the EIP-55 checksummed hex representation.
func (id Identity) String() string {
	return common.Address(id).Hex()
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == ZeroIdentity
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := NewIdentityFromHex(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
