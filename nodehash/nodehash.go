// Package nodehash derives fixed-width node identifiers from names.
//
// Inputs are length-delimited before hashing using the SCALE compact length prefix, so the
// single-name form and the (parent, sub) pair form can never produce the same digest input.
// With the default Blake2b128 digest the resulting nodes match those computed by the
// original on-chain name service contract.
package nodehash

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/peer-name-service/interfaces"
	"golang.org/x/crypto/blake2b"
)

// Digest is a one-way, collision-resistant function producing a 16-byte node.
type Digest func(data []byte) interfaces.Node

// Blake2b128 hashes data with BLAKE2b truncated to a 128-bit output length.
func Blake2b128(data []byte) interfaces.Node {
	h, err := blake2b.New(interfaces.NodeSize, nil)
	if err != nil {
		// Only reachable with an invalid size or key length.
		panic(err)
	}
	h.Write(data)

	var node interfaces.Node
	copy(node[:], h.Sum(nil))
	return node
}

// Keccak128 hashes data with Keccak-256 and keeps the first 16 bytes.
func Keccak128(data []byte) interfaces.Node {
	var node interfaces.Node
	copy(node[:], crypto.Keccak256(data))
	return node
}

// DigestByName returns the digest registered under name ("blake2b" or "keccak").
func DigestByName(name string) (Digest, error) {
	switch name {
	case "", "blake2b":
		return Blake2b128, nil
	case "keccak":
		return Keccak128, nil
	default:
		return nil, fmt.Errorf("unsupported digest: %s", name)
	}
}

// Hasher computes nodes for names and subnames.
type Hasher struct {
	digest Digest
}

// New returns a Hasher using digest, or Blake2b128 if digest is nil.
func New(digest Digest) *Hasher {
	if digest == nil {
		digest = Blake2b128
	}
	return &Hasher{digest: digest}
}

// Hash computes the node for a top-level name.
func (h *Hasher) Hash(name interfaces.Name) interfaces.Node {
	return h.digest(appendBytes(nil, name))
}

// HashSub computes the node for sub under parent.
func (h *Hasher) HashSub(parent, sub interfaces.Name) interfaces.Node {
	buf := make([]byte, 0, len(parent)+len(sub)+2*binary.MaxVarintLen32)
	buf = appendBytes(buf, parent)
	buf = appendBytes(buf, sub)
	return h.digest(buf)
}

// appendBytes appends b prefixed with its SCALE compact-encoded length.
func appendBytes(dst, b []byte) []byte {
	dst = appendCompact(dst, uint64(len(b)))
	return append(dst, b...)
}

// appendCompact appends the SCALE compact encoding of v.
// The two low bits of the first byte select the mode, which makes the encoding prefix-free.
func appendCompact(dst []byte, v uint64) []byte {
	switch {
	case v < 1<<6:
		return append(dst, byte(v<<2))
	case v < 1<<14:
		return binary.LittleEndian.AppendUint16(dst, uint16(v<<2|0b01))
	case v < 1<<30:
		return binary.LittleEndian.AppendUint32(dst, uint32(v<<2|0b10))
	default:
		n := (bits.Len64(v) + 7) / 8
		dst = append(dst, byte((n-4)<<2|0b11))
		for i := 0; i < n; i++ {
			dst = append(dst, byte(v>>(8*i)))
		}
		return dst
	}
}
