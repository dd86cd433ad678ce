package api

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/peer-name-service/interfaces"
)

var (
	// ErrMissingSignature is returned when a request carries no signature header.
	ErrMissingSignature = errors.New("missing signature")

	// ErrInvalidSignature is returned when the signature is malformed or does not match the claimed signer.
	ErrInvalidSignature = errors.New("invalid signature")
)

// BodyHash is the keccak256 of a request body. It is what the signer attests to.
func BodyHash(body []byte) common.Hash {
	return crypto.Keccak256Hash(body)
}

// signedDigest is the personal_sign digest of the hex BodyHash.
func signedDigest(body []byte) []byte {
	return accounts.TextHash([]byte(BodyHash(body).Hex()))
}

// SignBody produces the SignatureHeader value for body.
func SignBody(key *ecdsa.PrivateKey, body []byte) (string, error) {
	sig, err := crypto.Sign(signedDigest(body), key)
	if err != nil {
		return "", fmt.Errorf("signing request: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	signer := crypto.PubkeyToAddress(key.PublicKey)
	return signer.Hex() + ":" + hexutil.Encode(sig), nil
}

// VerifyBody checks header against body and returns the signer.
func VerifyBody(header string, body []byte) (interfaces.Identity, error) {
	if header == "" {
		return interfaces.Identity{}, ErrMissingSignature
	}

	addrHex, sigHex, ok := strings.Cut(header, ":")
	if !ok {
		return interfaces.Identity{}, fmt.Errorf("%w: expected <address>:<signature>", ErrInvalidSignature)
	}
	claimed, err := interfaces.NewIdentityFromHex(addrHex)
	if err != nil {
		return interfaces.Identity{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	sig, err := hexutil.Decode(sigHex)
	if err != nil || len(sig) != crypto.SignatureLength {
		return interfaces.Identity{}, fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	// Only the low-s form is accepted so that a body has a single valid signature per signer.
	r, s := new(big.Int).SetBytes(sig[:32]), new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[crypto.RecoveryIDOffset], r, s, true) {
		return interfaces.Identity{}, fmt.Errorf("%w: non-canonical signature values", ErrInvalidSignature)
	}

	pubkey, err := crypto.SigToPub(signedDigest(body), sig)
	if err != nil {
		return interfaces.Identity{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	recovered := interfaces.Identity(crypto.PubkeyToAddress(*pubkey))
	if recovered != claimed {
		return interfaces.Identity{}, fmt.Errorf("%w: signed by %s, claimed %s", ErrInvalidSignature, recovered, claimed)
	}
	return recovered, nil
}
