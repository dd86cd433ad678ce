/*
Package api defines the wire types and request authentication of the name service HTTP API.

Every mutation is a JSON POST whose body is signed by the acting identity. The signature travels
in the X-Registry-Signature header as "<address>:<0x-signature>", where the signature is an
Ethereum personal_sign over the 0x-prefixed hex keccak256 of the exact body bytes. The server
recovers the signer and uses it as the caller of the registry operation.

Each body embeds a Stamp. Servers reject stamps outside their clock skew window and refuse to
accept the same signature twice within it.

Subpackage clients contains a Go client that signs requests with a secp256k1 key.
*/
package api
