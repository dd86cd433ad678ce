/*
Package clients provides a Go client for the name service HTTP API.

RegistryClient signs every mutation with a secp256k1 key; the server treats the recovered
address as the caller. Errors reported by the server are mapped back to the registry's
sentinel errors, so callers can use errors.Is with interfaces.ErrUnauthorizedCaller,
interfaces.ErrNameNotExists and interfaces.ErrNameAlreadyExists.

# Example Usage

	key, _ := crypto.HexToECDSA("your-private-key-hex")
	client := clients.NewRegistryClient("http://127.0.0.1:8080", key, 10*time.Second)

	_, err := client.RegisterSub(ctx, "shop", "us", resolver)
	if errors.Is(err, interfaces.ErrUnauthorizedCaller) {
	    // the key does not own "shop"
	}

	info, err := client.LookupSub(ctx, "shop", "us")
*/
package clients
