package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	shell "github.com/ipfs/go-ipfs-api"
	"github.com/multiformats/go-multihash"
	"github.com/ruteri/peer-name-service/interfaces"
)

// CIDFor returns the CIDv1 (raw codec, sha2-256) that IPFS assigns to content with the given id.
func CIDFor(id interfaces.ContentID) (cid.Cid, error) {
	mh, err := multihash.Encode(id[:], multihash.SHA2_256)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, multihash.Multihash(mh)), nil
}

// IPFSBackend stores content as raw IPFS blocks, so the block CID is derived directly
// from the SHA-256 content ID and no separate index is needed.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend creates a backend talking to the IPFS HTTP API at host:port.
func NewIPFSBackend(host, port string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	sh := shell.NewShell(apiURL)
	sh.SetTimeout(timeout)

	return &IPFSBackend{
		shell:       sh,
		host:        host,
		port:        port,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/?timeout=%s", apiURL, timeout),
	}, nil
}

// Fetch retrieves the raw block for id. The content type is not part of the IPFS address.
func (b *IPFSBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()

	c, err := CIDFor(id)
	if err != nil {
		return nil, err
	}

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port))
		return nil, interfaces.ErrBackendUnavailable
	}

	data, err := b.shell.BlockGet(c.String())
	if err != nil {
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "deadline exceeded") {
			b.log.Debug("Content not found in IPFS",
				slog.String("cid", c.String()),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}

		b.log.Error("Failed to fetch block from IPFS",
			slog.String("cid", c.String()),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to fetch block from IPFS: %w", err)
	}

	if interfaces.ComputeID(data) != id {
		return nil, fmt.Errorf("block %s does not match its id", c)
	}

	b.log.Debug("Fetched content from IPFS",
		slog.String("cid", c.String()),
		slog.String("content_type", contentType.String()),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store puts data as a raw block and checks that IPFS assigned the expected CID.
func (b *IPFSBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)

	expected, err := CIDFor(id)
	if err != nil {
		return id, err
	}

	if !b.shell.IsUp() {
		return id, interfaces.ErrBackendUnavailable
	}

	got, err := b.shell.BlockPut(data, "raw", "sha2-256", -1)
	if err != nil {
		return id, fmt.Errorf("failed to put block to IPFS: %w", err)
	}

	parsed, err := cid.Decode(got)
	if err != nil {
		return id, fmt.Errorf("IPFS returned invalid CID %q: %w", got, err)
	}
	if !parsed.Equals(expected) {
		return id, fmt.Errorf("IPFS returned CID %s, expected %s", parsed, expected)
	}

	b.log.Debug("Stored content in IPFS",
		slog.String("cid", got),
		slog.String("contentID", id.String()),
		slog.String("contentType", contentType.String()))

	return id, nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}
