package interfaces

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrContentNotFound is returned by Fetch when no content is stored under the id.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a backend cannot be reached.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned for location URIs the factory cannot serve.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// ContentID is the SHA-256 of a stored document. Snapshots and journal segments are
// addressed by it on every backend.
type ContentID [32]byte

// ComputeID returns the content ID of data.
func ComputeID(data []byte) ContentID {
	return ContentID(sha256.Sum256(data))
}

// NewContentIDFromHex parses a 64-char hex id with optional 0x prefix.
func NewContentIDFromHex(s string) (ContentID, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return ContentID{}, fmt.Errorf("invalid content id: %w", err)
	}
	if len(raw) != len(ContentID{}) {
		return ContentID{}, fmt.Errorf("invalid content id: %d bytes", len(raw))
	}
	return ContentID(raw), nil
}

func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// ContentType separates the namespaces of a backend.
type ContentType int

const (
	// SnapshotType holds encoded registry snapshots.
	SnapshotType ContentType = iota
	// JournalSegmentType holds journal events archived before compaction.
	JournalSegmentType
)

// ContentTypes lists every namespace a backend has to provide.
var ContentTypes = []ContentType{SnapshotType, JournalSegmentType}

// Dir is the namespace of the content type within a backend: a directory, key prefix or
// secret path segment.
func (ct ContentType) Dir() (string, error) {
	switch ct {
	case SnapshotType:
		return "snapshots", nil
	case JournalSegmentType:
		return "journal", nil
	default:
		return "", fmt.Errorf("unsupported content type %d", int(ct))
	}
}

func (ct ContentType) String() string {
	dir, err := ct.Dir()
	if err != nil {
		return "unknown"
	}
	return dir
}

// LocationScheme selects the backend implementation for a location.
type LocationScheme string

const (
	SchemeFile  LocationScheme = "file"
	SchemeS3    LocationScheme = "s3"
	SchemeIPFS  LocationScheme = "ipfs"
	SchemeVault LocationScheme = "vault"
)

// StorageBackendLocation is a parsed snapshot location such as
// s3://KEY:SECRET@bucket/prefix?region=eu-west-1. Host and Path are interpreted by the
// backend: bucket and prefix for S3, API address for IPFS, server and mount path for Vault.
type StorageBackendLocation struct {
	Scheme LocationScheme
	Host   string
	Path   string

	raw    string
	query  url.Values
	user   string
	secret string
}

// NewStorageBackendLocation parses uri and checks that its scheme has a backend.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	loc := StorageBackendLocation{
		Scheme: LocationScheme(u.Scheme),
		Host:   u.Host,
		Path:   u.Path,
		raw:    uri,
		query:  u.Query(),
	}
	switch loc.Scheme {
	case SchemeFile, SchemeS3, SchemeIPFS, SchemeVault:
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, u.Scheme)
	}

	if u.User != nil {
		loc.user = u.User.Username()
		loc.secret, _ = u.User.Password()
	}
	return loc, nil
}

// String returns the URI as given.
func (loc StorageBackendLocation) String() string {
	return loc.raw
}

// Credentials returns the user info of the URI. ok is false when none was given.
func (loc StorageBackendLocation) Credentials() (user, secret string, ok bool) {
	return loc.user, loc.secret, loc.user != ""
}

// Param returns the query parameter name.
func (loc StorageBackendLocation) Param(name string) string {
	return loc.query.Get(name)
}

// BoolParam reports whether the query parameter name is set to a true value.
func (loc StorageBackendLocation) BoolParam(name string) bool {
	switch strings.ToLower(loc.query.Get(name)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// StorageBackend stores content-addressed documents.
type StorageBackend interface {
	// Fetch returns the content stored under id, or ErrContentNotFound.
	Fetch(ctx context.Context, id ContentID, contentType ContentType) ([]byte, error)

	// Store saves data under ComputeID(data) and returns that id.
	Store(ctx context.Context, data []byte, contentType ContentType) (ContentID, error)

	Available(ctx context.Context) bool

	// Name identifies the backend in logs.
	Name() string
	LocationURI() string
}

// StorageBackendFactory builds backends from locations.
type StorageBackendFactory interface {
	StorageBackendFor(loc StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend replicates across every location that yields a backend.
	CreateMultiBackend(locs []StorageBackendLocation) (StorageBackend, error)

	// WithTLSAuth sets the client certificate source for backends that need one.
	WithTLSAuth(getCert func() (tls.Certificate, error)) StorageBackendFactory
}
