package storage

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/peer-name-service/interfaces"
)

// StorageBackendFactory creates storage backends from location URIs and combines them
// into a replicated multi-backend.
type StorageBackendFactory struct {
	log     *slog.Logger
	tlsAuth func() (tls.Certificate, error)
}

// NewStorageBackendFactory creates a new factory. A nil logger means slog.Default().
func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageBackendFactory{log: logger}
}

// WithTLSAuth sets the client certificate source used for Vault backends.
func (sf *StorageBackendFactory) WithTLSAuth(getCert func() (tls.Certificate, error)) interfaces.StorageBackendFactory {
	return &StorageBackendFactory{log: sf.log, tlsAuth: getCert}
}

// StorageBackendFor creates a storage backend from a location.
//
// Supported schemes:
//   - file:///var/lib/nameservice/snapshots
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=us-west-2&endpoint=https://minio:9000&path_style=true
//   - ipfs://host:5001/?timeout=30s
//   - vault://vault.example.com:8200/secret/nameservice?cert=client.pem&key=client-key.pem
func (sf *StorageBackendFactory) StorageBackendFor(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	switch loc.Scheme {
	case interfaces.SchemeFile:
		return sf.createFileBackend(loc)
	case interfaces.SchemeS3:
		return sf.createS3Backend(loc)
	case interfaces.SchemeIPFS:
		return sf.createIPFSBackend(loc)
	case interfaces.SchemeVault:
		return sf.createVaultBackend(loc)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

// CreateMultiBackend creates a multi-storage backend from every location that yields a
// valid backend. Returns an error if none does.
func (sf *StorageBackendFactory) CreateMultiBackend(locs []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locs))

	for _, loc := range locs {
		backend, err := sf.StorageBackendFor(loc)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", loc.String()))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

// ParseLocations parses a list of location URIs.
func ParseLocations(uris []string) ([]interfaces.StorageBackendLocation, error) {
	locs := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		loc, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func (sf *StorageBackendFactory) createFileBackend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", loc.String()))

	// file://./relative/path puts the first segment in the host.
	path := loc.Path
	if loc.Host != "" {
		path = loc.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %s", interfaces.ErrInvalidLocationURI, loc)
	}

	return NewFileBackend(path, sf.log)
}

func (sf *StorageBackendFactory) createS3Backend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating S3 backend", slog.String("uri", loc.String()))

	if loc.Host == "" {
		return nil, fmt.Errorf("%w: missing bucket in S3 URI", interfaces.ErrInvalidLocationURI)
	}

	cfg := S3Config{
		Bucket:    loc.Host,
		Prefix:    strings.TrimPrefix(loc.Path, "/"),
		Region:    loc.Param("region"),
		Endpoint:  loc.Param("endpoint"),
		PathStyle: loc.BoolParam("path_style"),
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if key, secret, ok := loc.Credentials(); ok {
		cfg.AccessKey = key
		cfg.SecretKey = secret
	}

	return NewS3Backend(cfg, sf.log)
}

func (sf *StorageBackendFactory) createIPFSBackend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating IPFS backend", slog.String("uri", loc.String()))

	host, port, found := strings.Cut(loc.Host, ":")
	if host == "" {
		return nil, fmt.Errorf("%w: missing host in IPFS URI", interfaces.ErrInvalidLocationURI)
	}
	if !found || port == "" {
		port = "5001"
	}

	timeout := 30 * time.Second
	if raw := loc.Param("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
		timeout = parsed
	}

	return NewIPFSBackend(host, port, timeout, sf.log)
}

func (sf *StorageBackendFactory) createVaultBackend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating Vault backend", slog.String("uri", loc.String()))

	mount, dataPath, _ := strings.Cut(strings.Trim(loc.Path, "/"), "/")
	if loc.Host == "" || mount == "" {
		return nil, fmt.Errorf("%w: expected vault://host:port/mount/path", interfaces.ErrInvalidLocationURI)
	}

	getCert := sf.tlsAuth
	if certFile, keyFile := loc.Param("cert"), loc.Param("key"); certFile != "" && keyFile != "" {
		getCert = func() (tls.Certificate, error) {
			return tls.LoadX509KeyPair(certFile, keyFile)
		}
	}
	if getCert == nil {
		return nil, fmt.Errorf("vault backend requires a TLS client certificate")
	}

	cert, err := getCert()
	if err != nil {
		return nil, fmt.Errorf("loading vault client certificate: %w", err)
	}

	return NewVaultBackend("https://"+loc.Host, mount, dataPath, cert, sf.log)
}

var _ interfaces.StorageBackendFactory = (*StorageBackendFactory)(nil)
