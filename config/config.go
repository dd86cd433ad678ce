// Package config loads the name server configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ruteri/peer-name-service/interfaces"
	"github.com/ruteri/peer-name-service/nodehash"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. NAMESERVER_HTTP_LISTEN_ADDR.
const EnvPrefix = "NAMESERVER"

// Config is the complete server configuration.
type Config struct {
	// Admin and Manager are hex addresses of the two roles.
	Admin   string `mapstructure:"admin" yaml:"admin"`
	Manager string `mapstructure:"manager" yaml:"manager"`

	// Digest selects node hashing: "blake2b" or "keccak".
	Digest string `mapstructure:"digest" yaml:"digest"`

	// ClearResolverOnRenounce drops the resolver entry together with a renounced record.
	ClearResolverOnRenounce bool `mapstructure:"clear_resolver_on_renounce" yaml:"clear_resolver_on_renounce"`

	Journal   JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Snapshots SnapshotConfig `mapstructure:"snapshots" yaml:"snapshots"`
	HTTP      HTTPConfig     `mapstructure:"http" yaml:"http"`
	DNS       DNSConfig      `mapstructure:"dns" yaml:"dns"`
	Log       LogConfig      `mapstructure:"log" yaml:"log"`
}

type JournalConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type SnapshotConfig struct {
	// Locations are storage backend URIs; snapshots are disabled when empty.
	Locations      []string      `mapstructure:"locations" yaml:"locations"`
	Interval       time.Duration `mapstructure:"interval" yaml:"interval"`
	CompactJournal bool          `mapstructure:"compact_journal" yaml:"compact_journal"`
}

type HTTPConfig struct {
	ListenAddr               string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	MetricsAddr              string        `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	EnablePprof              bool          `mapstructure:"enable_pprof" yaml:"enable_pprof"`
	DrainDuration            time.Duration `mapstructure:"drain_duration" yaml:"drain_duration"`
	GracefulShutdownDuration time.Duration `mapstructure:"graceful_shutdown_duration" yaml:"graceful_shutdown_duration"`
	ReadTimeout              time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout             time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxClockSkew             time.Duration `mapstructure:"max_clock_skew" yaml:"max_clock_skew"`
}

type DNSConfig struct {
	// ListenAddr enables the DNS front-end when set.
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	Zone       string `mapstructure:"zone" yaml:"zone"`
	TTL        uint32 `mapstructure:"ttl" yaml:"ttl"`
}

type LogConfig struct {
	JSON    bool   `mapstructure:"json" yaml:"json"`
	Debug   bool   `mapstructure:"debug" yaml:"debug"`
	Service string `mapstructure:"service" yaml:"service"`
}

// Default returns the configuration used for unset keys.
func Default() *Config {
	return &Config{
		Digest: "blake2b",
		Journal: JournalConfig{
			Path: "nameservice.db",
		},
		Snapshots: SnapshotConfig{
			Locations: []string{},
			Interval:  10 * time.Minute,
		},
		HTTP: HTTPConfig{
			ListenAddr:               "127.0.0.1:8080",
			MetricsAddr:              "127.0.0.1:8090",
			DrainDuration:            45 * time.Second,
			GracefulShutdownDuration: 30 * time.Second,
			ReadTimeout:              60 * time.Second,
			WriteTimeout:             30 * time.Second,
			MaxClockSkew:             5 * time.Minute,
		},
		DNS: DNSConfig{
			Zone: "names.local.",
			TTL:  60,
		},
		Log: LogConfig{
			Service: "nameserver",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("admin", d.Admin)
	v.SetDefault("manager", d.Manager)
	v.SetDefault("digest", d.Digest)
	v.SetDefault("clear_resolver_on_renounce", d.ClearResolverOnRenounce)
	v.SetDefault("journal.path", d.Journal.Path)
	v.SetDefault("snapshots.locations", d.Snapshots.Locations)
	v.SetDefault("snapshots.interval", d.Snapshots.Interval)
	v.SetDefault("snapshots.compact_journal", d.Snapshots.CompactJournal)
	v.SetDefault("http.listen_addr", d.HTTP.ListenAddr)
	v.SetDefault("http.metrics_addr", d.HTTP.MetricsAddr)
	v.SetDefault("http.enable_pprof", d.HTTP.EnablePprof)
	v.SetDefault("http.drain_duration", d.HTTP.DrainDuration)
	v.SetDefault("http.graceful_shutdown_duration", d.HTTP.GracefulShutdownDuration)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.max_clock_skew", d.HTTP.MaxClockSkew)
	v.SetDefault("dns.listen_addr", d.DNS.ListenAddr)
	v.SetDefault("dns.zone", d.DNS.Zone)
	v.SetDefault("dns.ttl", d.DNS.TTL)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("log.service", d.Log.Service)
}

// Load reads the YAML file at path, applies NAMESERVER_* environment overrides and
// validates the result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks role addresses and the digest name.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.AdminIdentity(); err != nil {
		errs = append(errs, fmt.Errorf("admin: %w", err))
	}
	if _, err := c.ManagerIdentity(); err != nil {
		errs = append(errs, fmt.Errorf("manager: %w", err))
	}
	if _, err := nodehash.DigestByName(c.Digest); err != nil {
		errs = append(errs, err)
	}
	if c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path must be set"))
	}
	return errors.Join(errs...)
}

// AdminIdentity parses the admin address.
func (c *Config) AdminIdentity() (interfaces.Identity, error) {
	return parseRole(c.Admin)
}

// ManagerIdentity parses the manager address.
func (c *Config) ManagerIdentity() (interfaces.Identity, error) {
	return parseRole(c.Manager)
}

func parseRole(s string) (interfaces.Identity, error) {
	id, err := interfaces.NewIdentityFromHex(s)
	if err != nil {
		return interfaces.Identity{}, err
	}
	if id.IsZero() {
		return interfaces.Identity{}, errors.New("must not be the zero address")
	}
	return id, nil
}

// WriteDefault writes a starter configuration with the given roles to path.
// It refuses to overwrite an existing file.
func WriteDefault(path string, admin, manager interfaces.Identity) error {
	cfg := Default()
	cfg.Admin = admin.String()
	cfg.Manager = manager.String()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
