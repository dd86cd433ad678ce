package flags

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/peer-name-service/api"
	"github.com/ruteri/peer-name-service/common"
	"github.com/ruteri/peer-name-service/config"
	"github.com/urfave/cli/v2"
)

// LoggingOpts reads the logging flags. Logs go to stderr so command output stays clean.
func LoggingOpts(cCtx *cli.Context) *common.LoggingOpts {
	return &common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
		Output:  os.Stderr,
	}
}

// NewLogger builds a logger from opts, tagging it with a run id if --log-uid is set.
func NewLogger(cCtx *cli.Context, opts *common.LoggingOpts) (log *slog.Logger) {
	logger := common.SetupLogger(opts)

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	return NewLogger(cCtx, LoggingOpts(cCtx))
}

// ConfigureServer builds the API server settings from the loaded configuration.
// The --pprof and --metrics-addr flags override the file when set.
func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, cfg *config.HTTPConfig) *api.HTTPServerConfig {
	metricsAddr := cfg.MetricsAddr
	if cCtx.IsSet(MetricsAddrFlag.Name) {
		metricsAddr = cCtx.String(MetricsAddrFlag.Name)
	}

	return &api.HTTPServerConfig{
		ListenAddr:               cfg.ListenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              cfg.EnablePprof || cCtx.Bool(PprofFlag.Name),
		DrainDuration:            cfg.DrainDuration,
		GracefulShutdownDuration: cfg.GracefulShutdownDuration,
		ReadTimeout:              cfg.ReadTimeout,
		WriteTimeout:             cfg.WriteTimeout,
	}
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	EnvVars: []string{"NAMESERVER_CONFIG"},
	Usage:   "path to the YAML configuration file",
}

var ServerAddrFlag = &cli.StringFlag{
	Name:    "server-addr",
	Value:   "http://127.0.0.1:8080",
	EnvVars: []string{"NAMECLIENT_SERVER"},
	Usage:   "name service API address",
}

var KeyFileFlag = &cli.StringFlag{
	Name:    "key-file",
	EnvVars: []string{"NAMECLIENT_KEY_FILE"},
	Usage:   "file holding the hex-encoded secp256k1 key requests are signed with",
}

var TimeoutFlag = &cli.DurationFlag{
	Name:  "timeout",
	Value: 10 * time.Second,
	Usage: "request timeout",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var CommonFlags = append([]cli.Flag{
	PprofFlag,
	MetricsAddrFlag,
}, LogFlags...)
