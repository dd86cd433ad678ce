package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/peer-name-service/cmd/flags"
	"github.com/ruteri/peer-name-service/common"
	"github.com/ruteri/peer-name-service/config"
	"github.com/ruteri/peer-name-service/dnsserver"
	"github.com/ruteri/peer-name-service/events"
	"github.com/ruteri/peer-name-service/httpserver"
	"github.com/ruteri/peer-name-service/interfaces"
	"github.com/ruteri/peer-name-service/journal"
	"github.com/ruteri/peer-name-service/metrics"
	"github.com/ruteri/peer-name-service/nodehash"
	"github.com/ruteri/peer-name-service/registry"
	"github.com/ruteri/peer-name-service/snapshot"
	"github.com/ruteri/peer-name-service/storage"
	"github.com/urfave/cli/v2"
)

var dnsAddrFlag = &cli.StringFlag{
	Name:  "dns-addr",
	Usage: "UDP address for the DNS front-end, overrides dns.listen_addr",
}

func main() {
	app := &cli.App{
		Name:  "nameserver",
		Usage: "Serve the hierarchical name registry over HTTP and DNS",
		Flags: append([]cli.Flag{flags.ConfigFlag}, flags.LogFlags...),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "recover the registry and serve the API",
				Flags:  []cli.Flag{flags.PprofFlag, flags.MetricsAddrFlag, dnsAddrFlag},
				Action: serve,
			},
			{
				Name:   "snapshot",
				Usage:  "recover the registry from the journal and publish a snapshot to the configured backends",
				Action: takeSnapshot,
			},
			{
				Name:  "dump-journal",
				Usage: "print journal entries as JSON lines",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "after", Usage: "only print entries with a greater sequence number"},
				},
				Action: dumpJournal,
			},
			{
				Name:  "init-config",
				Usage: "write a starter configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "admin", Required: true, Usage: "admin address"},
					&cli.StringFlag{Name: "manager", Required: true, Usage: "initial manager address"},
					&cli.StringFlag{Name: "out", Value: "nameserver.yaml", Usage: "output path"},
				},
				Action: initConfig,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the configuration and builds a logger honouring both the file and the flags.
func loadConfig(cCtx *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cCtx.String(flags.ConfigFlag.Name))
	if err != nil {
		return nil, nil, err
	}

	opts := flags.LoggingOpts(cCtx)
	opts.JSON = opts.JSON || cfg.Log.JSON
	opts.Debug = opts.Debug || cfg.Log.Debug
	if !cCtx.IsSet(flags.LogServiceFlag.Name) {
		opts.Service = cfg.Log.Service
	}
	return cfg, flags.NewLogger(cCtx, opts), nil
}

// node is the registry together with its durability layer.
type node struct {
	reg       *registry.Registry
	journal   *journal.Journal
	snapshots *snapshot.Manager
}

// openNode opens the journal, recovers the registry and attaches sink.
func openNode(ctx context.Context, cfg *config.Config, sink interfaces.EventSink, logger *slog.Logger) (*node, error) {
	admin, err := cfg.AdminIdentity()
	if err != nil {
		return nil, err
	}
	manager, err := cfg.ManagerIdentity()
	if err != nil {
		return nil, err
	}
	digest, err := nodehash.DigestByName(cfg.Digest)
	if err != nil {
		return nil, err
	}

	jrnl, err := journal.Open(cfg.Journal.Path, logger)
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(&registry.Config{
		Admin:                   admin,
		Manager:                 manager,
		Hasher:                  nodehash.New(digest),
		Sink:                    events.Combine(jrnl, sink),
		ClearResolverOnRenounce: cfg.ClearResolverOnRenounce,
		Log:                     logger,
	})
	if err != nil {
		jrnl.Close()
		return nil, err
	}

	n := &node{reg: reg, journal: jrnl}
	if len(cfg.Snapshots.Locations) > 0 {
		locs, err := storage.ParseLocations(cfg.Snapshots.Locations)
		if err != nil {
			jrnl.Close()
			return nil, err
		}
		backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locs)
		if err != nil {
			jrnl.Close()
			return nil, err
		}
		n.snapshots, err = snapshot.NewManager(&snapshot.Config{
			Registry:       reg,
			Journal:        jrnl,
			Backend:        backend,
			Digest:         cfg.Digest,
			CompactJournal: cfg.Snapshots.CompactJournal,
			Log:            logger,
		})
		if err != nil {
			jrnl.Close()
			return nil, err
		}
		err = n.snapshots.Recover(ctx)
		if err != nil {
			jrnl.Close()
			return nil, err
		}
		return n, nil
	}

	replayed := 0
	err = jrnl.Replay(ctx, 0, func(seq int64, ev interfaces.Event) error {
		replayed++
		return reg.Apply(ev)
	})
	if err != nil {
		jrnl.Close()
		return nil, fmt.Errorf("replaying journal: %w", err)
	}
	logger.Info("Recovered registry from journal", "replayed_events", replayed)
	return n, nil
}

func (n *node) Close(logger *slog.Logger) {
	if err := n.journal.Err(); err != nil {
		logger.Error("Journal recorded write failures during this run", "err", err)
	}
	if err := n.journal.Close(); err != nil {
		logger.Error("Failed to close journal", "err", err)
	}
}

func serve(cCtx *cli.Context) error {
	cfg, logger, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	httpCfg := flags.ConfigureServer(cCtx, logger, &cfg.HTTP)
	metricsSrv, err := metrics.New(common.PackageName, httpCfg.MetricsAddr)
	if err != nil {
		return err
	}

	broker := events.NewBroker()
	defer broker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := openNode(ctx, cfg, events.Combine(broker, metricsSrv, events.NewLogSink(logger)), logger)
	if err != nil {
		logger.Error("Failed to recover registry", "err", err)
		return err
	}
	defer n.Close(logger)
	metricsSrv.TrackRegistrySize(n.reg.Stats)

	handler := httpserver.NewHandler(&httpserver.HandlerConfig{
		Registry:     n.reg,
		Broker:       broker,
		Metrics:      metricsSrv,
		MaxClockSkew: cfg.HTTP.MaxClockSkew,
		Log:          logger,
	})
	server, err := httpserver.New(httpCfg, handler, metricsSrv)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	dnsAddr := cfg.DNS.ListenAddr
	if cCtx.IsSet(dnsAddrFlag.Name) {
		dnsAddr = cCtx.String(dnsAddrFlag.Name)
	}
	var dnsSrv *dnsserver.Server
	if dnsAddr != "" {
		dnsSrv, err = dnsserver.New(&dnsserver.Config{
			ListenAddr: dnsAddr,
			Zone:       cfg.DNS.Zone,
			TTL:        cfg.DNS.TTL,
			Registry:   n.reg,
			Log:        logger,
		})
		if err != nil {
			return err
		}
		dnsSrv.RunInBackground()
	}

	if n.snapshots != nil && cfg.Snapshots.Interval > 0 {
		go n.snapshots.Run(ctx, cfg.Snapshots.Interval)
	}

	server.RunInBackground()
	logger.Info("Server is running, press Ctrl+C to stop",
		"admin", n.reg.Admin().String(),
		"manager", n.reg.Manager().String())

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	server.Shutdown()
	if dnsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.GracefulShutdownDuration)
		if err := dnsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("DNS server shutdown failed", "err", err)
		}
		cancel()
	}

	if n.snapshots != nil {
		snapCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if _, err := n.snapshots.Take(snapCtx); err != nil {
			logger.Error("Final snapshot failed", "err", err)
		}
		cancel()
	}

	logger.Info("Server shutdown complete")
	return nil
}

func takeSnapshot(cCtx *cli.Context) error {
	cfg, logger, err := loadConfig(cCtx)
	if err != nil {
		return err
	}
	if len(cfg.Snapshots.Locations) == 0 {
		return errors.New("no snapshot locations configured")
	}

	n, err := openNode(cCtx.Context, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer n.Close(logger)

	id, err := n.snapshots.Take(cCtx.Context)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, id.String())
	return nil
}

func dumpJournal(cCtx *cli.Context) error {
	cfg, logger, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	jrnl, err := journal.Open(cfg.Journal.Path, logger)
	if err != nil {
		return err
	}
	defer jrnl.Close()

	enc := json.NewEncoder(cCtx.App.Writer)
	return jrnl.Replay(cCtx.Context, cCtx.Int64("after"), func(seq int64, ev interfaces.Event) error {
		env, err := events.Wrap(seq, ev)
		if err != nil {
			return err
		}
		return enc.Encode(env)
	})
}

func initConfig(cCtx *cli.Context) error {
	admin, err := interfaces.NewIdentityFromHex(cCtx.String("admin"))
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	manager, err := interfaces.NewIdentityFromHex(cCtx.String("manager"))
	if err != nil {
		return fmt.Errorf("manager: %w", err)
	}

	out := cCtx.String("out")
	if err := config.WriteDefault(out, admin, manager); err != nil {
		return err
	}
	fmt.Fprintf(cCtx.App.Writer, "wrote %s\n", out)
	return nil
}
