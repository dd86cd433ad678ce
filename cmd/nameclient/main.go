package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/peer-name-service/api/clients"
	"github.com/ruteri/peer-name-service/cmd/flags"
	"github.com/ruteri/peer-name-service/dnsserver"
	"github.com/ruteri/peer-name-service/interfaces"
	"github.com/urfave/cli/v2"
)

var (
	flagName     = &cli.StringFlag{Name: "name", Required: true, Usage: "top-level name"}
	flagParent   = &cli.StringFlag{Name: "parent", Required: true, Usage: "parent name"}
	flagSub      = &cli.StringFlag{Name: "sub", Required: true, Usage: "subname label"}
	flagOwner    = &cli.StringFlag{Name: "owner", Required: true, Usage: "owner address"}
	flagResolver = &cli.StringFlag{Name: "resolver", Required: true, Usage: "resolver address"}
)

const usage = `Client for the name service API.

Mutations are signed with the key in --key-file; the signer is the acting identity.`

func main() {
	app := &cli.App{
		Name:  "nameclient",
		Usage: usage,
		Flags: append([]cli.Flag{
			flags.ServerAddrFlag,
			flags.KeyFileFlag,
			flags.TimeoutFlag,
		}, flags.LogFlags...),
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "generate a signing key, write it to --out and print its address",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Required: true, Usage: "key file to create"},
				},
				Action: keygen,
			},
			{
				Name:  "register",
				Usage: "register a top-level name (manager only)",
				Flags: []cli.Flag{flagName, flagOwner, flagResolver},
				Action: withClient(func(ctx context.Context, c *clients.RegistryClient, cCtx *cli.Context) (any, error) {
					owner, err := identityFlag(cCtx, flagOwner)
					if err != nil {
						return nil, err
					}
					resolver, err := identityFlag(cCtx, flagResolver)
					if err != nil {
						return nil, err
					}
					return c.Register(ctx, cCtx.String(flagName.Name), owner, resolver)
				}),
			},
			{
				Name:  "register-sub",
				Usage: "register a subname under a name you own",
				Flags: []cli.Flag{flagParent, flagSub, flagResolver},
				Action: withClient(func(ctx context.Context, c *clients.RegistryClient, cCtx *cli.Context) (any, error) {
					resolver, err := identityFlag(cCtx, flagResolver)
					if err != nil {
						return nil, err
					}
					return c.RegisterSub(ctx, cCtx.String(flagParent.Name), cCtx.String(flagSub.Name), resolver)
				}),
			},
			{
				Name:  "update-resolver",
				Usage: "point a name you own at a new resolver",
				Flags: []cli.Flag{flagName, flagResolver},
				Action: withClient(func(ctx context.Context, c *clients.RegistryClient, cCtx *cli.Context) (any, error) {
					resolver, err := identityFlag(cCtx, flagResolver)
					if err != nil {
						return nil, err
					}
					return c.UpdateResolver(ctx, cCtx.String(flagName.Name), resolver)
				}),
			},
			{
				Name:  "update-sub-resolver",
				Usage: "point a subname of a name you own at a new resolver",
				Flags: []cli.Flag{flagParent, flagSub, flagResolver},
				Action: withClient(func(ctx context.Context, c *clients.RegistryClient, cCtx *cli.Context) (any, error) {
					resolver, err := identityFlag(cCtx, flagResolver)
					if err != nil {
						return nil, err
					}
					return c.UpdateSubResolver(ctx, cCtx.String(flagParent.Name), cCtx.String(flagSub.Name), resolver)
				}),
			},
			{
				Name:  "transfer",
				Usage: "hand a name you own to a new owner",
				Flags: []cli.Flag{flagName, &cli.StringFlag{Name: "new-owner", Required: true, Usage: "new owner address"}},
				Action: withClient(func(ctx context.Context, c *clients.RegistryClient, cCtx *cli.Context) (any, error) {
					newOwner, err := interfaces.NewIdentityFromHex(cCtx.String("new-owner"))
					if err != nil {
						return nil, err
					}
					return c.Transfer(ctx, cCtx.String(flagName.Name), newOwner)
				}),
			},
			{
				Name:  "renounce",
				Usage: "delete the record of a name you own",
				Flags: []cli.Flag{flagName},
				Action: withClient(func(ctx context.Context, c *clients.RegistryClient, cCtx *cli.Context) (any, error) {
					return c.Renounce(ctx, cCtx.String(flagName.Name))
				}),
			},
			{
				Name:  "renounce-by-manager",
				Usage: "delete the record of any name (manager only)",
				Flags: []cli.Flag{flagName},
				Action: withClient(func(ctx context.Context, c *clients.RegistryClient, cCtx *cli.Context) (any, error) {
					return c.RenounceByManager(ctx, cCtx.String(flagName.Name))
				}),
			},
			{
				Name:  "change-manager",
				Usage: "reassign the manager role (admin only)",
				Flags: []cli.Flag{&cli.StringFlag{Name: "new-manager", Required: true, Usage: "new manager address"}},
				Action: withClient(func(ctx context.Context, c *clients.RegistryClient, cCtx *cli.Context) (any, error) {
					newManager, err := interfaces.NewIdentityFromHex(cCtx.String("new-manager"))
					if err != nil {
						return nil, err
					}
					return c.ChangeManager(ctx, newManager)
				}),
			},
			{
				Name:  "lookup",
				Usage: "show the record and resolver of a name",
				Flags: []cli.Flag{flagName},
				Action: withClient(func(ctx context.Context, c *clients.RegistryClient, cCtx *cli.Context) (any, error) {
					return c.Lookup(ctx, cCtx.String(flagName.Name))
				}),
			},
			{
				Name:  "lookup-sub",
				Usage: "show the record and resolver of a subname",
				Flags: []cli.Flag{flagParent, flagSub},
				Action: withClient(func(ctx context.Context, c *clients.RegistryClient, cCtx *cli.Context) (any, error) {
					return c.LookupSub(ctx, cCtx.String(flagParent.Name), cCtx.String(flagSub.Name))
				}),
			},
			{
				Name:  "roles",
				Usage: "show the admin and the manager",
				Action: withClient(func(ctx context.Context, c *clients.RegistryClient, cCtx *cli.Context) (any, error) {
					return c.Roles(ctx)
				}),
			},
			{
				Name:   "watch",
				Usage:  "stream registry events as JSON lines",
				Action: watch,
			},
			{
				Name:  "dns-lookup",
				Usage: "resolve a name through the DNS front-end",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dns-server", Value: "127.0.0.1:5353", Usage: "DNS server address"},
					&cli.StringFlag{Name: "zone", Value: "names.local.", Usage: "zone the registry is served under"},
					flagName,
					&cli.StringFlag{Name: "sub", Usage: "optional subname label"},
				},
				Action: dnsLookup,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type clientAction func(ctx context.Context, c *clients.RegistryClient, cCtx *cli.Context) (any, error)

// withClient builds a client from the global flags, runs fn and prints its result as JSON.
func withClient(fn clientAction) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)

		c, err := newClient(cCtx)
		if err != nil {
			return err
		}
		logger.Debug("Sending request", "server", c.ServerAddr, "identity", c.Identity().String())

		result, err := fn(cCtx.Context, c, cCtx)
		if err != nil {
			return err
		}
		return printJSON(cCtx, result)
	}
}

func newClient(cCtx *cli.Context) (*clients.RegistryClient, error) {
	keyFile := cCtx.String(flags.KeyFileFlag.Name)
	if keyFile == "" {
		return clients.NewRegistryClient(cCtx.String(flags.ServerAddrFlag.Name), nil, cCtx.Duration(flags.TimeoutFlag.Name)), nil
	}

	privkey, err := crypto.LoadECDSA(keyFile)
	if err != nil {
		return nil, fmt.Errorf("could not load key from %s: %w", keyFile, err)
	}
	return clients.NewRegistryClient(cCtx.String(flags.ServerAddrFlag.Name), privkey, cCtx.Duration(flags.TimeoutFlag.Name)), nil
}

func identityFlag(cCtx *cli.Context, flag *cli.StringFlag) (interfaces.Identity, error) {
	id, err := interfaces.NewIdentityFromHex(cCtx.String(flag.Name))
	if err != nil {
		return interfaces.Identity{}, fmt.Errorf("--%s: %w", flag.Name, err)
	}
	return id, nil
}

func printJSON(cCtx *cli.Context, v any) error {
	enc := json.NewEncoder(cCtx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func keygen(cCtx *cli.Context) error {
	out := cCtx.String("out")
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("%s already exists", out)
	}

	privkey, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveECDSA(out, privkey); err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, crypto.PubkeyToAddress(privkey.PublicKey).Hex())
	return nil
}

func watch(cCtx *cli.Context) error {
	c, err := newClient(cCtx)
	if err != nil {
		return err
	}

	stream, err := c.Watch(cCtx.Context)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cCtx.App.Writer)
	for env := range stream {
		if err := enc.Encode(env); err != nil {
			return err
		}
	}
	if cCtx.Context.Err() == nil {
		return errors.New("event stream closed by server")
	}
	return nil
}

func dnsLookup(cCtx *cli.Context) error {
	qname := dnsserver.QueryName(cCtx.String("zone"), cCtx.String(flagName.Name), cCtx.String("sub"))
	txt, err := dnsserver.LookupTXT(cCtx.Context, cCtx.String("dns-server"), qname)
	if err != nil {
		return err
	}
	fmt.Fprintf(cCtx.App.Writer, "%s\t%s\n", qname, strings.Join(txt, " "))
	return nil
}
