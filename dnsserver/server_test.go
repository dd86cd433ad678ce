package dnsserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/ruteri/peer-name-service/interfaces"
	"github.com/ruteri/peer-name-service/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = interfaces.Identity{0xa0}
	manager  = interfaces.Identity{0x30}
	alice    = interfaces.Identity{0x01}
	resolver = interfaces.Identity{0xf1}
)

func startTestServer(t *testing.T, reg interfaces.NameResolver) string {
	t.Helper()

	srv, err := New(&Config{
		Zone:     "names.local",
		Registry: reg,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	go srv.Serve(pc, func() { close(started) })
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("dns server did not start")
	}
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
	})
	return pc.LocalAddr().String()
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(&registry.Config{
		Admin:   admin,
		Manager: manager,
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register(manager, interfaces.Name("shop"), alice, resolver))
	require.NoError(t, reg.RegisterSub(alice, interfaces.Name("shop"), interfaces.Name("us"), resolver))
	return reg
}

func exchange(t *testing.T, addr, name string, qtype uint16) *dns.Msg {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	in, _, err := new(dns.Client).Exchange(m, addr)
	require.NoError(t, err)
	return in
}

func TestServeDNS_TXT(t *testing.T) {
	reg := newTestRegistry(t)
	addr := startTestServer(t, reg)
	ctx := context.Background()

	txt, err := LookupTXT(ctx, addr, QueryName("names.local", "shop", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{resolver.String(), "owner=" + alice.String()}, txt)

	txt, err = LookupTXT(ctx, addr, QueryName("names.local.", "shop", "us"))
	require.NoError(t, err)
	assert.Equal(t, []string{resolver.String(), "owner=" + alice.String()}, txt)

	_, err = LookupTXT(ctx, addr, "cafe.names.local.")
	assert.ErrorContains(t, err, "NXDOMAIN")

	_, err = LookupTXT(ctx, addr, "a.b.c.names.local.")
	assert.ErrorContains(t, err, "NXDOMAIN")
}

func TestServeDNS_RenouncedNameKeepsResolver(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.RenounceByOwner(alice, interfaces.Name("shop")))
	addr := startTestServer(t, reg)

	txt, err := LookupTXT(context.Background(), addr, "shop.names.local.")
	require.NoError(t, err)
	assert.Equal(t, []string{resolver.String()}, txt)
}

func TestServeDNS_Rcodes(t *testing.T) {
	addr := startTestServer(t, newTestRegistry(t))

	in := exchange(t, addr, "shop.example.com", dns.TypeTXT)
	assert.Equal(t, dns.RcodeRefused, in.Rcode)

	in = exchange(t, addr, "shop.names.local", dns.TypeA)
	assert.Equal(t, dns.RcodeSuccess, in.Rcode)
	assert.Empty(t, in.Answer)
	assert.True(t, in.Authoritative)

	in = exchange(t, addr, "shop.names.local", dns.TypeTXT)
	require.Len(t, in.Answer, 1)
	assert.Equal(t, uint32(DefaultTTL), in.Answer[0].Header().Ttl)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(&Config{Zone: "names.local"})
	assert.Error(t, err)

	_, err = New(&Config{Registry: new(registry.MockNameRegistry)})
	assert.Error(t, err)

	srv, err := New(&Config{Zone: "names.local", Registry: new(registry.MockNameRegistry)})
	require.NoError(t, err)
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestQueryName(t *testing.T) {
	assert.Equal(t, "shop.names.local.", QueryName("names.local", "shop", ""))
	assert.Equal(t, "us.shop.names.local.", QueryName("names.local.", "shop", "us"))
}

func TestServeDNS_EscapedLabels(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.RegisterSub(alice, interfaces.Name("shop"), interfaces.Name("a.b"), resolver))
	require.NoError(t, reg.Register(manager, interfaces.Name("corner shop\x01"), alice, resolver))
	addr := startTestServer(t, reg)
	ctx := context.Background()

	for _, qname := range []string{
		QueryName("names.local", "shop", "a.b"),
		`a\.b.shop.names.local.`,
		`a\046b.shop.names.local.`,
	} {
		txt, err := LookupTXT(ctx, addr, qname)
		require.NoError(t, err, qname)
		assert.Equal(t, []string{resolver.String(), "owner=" + alice.String()}, txt)
	}

	txt, err := LookupTXT(ctx, addr, QueryName("names.local", "corner shop\x01", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{resolver.String(), "owner=" + alice.String()}, txt)

	// Without unescaping these would be separate labels or literal backslashes.
	_, err = LookupTXT(ctx, addr, "a.b.shop.names.local.")
	assert.ErrorContains(t, err, "NXDOMAIN")
}

func TestEscapeLabel(t *testing.T) {
	for _, name := range []string{"shop", "a.b", `back\slash`, "sp ace", "\x00\xff", "q\"(;)@$"} {
		escaped := escapeLabel(name)
		assert.Equal(t, name, unescapeLabel(escaped), escaped)
	}
	assert.Equal(t, `a\.b`, escapeLabel("a.b"))
	assert.Equal(t, `x\032y`, escapeLabel("x y"))
	assert.Equal(t, "a.b", unescapeLabel(`a\046b`))
	assert.Equal(t, `trailing\`, unescapeLabel(`trailing\`))
}
