// Package dnsserver answers DNS TXT queries from the name registry.
//
// Under the configured zone, "<name>.<zone>" resolves a top-level name and
// "<sub>.<parent>.<zone>" resolves a subname. Labels are decoded from presentation
// format, so "\." and "\DDD" escapes stand for the raw name bytes they encode. The answer
// is a single TXT record whose first string is the resolver and whose second string,
// present only while the name has an active record, is "owner=<address>".
package dnsserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/miekg/dns"
	"github.com/ruteri/peer-name-service/interfaces"
)

// DefaultTTL is used when Config.TTL is zero.
const DefaultTTL = 60

// Config contains the settings of the DNS front-end.
type Config struct {
	// ListenAddr is the UDP address to serve on.
	ListenAddr string

	// Zone is the apex the registry is served under, e.g. "names.local.".
	Zone string

	// TTL of answers, in seconds.
	TTL uint32

	Registry interfaces.NameResolver
	Log      *slog.Logger
}

// Server is a UDP DNS server backed by the registry.
type Server struct {
	cfg  *Config
	zone string
	log  *slog.Logger

	mu  sync.Mutex
	srv *dns.Server
}

// New validates cfg and creates a server.
func New(cfg *Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("dns server requires a registry")
	}
	if cfg.Zone == "" {
		return nil, errors.New("dns zone must be set")
	}
	if _, ok := dns.IsDomainName(cfg.Zone); !ok {
		return nil, fmt.Errorf("invalid dns zone %q", cfg.Zone)
	}

	logger := cfg.Log
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}

	return &Server{
		cfg:  cfg,
		zone: dns.CanonicalName(cfg.Zone),
		log:  logger,
	}, nil
}

// split returns the name labels of qname below the zone, outermost last.
func (s *Server) split(qname string) ([]string, bool) {
	qname = dns.Fqdn(qname)
	if !dns.IsSubDomain(s.zone, dns.CanonicalName(qname)) {
		return nil, false
	}
	labels := dns.SplitDomainName(qname)
	labels = labels[:len(labels)-dns.CountLabel(s.zone)]
	for i, label := range labels {
		labels[i] = unescapeLabel(label)
	}
	return labels, true
}

// unescapeLabel returns the wire bytes of a presentation-format label.
func unescapeLabel(label string) string {
	if !strings.Contains(label, `\`) {
		return label
	}
	var b strings.Builder
	for i := 0; i < len(label); i++ {
		if label[i] != '\\' || i+1 == len(label) {
			b.WriteByte(label[i])
			continue
		}
		if i+3 < len(label) && isDigit(label[i+1]) && isDigit(label[i+2]) && isDigit(label[i+3]) {
			if n := int(label[i+1]-'0')*100 + int(label[i+2]-'0')*10 + int(label[i+3]-'0'); n <= 0xff {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(label[i+1])
		i++
	}
	return b.String()
}

// escapeLabel is the inverse of unescapeLabel.
func escapeLabel(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		switch c := name[i]; {
		case c == '.' || c == '\\' || c == '"' || c == '(' || c == ')' || c == ';' || c == '@' || c == '$':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 0x21 || c > 0x7e:
			fmt.Fprintf(&b, "\\%03d", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// lookup returns the TXT strings for labels, or nil when nothing is recorded.
func (s *Server) lookup(labels []string) []string {
	var owner, resolver interfaces.Identity
	var hasOwner, hasResolver bool

	switch len(labels) {
	case 1:
		name := interfaces.Name(labels[0])
		owner, hasOwner = s.cfg.Registry.OwnerOf(name)
		resolver, hasResolver = s.cfg.Registry.ResolverOf(name)
	case 2:
		parent, sub := interfaces.Name(labels[1]), interfaces.Name(labels[0])
		owner, hasOwner = s.cfg.Registry.SubOwnerOf(parent, sub)
		resolver, hasResolver = s.cfg.Registry.SubResolverOf(parent, sub)
	default:
		return nil
	}

	if !hasResolver && !hasOwner {
		return nil
	}

	var txt []string
	if hasResolver {
		txt = append(txt, resolver.String())
	} else {
		txt = append(txt, "")
	}
	if hasOwner {
		txt = append(txt, "owner="+owner.String())
	}
	return txt
}

// ServeDNS implements dns.Handler.
func (s *Server) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true

	if len(req.Question) != 1 {
		resp.SetRcode(req, dns.RcodeFormatError)
		s.write(w, resp)
		return
	}

	q := req.Question[0]
	labels, inZone := s.split(q.Name)
	switch {
	case !inZone:
		resp.SetRcode(req, dns.RcodeRefused)
	case q.Qclass != dns.ClassINET:
		resp.SetRcode(req, dns.RcodeNotImplemented)
	default:
		txt := s.lookup(labels)
		if txt == nil {
			resp.SetRcode(req, dns.RcodeNameError)
			break
		}
		if q.Qtype == dns.TypeTXT || q.Qtype == dns.TypeANY {
			resp.Answer = append(resp.Answer, &dns.TXT{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: s.cfg.TTL},
				Txt: txt,
			})
		}
	}

	s.log.Debug("DNS query",
		slog.String("name", q.Name),
		slog.String("type", dns.TypeToString[q.Qtype]),
		slog.String("rcode", dns.RcodeToString[resp.Rcode]))
	s.write(w, resp)
}

func (s *Server) write(w dns.ResponseWriter, resp *dns.Msg) {
	if err := w.WriteMsg(resp); err != nil {
		s.log.Warn("Failed to write DNS response", "err", err)
	}
}

// Serve answers queries arriving on pc until Shutdown. started is called once the server
// is accepting queries, if not nil.
func (s *Server) Serve(pc net.PacketConn, started func()) error {
	srv := &dns.Server{PacketConn: pc, Handler: s, NotifyStartedFunc: started}

	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	return srv.ActivateAndServe()
}

// ListenAndServe serves UDP on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	pc, err := net.ListenPacket("udp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(pc, nil)
}

// RunInBackground starts ListenAndServe in a goroutine, logging failures.
func (s *Server) RunInBackground() {
	go func() {
		s.log.Info("Starting DNS server", "listenAddress", s.cfg.ListenAddr, "zone", s.zone)
		if err := s.ListenAndServe(); err != nil {
			s.log.Error("DNS server failed", "err", err)
		}
	}()
}

// Shutdown stops a running server. It is a no-op if the server was never started.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.ShutdownContext(ctx)
}

// LookupTXT queries server for the TXT record of qname.
func LookupTXT(ctx context.Context, server, qname string) ([]string, error) {
	m := new(dns.Msg)
	m.Id = dns.Id()
	m.RecursionDesired = true
	m.Question = []dns.Question{{Name: dns.Fqdn(qname), Qtype: dns.TypeTXT, Qclass: dns.ClassINET}}

	c := new(dns.Client)
	in, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, err
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%s: %s", qname, dns.RcodeToString[in.Rcode])
	}

	var txt []string
	for _, answer := range in.Answer {
		if rr, ok := answer.(*dns.TXT); ok {
			txt = append(txt, rr.Txt...)
		}
	}
	return txt, nil
}

// QueryName returns the DNS name of name, or of sub under name when sub is not empty.
// Name bytes that are not plain label characters are escaped.
func QueryName(zone, name, sub string) string {
	labels := []string{escapeLabel(name)}
	if sub != "" {
		labels = []string{escapeLabel(sub), labels[0]}
	}
	return strings.Join(labels, ".") + "." + dns.Fqdn(zone)
}
