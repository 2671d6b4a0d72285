package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/nerrad567/workbench-core/internal/probe"
)

// DNS-SD service types advertised by network printers.
const (
	ServiceIPP = "_ipp._tcp"
	ServiceRaw = "_pdl-datastream._tcp"

	defaultDomain  = "local."
	defaultTimeout = 4 * time.Second
)

// Logger defines the logging interface used by the Discoverer.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Candidate is a printer seen on the network. It carries exactly the
// fields needed to create a printer; nothing is stored by this package.
type Candidate struct {
	Name     string         `json:"name"`
	Host     string         `json:"host"`
	Port     int            `json:"port"`
	Protocol probe.Protocol `json:"protocol"`
	Path     *string        `json:"path,omitempty"`
	Hostname string         `json:"hostname,omitempty"`
}

// BrowseFunc starts browsing one service type and returns once the query is
// sent; entries arrive asynchronously until ctx is done. It may close entries
// when finished. It matches (*zeroconf.Resolver).Browse.
type BrowseFunc func(ctx context.Context, service, domain string, entries chan *zeroconf.ServiceEntry) error

// Config controls a Discoverer.
type Config struct {
	Domain  string
	Timeout time.Duration
}

// Discoverer browses mDNS for printers.
type Discoverer struct {
	domain  string
	timeout time.Duration
	browse  BrowseFunc
	logger  Logger
}

// New creates a Discoverer that browses with a fresh zeroconf resolver per
// service type.
func New(cfg Config) *Discoverer {
	d := &Discoverer{
		domain:  cfg.Domain,
		timeout: cfg.Timeout,
		browse:  zeroconfBrowse,
		logger:  noopLogger{},
	}
	if d.domain == "" {
		d.domain = defaultDomain
	}
	if d.timeout <= 0 {
		d.timeout = defaultTimeout
	}
	return d
}

// SetLogger sets the logger for the discoverer.
func (d *Discoverer) SetLogger(logger Logger) {
	d.logger = logger
}

// SetBrowseFunc replaces the mDNS transport. Used by tests.
func (d *Discoverer) SetBrowseFunc(fn BrowseFunc) {
	d.browse = fn
}

func zeroconfBrowse(ctx context.Context, service, domain string, entries chan *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("initialising resolver: %w", err)
	}
	return resolver.Browse(ctx, service, domain, entries)
}

// Discover browses both printer service types for the configured window
// and returns de-duplicated candidates sorted by name. A failure to browse
// one service type is logged; Discover only errors when both fail.
func (d *Discoverer) Discover(ctx context.Context) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	services := []string{ServiceIPP, ServiceRaw}

	var (
		mu       sync.Mutex
		seen     = map[string]bool{}
		found    = []Candidate{}
		failures []error
		wg       sync.WaitGroup
	)

	for _, service := range services {
		wg.Add(1)
		go func(service string) {
			defer wg.Done()

			svcCtx, svcCancel := context.WithCancel(ctx)
			defer svcCancel()

			entries := make(chan *zeroconf.ServiceEntry, 16)
			if err := d.browse(svcCtx, service, d.domain, entries); err != nil {
				d.logger.Warn("mdns browse failed", "service", service, "error", err)
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", service, err))
				mu.Unlock()
				return
			}

			// The resolver may or may not close entries when svcCtx ends.
			for {
				select {
				case entry, ok := <-entries:
					if !ok {
						return
					}
					c, valid := CandidateFromEntry(service, entry)
					if !valid {
						continue
					}
					key := fmt.Sprintf("%s|%s|%d", c.Protocol, c.Host, c.Port)
					mu.Lock()
					if !seen[key] {
						seen[key] = true
						found = append(found, c)
					}
					mu.Unlock()
				case <-svcCtx.Done():
					return
				}
			}
		}(service)
	}
	wg.Wait()

	if len(failures) == len(services) {
		return nil, fmt.Errorf("browsing mdns: %w", failures[0])
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].Name != found[j].Name {
			return found[i].Name < found[j].Name
		}
		return found[i].Protocol < found[j].Protocol
	})

	d.logger.Debug("mdns discovery finished", "candidates", len(found))
	return found, nil
}

// CandidateFromEntry converts an mDNS entry for service into a Candidate.
// ok is false for entries without a usable address or port.
func CandidateFromEntry(service string, entry *zeroconf.ServiceEntry) (Candidate, bool) {
	if entry == nil || entry.Port <= 0 {
		return Candidate{}, false
	}

	hostname := strings.TrimSuffix(entry.HostName, ".")
	host := hostname
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	}
	if host == "" {
		return Candidate{}, false
	}

	c := Candidate{
		Name:     unescapeInstance(entry.Instance),
		Host:     host,
		Port:     entry.Port,
		Hostname: hostname,
	}
	if c.Name == "" {
		c.Name = hostname
	}

	switch service {
	case ServiceIPP:
		c.Protocol = probe.ProtocolIPP
		if rp, ok := txtValue(entry.Text, "rp"); ok && rp != "" {
			path := "/" + strings.TrimPrefix(rp, "/")
			c.Path = &path
		}
	case ServiceRaw:
		c.Protocol = probe.ProtocolRaw9100
	default:
		return Candidate{}, false
	}
	return c, true
}

// txtValue returns the value for key in a DNS-SD TXT record list.
// Keys are case-insensitive per RFC 6763.
func txtValue(txt []string, key string) (string, bool) {
	for _, kv := range txt {
		k, v, found := strings.Cut(kv, "=")
		if strings.EqualFold(k, key) {
			if !found {
				return "", true
			}
			return v, true
		}
	}
	return "", false
}

// unescapeInstance removes DNS presentation escapes ("Front\ Desk") from
// an instance name.
func unescapeInstance(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}
