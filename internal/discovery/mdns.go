// Package discovery locates an MPD server on the local network by browsing
// for its mDNS/DNS-SD advertisement.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the DNS-SD service type MPD registers with zeroconf
	// enabled in mpd.conf.
	ServiceType = "_mpd._tcp"

	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."

	// DefaultTimeout bounds a browse when the caller does not set one.
	DefaultTimeout = 3 * time.Second

	// DefaultPort is MPD's standard TCP port.
	DefaultPort = 6600
)

// ErrNotFound is returned when no MPD server answered before the timeout.
var ErrNotFound = errors.New("no MPD server found via mDNS")

// Server is one advertised MPD instance.
type Server struct {
	Instance string
	Host     string
	IP       string
	Port     int
}

// Addr returns the dialable "ip:port" of the server.
func (s Server) Addr() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// Browser finds MPD servers via mDNS.
type Browser struct {
	// Timeout is the longest FindFirst waits for an answer.
	Timeout time.Duration
}

// NewBrowser returns a Browser with the default timeout.
func NewBrowser() *Browser {
	return &Browser{Timeout: DefaultTimeout}
}

// FindFirst returns the first MPD server that answers, or ErrNotFound once
// the timeout elapses.
func (b *Browser) FindFirst(ctx context.Context) (Server, error) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return Server{}, fmt.Errorf("creating mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan Server, 1)
	go func() {
		for entry := range entries {
			if srv, ok := parseEntry(entry); ok {
				select {
				case found <- srv:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return Server{}, fmt.Errorf("browsing for %s: %w", ServiceType, err)
	}

	select {
	case srv := <-found:
		return srv, nil
	case <-ctx.Done():
		// The entry goroutine may have cancelled ctx right after sending.
		select {
		case srv := <-found:
			return srv, nil
		default:
		}
		return Server{}, ErrNotFound
	}
}

// parseEntry converts a service entry to a Server, preferring an IPv4
// address. Entries without any address are skipped.
func parseEntry(entry *zeroconf.ServiceEntry) (Server, bool) {
	if entry == nil {
		return Server{}, false
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return Server{}, false
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return Server{
		Instance: entry.Instance,
		Host:     entry.HostName,
		IP:       ip,
		Port:     port,
	}, true
}
