package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func newEntry(instance string, port int, v4, v6 []net.IP) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = "music.local."
	e.Port = port
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	return e
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry *zeroconf.ServiceEntry
		ok    bool
		addr  string
	}{
		{"ipv4", newEntry("Music Player", 6600, []net.IP{net.ParseIP("192.168.1.20")}, nil), true, "192.168.1.20:6600"},
		{"prefers ipv4", newEntry("Dual", 6601, []net.IP{net.ParseIP("10.0.0.2")}, []net.IP{net.ParseIP("fe80::1")}), true, "10.0.0.2:6601"},
		{"ipv6 only", newEntry("V6", 6600, nil, []net.IP{net.ParseIP("fd00::5")}), true, "[fd00::5]:6600"},
		{"default port", newEntry("NoPort", 0, []net.IP{net.ParseIP("10.0.0.3")}, nil), true, "10.0.0.3:6600"},
		{"no address", newEntry("Ghost", 6600, nil, nil), false, ""},
		{"nil entry", nil, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ok := parseEntry(tt.entry)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && srv.Addr() != tt.addr {
				t.Fatalf("Addr() = %q, want %q", srv.Addr(), tt.addr)
			}
		})
	}
}

func TestNewBrowserDefaults(t *testing.T) {
	if b := NewBrowser(); b.Timeout != DefaultTimeout {
		t.Fatalf("Timeout = %v, want %v", b.Timeout, DefaultTimeout)
	}
}
