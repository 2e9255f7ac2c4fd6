// Package discovery advertises the controller's HTTP API on the local network over mDNS,
// so operators can find the still as <hostname>.local without knowing its address.
package discovery

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/grandcat/zeroconf"

	"still_controller/internal/logger"
)

var ErrNoAddress = errors.New("discovery: no usable interface address")

// Config describes the advertised service. An empty Hostname advertises the OS hostname.
type Config struct {
	Enabled  bool   `mapstructure:"enabled"`
	Hostname string `mapstructure:"hostname"`
	Instance string `mapstructure:"instance"`
	Service  string `mapstructure:"service"`
	Domain   string `mapstructure:"domain"`
	Path     string `mapstructure:"path"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Hostname: "still-device",
		Instance: "Still Controller",
		Service:  "_http._tcp",
		Domain:   "local.",
		Path:     "/api/v1/still/state",
	}
}

// Validate rejects settings zeroconf would advertise as garbage.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.Instance == "":
		return errors.New("discovery: instance must be set")
	case !strings.HasPrefix(c.Service, "_") || !strings.Contains(c.Service, "._"):
		return fmt.Errorf("discovery: service %q must look like _name._tcp", c.Service)
	case c.Domain == "":
		return errors.New("discovery: domain must be set")
	case strings.ContainsAny(c.Hostname, ". "):
		return fmt.Errorf("discovery: hostname %q must be a single label", c.Hostname)
	case c.Path != "" && !strings.HasPrefix(c.Path, "/"):
		return fmt.Errorf("discovery: path %q must start with /", c.Path)
	}
	return nil
}

// TXT returns the TXT records published with the service.
func (c Config) TXT() []string {
	if c.Path == "" {
		return nil
	}
	return []string{"path=" + c.Path}
}

type server interface {
	Shutdown()
}

// registrar publishes the service. host and ips are empty when the OS hostname is used.
type registrar func(c Config, port int, host string, ips, txt []string) (server, error)

func zeroconfRegister(c Config, port int, host string, ips, txt []string) (server, error) {
	if host == "" {
		return zeroconf.Register(c.Instance, c.Service, c.Domain, port, txt, nil)
	}
	return zeroconf.RegisterProxy(c.Instance, c.Service, c.Domain, port, host, ips, txt, nil)
}

// Advertiser keeps the mDNS responder alive until Close.
type Advertiser struct {
	srv server
	log *logger.Logger
}

// Advertise starts answering mDNS queries for the HTTP API on port. A disabled config
// returns a nil Advertiser, which is safe to Close.
func Advertise(c Config, port int, log *logger.Logger) (*Advertiser, error) {
	return advertise(c, port, log, zeroconfRegister, net.InterfaceAddrs)
}

func advertise(c Config, port int, log *logger.Logger, reg registrar, addrs func() ([]net.Addr, error)) (*Advertiser, error) {
	if !c.Enabled {
		return nil, nil
	}
	if log == nil {
		log = logger.Nop()
	}

	var ips []string
	if c.Hostname != "" {
		all, err := addrs()
		if err != nil {
			return nil, fmt.Errorf("discovery: list addresses: %w", err)
		}
		if ips = usableIPs(all); len(ips) == 0 {
			return nil, ErrNoAddress
		}
	}

	srv, err := reg(c, port, c.Hostname, ips, c.TXT())
	if err != nil {
		return nil, fmt.Errorf("discovery: register %s: %w", c.Service, err)
	}
	log.Infow("mdns_advertised",
		"instance", c.Instance,
		"service", c.Service,
		"hostname", c.Hostname,
		"port", port,
		"ips", ips,
	)
	return &Advertiser{srv: srv, log: log}, nil
}

// Close withdraws the advertisement.
func (a *Advertiser) Close() {
	if a == nil || a.srv == nil {
		return
	}
	a.srv.Shutdown()
	a.srv = nil
	a.log.Infow("mdns_withdrawn")
}

// usableIPs keeps unicast addresses a LAN peer could reach.
func usableIPs(addrs []net.Addr) []string {
	var out []string
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipn.IP
		if ip.IsLoopback() || ip.IsUnspecified() || ip.IsMulticast() || ip.IsLinkLocalUnicast() {
			continue
		}
		out = append(out, ip.String())
	}
	return out
}
