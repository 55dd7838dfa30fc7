// Package stun implements the classic (RFC 3489 style) STUN binding and
// NAT-type classification dialogue: binding request, change-request probes,
// and (XOR-)MAPPED-ADDRESS parsing over UDP.
package stun

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Client holds STUN server configuration and the sticky server IP used to
// keep consecutive NAT mappings comparable. It is safe to call Probe
// repeatedly and sequentially from one goroutine; Probe is not reentrant
// (the UDP socket and the sticky-ip read/write are scoped to one call at a
// time, matching the "one probe per check_interval" ordering of the
// supervisor above it).
type Client struct {
	host         string
	port         uint16
	timeout      time.Duration
	retries      int
	retriesDelay time.Duration

	log *logrus.Entry

	mu     sync.Mutex
	stunIP string
}

// NewClient builds a Client for the given STUN server and retry policy.
func NewClient(host string, port uint16, timeout time.Duration, retries int, retriesDelay time.Duration, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		host:         host,
		port:         port,
		timeout:      timeout,
		retries:      retries,
		retriesDelay: retriesDelay,
		log:          log.WithField("component", "stun"),
	}
}

// Probe never returns an error: on any internal failure it logs the cause
// and returns an Info with NatType=NatTypeError and ExtIP="". StunHost and
// StunPort in the result always equal the configured values.
func (c *Client) Probe(ctx context.Context, srcIP string, srcPort uint16) Info {
	natType := NatTypeError
	extIP := ""

	if err := c.probe(ctx, srcIP, srcPort, &natType, &extIP); err != nil {
		c.log.Errorf("can't get STUN info: %s", err)
	}

	c.mu.Lock()
	stunIP := c.stunIP
	c.mu.Unlock()

	return Info{
		NatType:  natType,
		SrcIP:    srcIP,
		ExtIP:    extIP,
		StunHost: c.host,
		StunIP:   stunIP,
		StunPort: c.port,
	}
}

func (c *Client) probe(ctx context.Context, srcIP string, srcPort uint16, natType *NatType, extIP *string) error {
	srcFam, srcAddr, err := c.retriedResolveUDP(ctx, srcIP, srcPort)
	if err != nil {
		return fmt.Errorf("resolve local address: %w", err)
	}

	stunFam, stunAddrs, err := c.retriedResolveUDPAll(ctx, c.host, c.port)
	if err != nil {
		return fmt.Errorf("resolve STUN server: %w", err)
	}

	var candidates []string
	for i, fam := range stunFam {
		if fam == srcFam {
			candidates = append(candidates, stunAddrs[i])
		}
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no STUN address shares the local address family")
	}

	c.mu.Lock()
	if c.stunIP == "" || !contains(candidates, c.stunIP) {
		c.stunIP = candidates[0]
	}
	stunIP := c.stunIP
	c.mu.Unlock()

	network := "udp4"
	if srcFam == "ip6" {
		network = "udp6"
	}
	conn, err := net.ListenUDP(network, srcAddr.(*net.UDPAddr))
	if err != nil {
		return fmt.Errorf("bind local socket: %w", err)
	}
	defer conn.Close()

	sess := &session{
		conn:         conn,
		timeout:      c.timeout,
		retries:      c.retries,
		retriesDelay: c.retriesDelay,
		primaryIP:    stunIP,
		primaryPort:  c.port,
		log:          c.log,
	}

	resp, nt, err := sess.classify(ctx, srcIP)
	*natType = nt
	if resp.Ext != nil {
		*extIP = resp.Ext.IP
	}
	return err
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// retriedResolveUDP resolves one host:port for UDP use, retrying up to
// c.retries times with c.retriesDelay between attempts; the last failure is
// returned if every attempt fails.
func (c *Client) retriedResolveUDP(ctx context.Context, host string, port uint16) (string, net.Addr, error) {
	lastErr := fmt.Errorf("no resolve attempts configured")
	for attempt := 0; attempt < c.retries; attempt++ {
		addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, fmt.Sprint(port)))
		if err == nil {
			fam := "ip4"
			if addr.IP.To4() == nil {
				fam = "ip6"
			}
			return fam, addr, nil
		}
		lastErr = err
		if !sleepCtx(ctx, c.retriesDelay) {
			return "", nil, ctx.Err()
		}
	}
	return "", nil, lastErr
}

// retriedResolveUDPAll resolves every UDP address for host:port (a STUN
// hostname may have multiple A/AAAA records), retrying as above.
func (c *Client) retriedResolveUDPAll(ctx context.Context, host string, port uint16) ([]string, []string, error) {
	lastErr := fmt.Errorf("no resolve attempts configured")
	for attempt := 0; attempt < c.retries; attempt++ {
		ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
		if err == nil && len(ips) > 0 {
			fams := make([]string, len(ips))
			addrs := make([]string, len(ips))
			for i, ip := range ips {
				if ip.To4() != nil {
					fams[i] = "ip4"
				} else {
					fams[i] = "ip6"
				}
				addrs[i] = ip.String()
			}
			return fams, addrs, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("no addresses found for %s", host)
		}
		if !sleepCtx(ctx, c.retriesDelay) {
			return nil, nil, ctx.Err()
		}
	}
	return nil, nil, lastErr
}

// sleepCtx sleeps for d or returns false early if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
