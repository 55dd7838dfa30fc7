// Package netcfg composes local-address discovery with STUN probing into a
// comparable network-configuration snapshot the supervisor can diff against.
package netcfg

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pikvm/live777runner/pkg/stun"
)

// Cfg is structurally identical to stun.Info; equality between two Cfg
// values is what decides whether the supervised child needs a relaunch.
// The zero value has NatType=stun.NatTypeError and every other field at its
// zero value, matching "no network observed yet".
type Cfg struct {
	NatType  stun.NatType
	SrcIP    string
	ExtIP    string
	StunHost string
	StunIP   string
	StunPort uint16
}

// Prober combines local-address discovery with a STUN client to produce a
// Cfg snapshot on demand.
type Prober struct {
	stun         *stun.Client
	log          *logrus.Entry
	localAddress func(*logrus.Entry) string
}

// NewProber builds a Prober around an already-configured STUN client.
func NewProber(stunClient *stun.Client, log *logrus.Entry) *Prober {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Prober{stun: stunClient, log: log.WithField("component", "netcfg"), localAddress: localAddress}
}

// NewProberWithLocalAddress is NewProber with the local-address discovery
// step swapped out; production callers want NewProber, this is for driving
// a Prober's "no network" case from a known local-address result instead of
// whatever this host's routing table happens to yield.
func NewProberWithLocalAddress(stunClient *stun.Client, log *logrus.Entry, localAddress func(*logrus.Entry) string) *Prober {
	p := NewProber(stunClient, log)
	p.localAddress = localAddress
	return p
}

// Probe discovers the local outbound address, probes the STUN server from it
// (substituting the wildcard address so the OS still picks a route when
// nothing could be discovered), and lifts the resulting stun.Info into a
// Cfg. Cfg.SrcIP reports the address actually discovered, not the wildcard
// substitution: an interface-enumeration failure surfaces as Cfg.SrcIP == ""
// even though the STUN probe itself still went out on 0.0.0.0.
func (p *Prober) Probe(ctx context.Context) Cfg {
	discovered := p.localAddress(p.log)

	bindIP := discovered
	if bindIP == "" {
		bindIP = "0.0.0.0"
	}

	info := p.stun.Probe(ctx, bindIP, 0)
	return Cfg{
		NatType:  info.NatType,
		SrcIP:    discovered,
		ExtIP:    info.ExtIP,
		StunHost: info.StunHost,
		StunIP:   info.StunIP,
		StunPort: info.StunPort,
	}
}
