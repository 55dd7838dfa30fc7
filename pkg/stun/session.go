package stun

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// session runs one probe's worth of STUN exchanges over an already-bound
// UDP socket. It is scoped to a single Probe call; nothing here outlives
// the socket it was built with.
type session struct {
	conn         *net.UDPConn
	timeout      time.Duration
	retries      int
	retriesDelay time.Duration

	primaryIP   string
	primaryPort uint16

	log *logrus.Entry
}

// classify runs the classic RFC 3489 NAT-type dialogue against the primary
// STUN server: a plain binding request, a change-request asking the server
// to reply from a different IP and port, and (when the mapping looks NATed)
// a pair of follow-up requests against the server's alternate address to
// tell a full-cone/restricted/symmetric NAT apart. It returns the last
// Response consulted (for ext_ip extraction) alongside the NatType. A
// non-nil error means the dialogue could not reach any classification
// (the "changed address missing" case, or a failure to generate a
// transaction id for one of the requests) and the caller must
// treat the result as NatTypeError with no ext_ip.
func (s *session) classify(ctx context.Context, srcIP string) (Response, NatType, error) {
	first, err := s.request(ctx, "first probe", s.primaryIP, s.primaryPort, nil)
	if err != nil {
		return Response{}, NatTypeError, err
	}
	if !first.Ok {
		return first, NatTypeBlocked, nil
	}

	changeIPAndPort := changeRequestAttr(0x00000006)
	resp, err := s.request(ctx, "change request [ext_ip == src_ip]", s.primaryIP, s.primaryPort, changeIPAndPort)
	if err != nil {
		return Response{}, NatTypeError, err
	}

	if first.Ext != nil && first.Ext.IP == srcIP {
		if resp.Ok {
			return resp, NatTypeOpenInternet, nil
		}
		return resp, NatTypeSymmetricUDPFirewall, nil
	}

	if resp.Ok {
		return resp, NatTypeFullConeNat, nil
	}

	if first.Changed == nil {
		return Response{}, NatTypeError, fmt.Errorf("stun: changed address is absent from the first response")
	}

	resp, err = s.request(ctx, "change request [ext_ip != src_ip]", first.Changed.IP, first.Changed.Port, nil)
	if err != nil {
		return Response{}, NatTypeError, err
	}
	if !resp.Ok {
		return resp, NatTypeChangedAddrError, nil
	}

	if addrEqual(resp.Ext, first.Ext) {
		changePort := changeRequestAttr(0x00000002)
		resp2, err := s.request(ctx, "change port", first.Changed.IP, s.primaryPort, changePort)
		if err != nil {
			return Response{}, NatTypeError, err
		}
		if resp2.Ok {
			return resp2, NatTypeRestrictedNat, nil
		}
		return resp2, NatTypeRestrictedPortNat, nil
	}

	return resp, NatTypeSymmetricNat, nil
}

func addrEqual(a, b *Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// request performs one logical STUN request with retry: up to s.retries
// attempts, sleeping s.retriesDelay between them, reusing the same
// transaction id so a late reply to an earlier attempt is still accepted.
func (s *session) request(ctx context.Context, ctxLabel string, ip string, port uint16, payload []byte) (Response, error) {
	txID, err := newTransactionID()
	if err != nil {
		return Response{}, fmt.Errorf("%s: generate transaction id: %w", ctxLabel, err)
	}
	msg := buildMessage(txID, payload)
	addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: int(port)}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		resp, err := s.exchange(msg, txID, addr)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !sleepCtx(ctx, s.retriesDelay) {
			break
		}
	}

	s.log.Errorf("%s: can't perform STUN request after %d retries; last error: %s", ctxLabel, s.retries, lastErr)
	return Response{Ok: false}, nil
}

// exchange sends one datagram and blocks on recv for at most s.timeout.
func (s *session) exchange(msg []byte, txID transactionID, addr *net.UDPAddr) (Response, error) {
	if _, err := s.conn.WriteToUDP(msg, addr); err != nil {
		return Response{}, err
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return Response{}, err
	}

	buf := make([]byte, 2048)
	n, _, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return Response{}, err
	}
	return parseResponse(buf[:n], txID)
}
