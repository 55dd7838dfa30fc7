package stun

// NatType is the classic RFC 3489 NAT classification of a UDP path.
type NatType int

const (
	// NatTypeError is the default/unknown state: probing failed before a
	// classification could be made.
	NatTypeError NatType = iota
	NatTypeBlocked
	NatTypeOpenInternet
	NatTypeSymmetricUDPFirewall
	NatTypeFullConeNat
	NatTypeRestrictedNat
	NatTypeRestrictedPortNat
	NatTypeSymmetricNat
	NatTypeChangedAddrError
)

// String returns the human-readable label used in logs and in NetCfg diffs.
func (t NatType) String() string {
	switch t {
	case NatTypeBlocked:
		return "Blocked"
	case NatTypeOpenInternet:
		return "Open Internet"
	case NatTypeSymmetricUDPFirewall:
		return "Symmetric UDP Firewall"
	case NatTypeFullConeNat:
		return "Full Cone NAT"
	case NatTypeRestrictedNat:
		return "Restricted NAT"
	case NatTypeRestrictedPortNat:
		return "Restricted Port NAT"
	case NatTypeSymmetricNat:
		return "Symmetric NAT"
	case NatTypeChangedAddrError:
		return "Error when testing on Changed-IP and Port"
	default:
		return ""
	}
}

// Address is an immutable textual IP/port pair as decoded from a STUN
// address attribute.
type Address struct {
	IP   string
	Port uint16
}

// Response is the result of one logical STUN request/response exchange.
// Ok=false means the exchange failed (timeout, protocol error, or retries
// exhausted); the optional fields are then always zero. Ok=true does not
// imply every field is set — only the attributes the server actually sent.
type Response struct {
	Ok      bool
	Ext     *Address
	Src     *Address
	Changed *Address
}

// Info is the outcome of one Probe call. ExtIP is empty when the nat type
// could not be determined. StunIP is the resolved server address actually
// used, sticky across probes on the same Client; it may be empty if
// resolution never succeeded.
type Info struct {
	NatType   NatType
	SrcIP     string
	ExtIP     string
	StunHost  string
	StunIP    string
	StunPort  uint16
}
