package netcfg

import (
	"net"
	"strings"

	"github.com/sirupsen/logrus"
)

// localAddress is a best-effort function returning a single textual IP: the
// host's outbound IPv4/IPv6 address. platformDefaultRouteAddr (built
// per-GOOS; see localaddr_linux.go) is tried first, then interface
// enumeration skipping loopback and container-bridge interfaces. Any error
// is logged and an empty string returned — the caller is expected to
// substitute the UDP wildcard address in that case.
func localAddress(log *logrus.Entry) string {
	if ip := platformDefaultRouteAddr(log); ip != "" {
		return ip
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		log.Errorf("can't get default IP: %s", err)
		return ""
	}
	for _, iface := range ifaces {
		name := strings.ToLower(iface.Name)
		if strings.HasPrefix(name, "lo") || strings.HasPrefix(name, "docker") {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if ip := firstUsableAddr(addrs); ip != "" {
			return ip
		}
	}
	return ""
}

// firstUsableAddr returns the first non-loopback, non-link-local address
// textually, preferring IPv4 to mirror the classic "check IPv4 then IPv6"
// ordering used for default-route lookups.
func firstUsableAddr(addrs []net.Addr) string {
	var v6 string
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() {
			continue
		}
		if ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
		if v6 == "" {
			v6 = ipNet.IP.String()
		}
	}
	return v6
}
