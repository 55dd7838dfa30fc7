//go:build linux

package netcfg

import (
	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

// platformDefaultRouteAddr consults the Linux routing table for the default
// gateway, checking IPv4 then IPv6, and returns the first address of that
// family on the outbound interface.
func platformDefaultRouteAddr(log *logrus.Entry) string {
	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		routes, err := netlink.RouteList(nil, family)
		if err != nil {
			log.Errorf("can't list routes for family %d: %s", family, err)
			continue
		}
		for _, route := range routes {
			if route.Dst != nil {
				continue // not the default route
			}
			if route.LinkIndex <= 0 {
				continue
			}
			link, err := netlink.LinkByIndex(route.LinkIndex)
			if err != nil {
				continue
			}
			addrs, err := netlink.AddrList(link, family)
			if err != nil || len(addrs) == 0 {
				continue
			}
			return addrs[0].IP.String()
		}
	}
	return ""
}
