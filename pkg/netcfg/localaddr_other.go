//go:build !linux

package netcfg

import "github.com/sirupsen/logrus"

// platformDefaultRouteAddr has no non-Linux implementation; callers fall
// through to plain interface enumeration, which is sufficient to satisfy
// the local-address discovery algorithm on its own.
func platformDefaultRouteAddr(_ *logrus.Entry) string {
	return ""
}
