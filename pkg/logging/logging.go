// Package logging configures the process-wide logrus logger used by every
// component (STUN client, network prober, supervisor). None of the three
// core components construct their own logger; they're handed a
// *logrus.Entry built here.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the root logger. level accepts the usual logrus level names
// ("debug", "info", "warn", "error"); anything unrecognised falls back to
// info rather than failing startup over a bad log-level string.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	return log
}
