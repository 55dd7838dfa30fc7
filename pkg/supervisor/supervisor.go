// Package supervisor owns the lifecycle of the supervised child process: it
// runs the network probe on an interval, and on meaningful change stops the
// running child (if any) and starts a new one templated from the current
// network configuration.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pikvm/live777runner/pkg/netcfg"
)

// Config holds the supervisor's check cadence and the argv pieces used to
// build the child's command line.
type Config struct {
	CheckInterval      time.Duration
	CheckRetries       int
	CheckRetriesDelay  time.Duration

	Cmd       []string
	CmdRemove []string
	CmdAppend []string
}

// Supervisor runs the outer probe/compare/restart loop: it probes the
// network on an interval and, whenever the result changes meaningfully,
// stops the running child (if any) and starts a new one templated from the
// fresh configuration. At most one child process is tracked at a time; start
// and stop are mutually exclusive via startStopMu, so a restart always fully
// stops the old child before starting the new one.
type Supervisor struct {
	cfg     Config
	prober  *netcfg.Prober
	tmpl    cmdTemplate
	log     *logrus.Entry

	// startStopMu guards start/stop so that no two start/stop transitions
	// can interleave. A redundant stop on an already-stopped supervisor is
	// a safe no-op once it observes taskCancel == nil.
	startStopMu sync.Mutex
	taskCancel  context.CancelFunc
	taskDone    chan struct{}

	// currentProc is written only by the supervisory task goroutine and
	// read only by stopLocked after it has observed taskDone closed; the
	// channel close/receive pair is what makes that handoff race-free.
	currentProc *childProc
}

// New builds a Supervisor. prober performs the combined local-address +
// STUN probe; cfg.Cmd/CmdRemove/CmdAppend are compiled into the effective
// argv template once, up front.
func New(cfg Config, prober *netcfg.Prober, log *logrus.Entry) *Supervisor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Supervisor{
		cfg:    cfg,
		prober: prober,
		tmpl:   buildTemplate(cfg.Cmd, cfg.CmdRemove, cfg.CmdAppend),
		log:    log.WithField("component", "supervisor"),
	}
}

// Run blocks until ctx is cancelled, probing the network on cfg.CheckInterval
// and restarting the child whenever the resulting Cfg changes. It always
// returns normally on cancellation, after stopping any running child.
func (s *Supervisor) Run(ctx context.Context) {
	s.log.Info("starting live777 runner ...")
	s.log.Info("probing the network first time ...")

	var prev *netcfg.Cfg
	for {
		cfg, recovered := s.probeWithRetry(ctx, prev)
		if ctx.Err() != nil {
			break
		}
		if recovered {
			s.log.Info("I'm fine, continue working ...")
		}

		if prev == nil || cfg != *prev {
			s.log.Infof("got new network config: %+v", cfg)
			if cfg.SrcIP != "" {
				s.restart(cfg)
			} else {
				s.log.Error("empty src_ip; stopping the child ...")
				s.Stop()
			}
			c := cfg
			prev = &c
		}

		if !sleepCtx(ctx, s.cfg.CheckInterval) {
			break
		}
	}

	s.Stop()
	s.log.Info("bye-bye")
}

// probeWithRetry runs the network probe with a simple retry policy: exactly
// one attempt on the very first iteration (prev == nil), otherwise up to
// CheckRetries attempts stopping as soon as a probe returns a non-empty
// ExtIP. recovered reports whether retries were consumed and the final probe
// still succeeded (a "continuing" note).
func (s *Supervisor) probeWithRetry(ctx context.Context, prev *netcfg.Cfg) (netcfg.Cfg, bool) {
	attempts := s.cfg.CheckRetries
	if prev == nil {
		attempts = 1
	}
	if attempts < 1 {
		attempts = 1
	}

	var cfg netcfg.Cfg
	for attempt := 0; attempt < attempts; attempt++ {
		cfg = s.prober.Probe(ctx)
		if cfg.ExtIP != "" {
			return cfg, attempt != 0
		}
		if attempt != attempts-1 {
			if !sleepCtx(ctx, s.cfg.CheckRetriesDelay) {
				return cfg, false
			}
		}
	}
	return cfg, false
}

// restart stops the current child (if any) and starts a new one templated
// from cfg, as one atomic foreground transition.
func (s *Supervisor) restart(cfg netcfg.Cfg) {
	s.startStopMu.Lock()
	defer s.startStopMu.Unlock()

	s.stopLocked()
	s.startLocked(cfg)
}

// Stop cancels the running supervisory task (if any), waits for it to
// finish, then clears the handles. Safe to call when nothing is running.
func (s *Supervisor) Stop() {
	s.startStopMu.Lock()
	defer s.startStopMu.Unlock()
	s.stopLocked()
}

func (s *Supervisor) startLocked(cfg netcfg.Cfg) {
	if s.taskCancel != nil {
		panic("supervisor: start called while a task is already running")
	}
	s.log.Info("starting the child ...")

	taskCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.taskCancel = cancel
	s.taskDone = done

	go func() {
		defer close(done)
		runChildLoop(taskCtx, s.tmpl, cfg, s.log, func(p *childProc) { s.currentProc = p })
	}()
}

func (s *Supervisor) stopLocked() {
	if s.taskCancel == nil {
		return // no task running: a queued second stop is a no-op
	}
	s.log.Info("stopping the child ...")
	s.taskCancel()
	<-s.taskDone
	s.taskCancel = nil
	s.taskDone = nil

	// Force-kill any residual child process. Safe to read currentProc
	// here without a lock: the goroutine above only writes it before
	// closing taskDone, which we've just received from.
	if s.currentProc != nil {
		s.currentProc.kill()
		s.currentProc = nil
	}
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
