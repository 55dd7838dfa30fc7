package supervisor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pikvm/live777runner/pkg/netcfg"
)

// deathBackoff is the crude backoff bounding restart storms after an
// unexpected child death.
const deathBackoff = 1 * time.Second

// runChildLoop is the supervisory task for one child epoch: launch, tail
// stdout until exit, and on any non-cancellation exit log it, ensure the
// child is killed, sleep deathBackoff, and relaunch. On cancellation it
// returns immediately, leaving the residual kill to the Stop path so
// cancellation is never silently swallowed mid-wait.
func runChildLoop(ctx context.Context, tmpl cmdTemplate, cfg netcfg.Cfg, log *logrus.Entry, setCurrent func(*childProc)) {
	argv := tmpl.render(cfg)
	env := childEnv(cfg)

	for {
		if ctx.Err() != nil {
			return
		}

		proc, err := startChild(argv, env, log)
		if err != nil {
			log.Errorf("can't start the child: %s", err)
		} else {
			setCurrent(proc)
			log.Infof("started child pid=%d: %v", proc.pid(), argv)
			waitErr := proc.wait(ctx)
			if ctx.Err() != nil {
				return // cancelled: Stop's kill path reaps the residual process
			}
			if waitErr != nil {
				log.Errorf("unexpected child error: pid=%d: %s", proc.pid(), waitErr)
			} else {
				log.Errorf("child unexpectedly died: pid=%d", proc.pid())
			}
			proc.kill()
		}

		if !sleepCtx(ctx, deathBackoff) {
			return
		}
	}
}
