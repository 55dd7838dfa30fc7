package supervisor

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// killGrace is the configurable grace period the kill protocol waits after
// SIGTERM before escalating to SIGKILL.
const killGrace = 5 * time.Second

// childProc wraps one live child OS process plus the machinery to launch
// it, tail its stdout into the logger, and kill it.
type childProc struct {
	cmd *exec.Cmd
	log *logrus.Entry

	// done is closed exactly once, by the single goroutine started in
	// startChild that owns the cmd.Wait() call; exitErr is only written
	// before that close and so is safe to read by any goroutine after
	// observing done closed. wait() and kill() both just select on done
	// instead of calling cmd.Wait() themselves, since Wait may not be
	// called more than once on the same *exec.Cmd, and both must be safe
	// to call whether or not the process has already exited.
	done    chan struct{}
	exitErr error
}

// startChild launches argv/env and returns a childProc with stdout/stderr
// merged and captured, plus a background reaper goroutine already running.
func startChild(argv []string, env []string, log *logrus.Entry) (*childProc, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	c := &childProc{cmd: cmd, log: log, done: make(chan struct{})}
	go func() {
		c.exitErr = cmd.Wait()
		close(c.done)
	}()
	go c.tailStdout(stdout)
	return c, nil
}

// tailStdout forwards each line of the child's stdout to the logger at info
// level until the pipe closes (which happens on process exit or kill).
func (c *childProc) tailStdout(stdout io.ReadCloser) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		c.log.Info(scanner.Text())
	}
}

// wait blocks until the child exits or ctx is cancelled, whichever comes
// first. A cancelled ctx returns ctx.Err() without reaping the process —
// the caller's kill path is responsible for that, and the exit status is
// still recorded in c.exitErr (and signalled by c.done) for kill to pick up
// later.
func (c *childProc) wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.exitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// kill terminates the child gracefully: SIGTERM, wait up to killGrace for
// exit, then SIGKILL and reap. Always reaps — no zombies. Safe to call
// whether or not the process has already exited.
func (c *childProc) kill() {
	if c.cmd.Process == nil {
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	_ = unix.Kill(c.pid(), unix.SIGTERM)

	select {
	case <-c.done:
		return
	case <-time.After(killGrace):
	}

	_ = unix.Kill(c.pid(), unix.SIGKILL)
	<-c.done
}

// pid returns the child's OS process id, or 0 if it never started.
func (c *childProc) pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}
