package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestStartChildWaitReturnsOnCleanExit(t *testing.T) {
	proc, err := startChild([]string{"/bin/sh", "-c", "exit 0"}, nil, quietLog())
	if err != nil {
		t.Fatalf("startChild: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := proc.wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if proc.pid() == 0 {
		t.Fatal("expected a non-zero pid")
	}
}

func TestStartChildWaitReturnsExitError(t *testing.T) {
	proc, err := startChild([]string{"/bin/sh", "-c", "exit 7"}, nil, quietLog())
	if err != nil {
		t.Fatalf("startChild: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := proc.wait(ctx); err == nil {
		t.Fatal("expected a non-nil exit error for exit code 7")
	}
}

func TestWaitReturnsContextErrOnCancellation(t *testing.T) {
	proc, err := startChild([]string{"/bin/sh", "-c", "sleep 5"}, nil, quietLog())
	if err != nil {
		t.Fatalf("startChild: %v", err)
	}
	defer proc.kill()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := proc.wait(ctx); err == nil {
		t.Fatal("expected ctx.Err() from wait on a cancelled context")
	}
}

func TestKillTerminatesRunningChild(t *testing.T) {
	proc, err := startChild([]string{"/bin/sh", "-c", "sleep 30"}, nil, quietLog())
	if err != nil {
		t.Fatalf("startChild: %v", err)
	}

	done := make(chan struct{})
	go func() {
		proc.kill()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(killGrace + 2*time.Second):
		t.Fatal("kill did not return in time")
	}

	select {
	case <-proc.done:
	default:
		t.Fatal("expected proc.done to be closed after kill")
	}
}

func TestKillIsSafeAfterNaturalExit(t *testing.T) {
	proc, err := startChild([]string{"/bin/sh", "-c", "exit 0"}, nil, quietLog())
	if err != nil {
		t.Fatalf("startChild: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := proc.wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	done := make(chan struct{})
	go func() {
		proc.kill() // must not block or double-Wait
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("kill() blocked after the child had already exited")
	}
}
