// Package supervise keeps a long-running task alive.
//
// The task runs in its own goroutine with panic recovery. Whenever it returns before the
// parent context is cancelled it is started again after a delay. Consecutive short runs
// double the delay up to MaxDelay; a run that outlives MaxDelay resets it.
package supervise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/onnwee/rolemaster-relay/telemetry"
)

// ErrGraceExpired is returned when the task did not exit within the grace period.
var ErrGraceExpired = errors.New("supervised task did not stop within grace period")

// Options configures Run.
type Options struct {
	Name     string
	Delay    time.Duration // first restart delay (default 2s)
	MaxDelay time.Duration // backoff cap (default 30s)
	Grace    time.Duration // how long to wait for the task on shutdown (default 10s)
}

func (o *Options) defaults() {
	if o.Delay <= 0 {
		o.Delay = 2 * time.Second
	}
	if o.MaxDelay < o.Delay {
		o.MaxDelay = max(30*time.Second, o.Delay)
	}
	if o.Grace <= 0 {
		o.Grace = 10 * time.Second
	}
}

// newBackOff doubles from Delay up to MaxDelay without jitter.
func newBackOff(o Options) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval: o.Delay,
		Multiplier:      2,
		MaxInterval:     o.MaxDelay,
	}
	b.Reset()
	return b
}

// Task is the supervised unit of work. It must return when ctx is cancelled.
type Task func(ctx context.Context) error

// Run supervises task until ctx is cancelled. It returns nil after a clean stop and
// ErrGraceExpired if the task ignored cancellation for longer than Grace.
func Run(ctx context.Context, o Options, task Task) error {
	o.defaults()
	log := slog.Default().With(slog.String("component", "supervise"), slog.String("task", o.Name))
	bo := newBackOff(o)

	for {
		started := time.Now()
		taskCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("task panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
					done <- fmt.Errorf("panic: %v", r)
				}
			}()
			done <- task(taskCtx)
		}()

		var err error
		select {
		case err = <-done:
			cancel()
		case <-ctx.Done():
			cancel()
			return waitGrace(log, done, o.Grace)
		}
		if ctx.Err() != nil {
			return nil
		}

		ran := time.Since(started)
		if ran > o.MaxDelay {
			bo.Reset()
		}
		delay := bo.NextBackOff()
		if telemetry.SupervisorRestarts != nil {
			telemetry.SupervisorRestarts.Inc()
		}
		log.Warn("task exited; restarting",
			slog.Any("err", err),
			slog.Duration("ran", ran),
			slog.Duration("delay", delay))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func waitGrace(log *slog.Logger, done <-chan error, grace time.Duration) error {
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Info("task stopped", slog.Any("err", err))
		}
		return nil
	case <-t.C:
		log.Error("task did not stop within grace period", slog.Duration("grace", grace))
		return ErrGraceExpired
	}
}
