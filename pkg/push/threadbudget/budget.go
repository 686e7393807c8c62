/*
Copyright 2025 The Wire Server Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package threadbudget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"

	logutil "github.com/q3k/wire-server/pkg/observability/logging"
)

// shutdownPollInterval is the cadence at which Shutdown probes the live count
// while draining.
const shutdownPollInterval = 10 * time.Millisecond

// Task is the body of a unit of work presented to the admission gate. The
// context is cancelled when CancelAll or Shutdown runs, or when the context
// passed to TryRun ends; the body is expected to observe it at its next
// blocking point.
type Task func(ctx context.Context) error

// MetricsRecorder is the port through which a Budget publishes its
// observability signals. Implementations must be safe for concurrent use. A
// failing (panicking) recorder never disturbs admission decisions.
type MetricsRecorder interface {
	// SetLiveTasks publishes the current live count.
	SetLiveTasks(n int)
	// IncRejected counts one over-budget rejection.
	IncRejected()
}

// noopRecorder is used when no recorder is supplied.
type noopRecorder struct{}

func (noopRecorder) SetLiveTasks(int) {}
func (noopRecorder) IncRejected()     {}

// Budget is the admission controller: it caps the number of concurrently
// live tasks at the configured limit, rejecting excess work outright instead
// of queueing it.
//
// All methods are safe for concurrent use.
type Budget struct {
	limit    int
	grace    time.Duration
	interval time.Duration

	logger   logr.Logger
	clock    clock.WithTicker
	recorder MetricsRecorder

	// parentCtx bounds the lifetime of reapers started from this Budget.
	parentCtx context.Context

	// mu guards live, closed and reapers. The critical sections are O(1) or
	// O(live); none of them spans task execution.
	mu      sync.Mutex
	live    *liveSet
	closed  bool
	reapers []*Reaper

	shutdownOnce sync.Once
}

// BudgetOption mutates a Budget at construction time.
type BudgetOption func(*Budget)

// withClock replaces the wall clock, for deterministic tests.
func withClock(c clock.WithTicker) BudgetOption {
	return func(b *Budget) {
		b.clock = c
	}
}

// NewBudget creates a Budget from a validated Config. A nil recorder
// disables metrics publication.
func NewBudget(ctx context.Context, config *Config, recorder MetricsRecorder, logger logr.Logger, opts ...BudgetOption) (*Budget, error) {
	if config == nil {
		return nil, errors.New("config must not be nil")
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	b := &Budget{
		limit:     config.Limit,
		grace:     config.ShutdownGracePeriod,
		interval:  config.ReaperInterval,
		logger:    logger.WithName("thread-budget"),
		clock:     clock.RealClock{},
		recorder:  recorder,
		parentCtx: ctx,
		live:      newLiveSet(),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.logger.V(logutil.DEFAULT).Info("Thread budget created", "limit", b.limit)
	return b, nil
}

// Limit returns the configured ceiling.
func (b *Budget) Limit() int {
	return b.limit
}

// Size returns the current live count.
func (b *Budget) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live.size()
}

// TryRun presents a task body to the admission gate. If there is budget
// left, the body starts on its own goroutine and TryRun returns
// OutcomeAccepted; the spawned task is already visible to Size at that
// point. Otherwise the body never runs and the rejection outcome tells the
// caller why.
//
// An over-budget rejection emits exactly one "out of budget" log record and
// bumps the rejection counter. Rejections after Shutdown are silent.
func (b *Budget) TryRun(ctx context.Context, body Task) Outcome {
	taskCtx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		return OutcomeRejectedShutdown
	}
	if b.live.size() >= b.limit {
		b.mu.Unlock()
		cancel()
		b.logger.Info("Task rejected: out of budget", "limit", b.limit)
		b.safeIncRejected()
		return OutcomeRejectedOverBudget
	}

	h := newTaskHandle(b.live.allocateID(), cancel)
	b.live.insert(h)
	b.mu.Unlock()

	go b.runTask(taskCtx, h, body)
	return OutcomeAccepted
}

// runTask owns an admitted task until it terminates. Every termination path,
// including a panicking body, flips the handle's done flag and frees its
// slot; failures never escape this goroutine.
func (b *Budget) runTask(ctx context.Context, h *taskHandle, body Task) {
	defer func() {
		h.markDone()
		b.removeHandle(h.id)
		h.cancel()
	}()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(fmt.Errorf("panic: %v", r), "Task body panicked", "taskID", h.id)
		}
	}()

	if err := body(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			b.logger.V(logutil.DEBUG).Info("Task cancelled", "taskID", h.id)
		} else {
			b.logger.V(logutil.DEBUG).Info("Task finished with error", "taskID", h.id, "error", err.Error())
		}
	}
}

// removeHandle drops a task from the live set. Idempotent.
func (b *Budget) removeHandle(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live.remove(id)
}

// CancelAll requests cooperative termination of every live task. It does not
// wait for the bodies to return.
func (b *Budget) CancelAll() {
	b.mu.Lock()
	handles := b.live.snapshot()
	b.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	b.logger.V(logutil.VERBOSE).Info("Cancelled all live tasks", "count", len(handles))
}

// StartReaper starts a background reaper on the configured cadence and
// returns it. The reaper stops when Stop is called on it, when Shutdown
// runs, or when the Budget's parent context ends. A reaper started after
// Shutdown is stopped immediately.
func (b *Budget) StartReaper() *Reaper {
	r := newReaper(b.parentCtx, b, b.interval, b.clock, b.logger)

	b.mu.Lock()
	closed := b.closed
	if !closed {
		b.reapers = append(b.reapers, r)
	}
	b.mu.Unlock()

	if closed {
		// The sweep loop is never launched, so no ticker is created.
		close(r.done)
		r.Stop()
		return r
	}
	r.start()
	return r
}

// Shutdown closes the admission gate, stops the reapers, cancels all live
// tasks and waits up to the configured grace period for them to drain. It
// returns nil once the live set is empty, or a deadline error with the
// number of stragglers still holding slots. Safe to call multiple times;
// only the first call does the work.
func (b *Budget) Shutdown() error {
	var err error
	b.shutdownOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		reapers := make([]*Reaper, len(b.reapers))
		copy(reapers, b.reapers)
		b.mu.Unlock()

		for _, r := range reapers {
			r.Stop()
		}
		b.CancelAll()

		waitErr := wait.PollUntilContextTimeout(context.Background(), shutdownPollInterval, b.grace, true,
			func(context.Context) (bool, error) {
				return b.Size() == 0, nil
			})
		if waitErr != nil {
			remaining := b.Size()
			b.logger.V(logutil.DEFAULT).Info("Shutdown grace period elapsed with tasks still live",
				"remaining", remaining, "gracePeriod", b.grace)
			err = fmt.Errorf("shutdown: %d tasks still live after %v", remaining, b.grace)
			return
		}
		b.logger.V(logutil.DEFAULT).Info("Thread budget shut down cleanly")
	})
	return err
}

// safeIncRejected bumps the rejection counter, containing recorder panics.
func (b *Budget) safeIncRejected() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.V(logutil.DEBUG).Info("Metrics recorder panicked", "panic", fmt.Sprintf("%v", r))
		}
	}()
	b.recorder.IncRejected()
}
