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
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	logutil "github.com/q3k/wire-server/pkg/observability/logging"
)

// Reaper periodically sweeps its Budget's live set for tasks whose done flag
// is already set and publishes the live count. It is defense in depth: the
// ceiling holds without it, but the gauge stays fresh and slots leaked by a
// runner-path bug get reclaimed.
type Reaper struct {
	budget   *Budget
	interval time.Duration
	clock    clock.WithTicker
	logger   logr.Logger

	// ctx and cancel are assigned at construction, so Stop is safe to call
	// from any goroutine at any point in the reaper's lifetime.
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func newReaper(parentCtx context.Context, b *Budget, interval time.Duration, c clock.WithTicker, logger logr.Logger) *Reaper {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Reaper{
		budget:   b,
		interval: interval,
		clock:    c,
		logger:   logger.WithName("reaper"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// start launches the sweep loop on its own goroutine.
func (r *Reaper) start() {
	go r.run(r.ctx)
}

// Stop terminates the sweep loop and waits for it to exit. Idempotent.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		r.cancel()
		<-r.done
	})
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)

	r.logger.V(logutil.VERBOSE).Info("Reaper started", "interval", r.interval)
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.V(logutil.VERBOSE).Info("Reaper stopped")
			return
		case <-ticker.C():
			r.reap()
		}
	}
}

// reap removes finished handles from the live set and publishes the
// resulting live count.
func (r *Reaper) reap() {
	b := r.budget

	b.mu.Lock()
	for _, h := range b.live.snapshot() {
		if h.isDone() {
			b.live.remove(h.id)
		}
	}
	size := b.live.size()
	b.mu.Unlock()

	r.publishLiveTasks(size)
	r.logger.V(logutil.TRACE).Info("Reaper sweep complete", "liveTasks", size)
}

// publishLiveTasks updates the gauge, containing recorder panics so a broken
// metrics port never takes the sweep loop down.
func (r *Reaper) publishLiveTasks(n int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.V(logutil.DEBUG).Info("Metrics recorder panicked", "panic", fmt.Sprintf("%v", rec))
		}
	}()
	r.budget.recorder.SetLiveTasks(n)
}
