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
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"
)

const reaperTestInterval = time.Second

// newReaperHarness builds a Budget driven by a FakeClock and starts one
// reaper on it. The FakeClock is initialized to the system time so deadlines
// derived from it stay plausible.
func newReaperHarness(t *testing.T, recorder MetricsRecorder) (*Budget, *Reaper, *testclock.FakeClock) {
	t.Helper()

	fakeClock := testclock.NewFakeClock(time.Now())
	cfg, err := NewConfig(WithLimit(5), WithReaperInterval(reaperTestInterval))
	require.NoError(t, err)
	b, err := NewBudget(context.Background(), cfg, recorder, logr.Discard(), withClock(fakeClock))
	require.NoError(t, err)

	r := b.StartReaper()
	t.Cleanup(r.Stop)

	// The sweep loop registers its ticker asynchronously; stepping the clock
	// before that would fire into the void.
	require.Eventually(t, fakeClock.HasWaiters, eventuallyTimeout, eventuallyTick,
		"reaper must register its ticker")
	return b, r, fakeClock
}

// leakDoneHandle plants a finished handle directly in the live set,
// simulating a slot the runner path failed to free.
func leakDoneHandle(b *Budget) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := newTaskHandle(b.live.allocateID(), func() {})
	h.markDone()
	b.live.insert(h)
}

func TestReaper_RemovesFinishedHandles(t *testing.T) {
	t.Parallel()
	recorder := &countingRecorder{}
	b, _, fakeClock := newReaperHarness(t, recorder)

	leakDoneHandle(b)
	leakDoneHandle(b)
	require.Equal(t, 2, b.Size())

	fakeClock.Step(reaperTestInterval)
	require.Eventually(t, func() bool { return b.Size() == 0 }, eventuallyTimeout, eventuallyTick,
		"the sweep must reclaim slots held by finished handles")
}

func TestReaper_PublishesLiveCount(t *testing.T) {
	t.Parallel()
	recorder := &countingRecorder{}
	b, _, fakeClock := newReaperHarness(t, recorder)

	release := make(chan struct{})
	defer close(release)
	for i := 0; i < 3; i++ {
		started := make(chan struct{})
		require.True(t, b.TryRun(context.Background(), blockingBody(started, release)).Accepted())
		<-started
	}

	fakeClock.Step(reaperTestInterval)
	require.Eventually(t, func() bool { return recorder.LiveTasks() == 3 }, eventuallyTimeout, eventuallyTick,
		"the sweep must publish the live count")
}

func TestReaper_SurvivesPanickingRecorder(t *testing.T) {
	t.Parallel()
	b, _, fakeClock := newReaperHarness(t, panickyRecorder{})

	leakDoneHandle(b)
	fakeClock.Step(reaperTestInterval)
	require.Eventually(t, func() bool { return b.Size() == 0 }, eventuallyTimeout, eventuallyTick,
		"a panicking gauge port must not stop the sweep")

	// The loop must still be alive for the next tick.
	leakDoneHandle(b)
	require.Eventually(t, fakeClock.HasWaiters, eventuallyTimeout, eventuallyTick)
	fakeClock.Step(reaperTestInterval)
	require.Eventually(t, func() bool { return b.Size() == 0 }, eventuallyTimeout, eventuallyTick,
		"the sweep loop must keep running after a recorder panic")
}

func TestReaper_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	_, r, _ := newReaperHarness(t, &countingRecorder{})
	r.Stop()
	r.Stop()
}

func TestStartReaper_AfterShutdown(t *testing.T) {
	t.Parallel()
	fakeClock := testclock.NewFakeClock(time.Now())
	cfg, err := NewConfig(WithLimit(5), WithReaperInterval(reaperTestInterval))
	require.NoError(t, err)
	b, err := NewBudget(context.Background(), cfg, nil, logr.Discard(), withClock(fakeClock))
	require.NoError(t, err)
	require.NoError(t, b.Shutdown())

	r := b.StartReaper()
	r.Stop()
	assert.False(t, fakeClock.HasWaiters(), "a reaper started after shutdown must not keep a ticker alive")
}

func TestShutdown_StopsReapers(t *testing.T) {
	t.Parallel()
	b, r, _ := newReaperHarness(t, &countingRecorder{})

	require.NoError(t, b.Shutdown())
	// Stop after Shutdown must return immediately rather than hang on an
	// already-terminated loop.
	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(eventuallyTimeout):
		t.Fatal("Stop must not hang after Shutdown")
	}
}
