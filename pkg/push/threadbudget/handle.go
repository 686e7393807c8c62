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
	"sync"
)

// taskHandle is the bookkeeping record for one admitted task. It owns the
// task's cancellation hook and its done flag.
//
// # Concurrency
//
// `markDone` is the one point of contention: the worker runner flips the flag
// on task termination while the reaper probes it concurrently.
// `sync.Once` guarantees the flag is flipped exactly once; the `done` channel
// makes the flip observable without blocking. `id` and `cancel` are set at
// creation and never modified.
type taskHandle struct {
	// id uniquely identifies the task within its Budget for the lifetime of
	// the process. Ids are never reused.
	id uint64
	// cancel requests cooperative termination of the task body. Idempotent.
	cancel context.CancelFunc

	// done is closed exactly once, when the task body has returned.
	done chan struct{}
	// onceDone guards the closing of done.
	onceDone sync.Once
}

func newTaskHandle(id uint64, cancel context.CancelFunc) *taskHandle {
	return &taskHandle{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// markDone flips the done flag. Safe to call from any goroutine, any number
// of times.
func (h *taskHandle) markDone() {
	h.onceDone.Do(func() {
		close(h.done)
	})
}

// isDone reports whether the task body has returned, without blocking.
func (h *taskHandle) isDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
