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

// Package threadbudget implements the admission controller that caps the
// number of in-flight long-running worker tasks in the notification push
// service.
//
// # Overview
//
// A native-push delivery may block on an external push gateway for seconds.
// Left unchecked, a burst of deliveries would pile up an unbounded number of
// goroutines, each pinning buffers and an upstream connection. The `Budget`
// enforces a hard ceiling instead: callers present a task body to `TryRun`,
// which either admits it (the body runs on its own goroutine) or rejects it
// outright. Over-budget work is dropped, never queued; the caller observes
// the outcome synchronously and a single "out of budget" log record is
// emitted per rejection.
//
// # Architecture
//
//   - The live set (`liveSet`) is the bookkeeping core: a map from task id to
//     `taskHandle`, guarded by the budget's single mutex. Its size is the
//     authoritative live count.
//
//   - The admission gate (`Budget.TryRun`) performs its test-and-register
//     step under that mutex. The critical section is O(1) and never spans
//     task execution: the worker goroutine is spawned strictly after the
//     lock is released.
//
//   - The worker runner (`Budget.runTask`) owns an admitted task until it
//     terminates. Every termination path - normal return, error, panic,
//     cancellation - flips the handle's done flag and removes it from the
//     live set. Failures are contained at this boundary and never reach the
//     caller of `TryRun`.
//
//   - The reaper (`Reaper`) is defense in depth. On a configurable cadence it
//     sweeps the live set for handles whose done flag is already set and
//     publishes the live count as a gauge. Correctness of the ceiling does
//     not depend on it; freshness of the gauge and resilience to runner-path
//     bugs do.
//
// # Concurrency Guarantees
//
//  1. The live count never exceeds the configured limit at any externally
//     observable moment: all size mutations happen under one mutex, and the
//     gate's check-then-insert is atomic within it.
//
//  2. When `TryRun` returns an accepted outcome, the task's handle is already
//     visible to `Size`.
//
//  3. Handle removal is idempotent. The runner and the reaper may race to
//     remove the same finished task; both paths are safe, and the done flag
//     is flipped exactly once via `sync.Once`.
//
// Cancellation is cooperative: `CancelAll` and `Shutdown` cancel each task's
// context, and the body is expected to observe it at its next blocking
// point. A body that ignores its context keeps occupying a slot until it
// returns.
package threadbudget
