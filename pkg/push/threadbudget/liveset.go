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

// liveSet is the bookkeeping core of a Budget: the set of currently live
// tasks, keyed by task id. Its size is the authoritative live count.
//
// liveSet is NOT self-locking. Every method must be called with the owning
// Budget's mutex held; the single-mutex discipline is what makes the gate's
// check-then-insert atomic.
type liveSet struct {
	tasks  map[uint64]*taskHandle
	nextID uint64
}

func newLiveSet() *liveSet {
	return &liveSet{
		tasks: make(map[uint64]*taskHandle),
	}
}

// allocateID returns a fresh task id. Ids increase monotonically and are
// never reused within the lifetime of the Budget.
func (s *liveSet) allocateID() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

// insert registers a handle in the set.
func (s *liveSet) insert(h *taskHandle) {
	s.tasks[h.id] = h
}

// remove deletes the handle with the given id. Removing an id that is not
// present is a no-op, so the runner and the reaper may race on the same
// finished task.
func (s *liveSet) remove(id uint64) {
	delete(s.tasks, id)
}

// size returns the current live count.
func (s *liveSet) size() int {
	return len(s.tasks)
}

// snapshot returns the current handles as a slice, so callers can iterate
// over them after releasing the mutex.
func (s *liveSet) snapshot() []*taskHandle {
	handles := make([]*taskHandle, 0, len(s.tasks))
	for _, h := range s.tasks {
		handles = append(handles, h)
	}
	return handles
}
