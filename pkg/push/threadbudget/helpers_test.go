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
	"strings"
	"sync"

	"github.com/go-logr/logr"

	logutil "github.com/q3k/wire-server/pkg/observability/logging"
)

// --- Mock Implementations ---

// countingRecorder is a MetricsRecorder that remembers what was published.
type countingRecorder struct {
	mu        sync.Mutex
	liveTasks int
	rejected  int
}

func (r *countingRecorder) SetLiveTasks(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liveTasks = n
}

func (r *countingRecorder) IncRejected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected++
}

func (r *countingRecorder) LiveTasks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveTasks
}

func (r *countingRecorder) Rejected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejected
}

// panickyRecorder fails on every call. Used to verify that a broken metrics
// port never disturbs admission or the reaper.
type panickyRecorder struct{}

func (panickyRecorder) SetLiveTasks(int) { panic("gauge port down") }
func (panickyRecorder) IncRejected()     { panic("counter port down") }

// logRecord is one captured log call.
type logRecord struct {
	level int
	msg   string
	isErr bool
}

// recordingSink is a logr.LogSink that captures every record, so tests can
// assert on the log contract of the admission gate.
type recordingSink struct {
	mu      sync.Mutex
	records []logRecord
}

func (s *recordingSink) Init(logr.RuntimeInfo) {}

func (s *recordingSink) Enabled(int) bool { return true }

func (s *recordingSink) Info(level int, msg string, _ ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, logRecord{level: level, msg: msg})
}

func (s *recordingSink) Error(_ error, msg string, _ ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, logRecord{msg: msg, isErr: true})
}

func (s *recordingSink) WithValues(...any) logr.LogSink { return s }

func (s *recordingSink) WithName(string) logr.LogSink { return s }

// outOfBudgetCount returns how many captured records announce an over-budget
// rejection.
func (s *recordingSink) outOfBudgetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if strings.Contains(rec.msg, "out of budget") {
			n++
		}
	}
	return n
}

// nonDebugCount returns how many captured records sit below the debug
// verbosity threshold.
func (s *recordingSink) nonDebugCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if !rec.isErr && rec.level < logutil.DEBUG {
			n++
		}
	}
	return n
}

// errorCount returns how many captured records were emitted through Error.
func (s *recordingSink) errorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.isErr {
			n++
		}
	}
	return n
}

// blockingBody returns a Task that closes started once running, then blocks
// until release is closed or its context is cancelled.
func blockingBody(started chan<- struct{}, release <-chan struct{}) Task {
	return func(ctx context.Context) error {
		if started != nil {
			close(started)
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// stubbornBody returns a Task that ignores its context entirely and blocks
// until release is closed.
func stubbornBody(release <-chan struct{}) Task {
	return func(context.Context) error {
		<-release
		return nil
	}
}
