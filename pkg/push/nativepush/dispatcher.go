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

package nativepush

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	logutil "github.com/q3k/wire-server/pkg/observability/logging"
	"github.com/q3k/wire-server/pkg/push/threadbudget"
)

// Dispatcher hands notifications to the push gateway, one goroutine per
// delivery, with the number of in-flight deliveries capped by the thread
// budget.
type Dispatcher struct {
	budget   *threadbudget.Budget
	gateway  Gateway
	recorder DeliveryRecorder
	clock    clock.PassiveClock
	logger   logr.Logger
}

// DispatcherOption mutates a Dispatcher at construction time.
type DispatcherOption func(*Dispatcher)

// withClock replaces the wall clock, for deterministic tests.
func withClock(c clock.PassiveClock) DispatcherOption {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// NewDispatcher creates a Dispatcher. A nil recorder disables the delivery
// counters.
func NewDispatcher(budget *threadbudget.Budget, gateway Gateway, recorder DeliveryRecorder, logger logr.Logger, opts ...DispatcherOption) (*Dispatcher, error) {
	if budget == nil {
		return nil, errors.New("budget must not be nil")
	}
	if gateway == nil {
		return nil, errors.New("gateway must not be nil")
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	d := &Dispatcher{
		budget:   budget,
		gateway:  gateway,
		recorder: recorder,
		clock:    clock.RealClock{},
		logger:   logger.WithName("native-push"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch presents one notification to the thread budget. It returns true
// if the delivery was admitted and is now running in the background, false
// if it was dropped. Dropping is terminal: the notification is counted and
// logged, and the caller moves on.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) bool {
	outcome := d.budget.TryRun(ctx, func(taskCtx context.Context) error {
		return d.deliver(taskCtx, n)
	})
	if !outcome.Accepted() {
		d.recorder.IncDropped(string(n.Transport))
		d.logger.V(logutil.DEFAULT).Info("Notification dropped",
			"notificationID", n.ID, "recipient", n.Recipient,
			"transport", n.Transport, "outcome", outcome.String())
		return false
	}
	d.logger.V(logutil.TRACE).Info("Notification admitted",
		"notificationID", n.ID, "transport", n.Transport)
	return true
}

// deliver runs on the admitted task's goroutine and blocks on the gateway.
func (d *Dispatcher) deliver(ctx context.Context, n Notification) error {
	transport := string(n.Transport)
	start := d.clock.Now()
	err := d.gateway.Push(ctx, n)
	d.recorder.ObservePushLatency(transport, d.clock.Since(start).Seconds())

	if err != nil {
		d.recorder.IncFailed(transport)
		d.logger.V(logutil.DEBUG).Info("Push gateway refused notification",
			"notificationID", n.ID, "transport", n.Transport, "error", err.Error())
		return err
	}
	d.recorder.IncDelivered(transport)
	return nil
}
