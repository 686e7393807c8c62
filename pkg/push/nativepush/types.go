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

// Package nativepush dispatches native push notifications to an external
// push gateway, with the concurrency of in-flight deliveries capped by a
// thread budget. Deliveries that do not fit in the budget are dropped and
// counted, never queued.
package nativepush

import (
	"context"

	"github.com/google/uuid"
)

// Transport identifies the native push channel a notification targets.
type Transport string

const (
	TransportGCM         Transport = "gcm"
	TransportAPNS        Transport = "apns"
	TransportAPNSVoIP    Transport = "apns_voip"
	TransportAPNSSandbox Transport = "apns_sandbox"
)

// Notification is one native push delivery request.
type Notification struct {
	// ID identifies the notification for log correlation.
	ID uuid.UUID
	// Recipient is the user the notification addresses.
	Recipient uuid.UUID
	// Transport selects the push channel.
	Transport Transport
	// Payload is the opaque, already-encoded notification body.
	Payload []byte
}

// Gateway is the port to the external push provider. Push blocks until the
// provider has accepted or refused the notification, observing ctx for
// cancellation. Implementations must be safe for concurrent use.
type Gateway interface {
	Push(ctx context.Context, n Notification) error
}

// DeliveryRecorder is the port through which the dispatcher publishes its
// delivery counters. Implementations must be safe for concurrent use.
type DeliveryRecorder interface {
	IncDelivered(transport string)
	IncDropped(transport string)
	IncFailed(transport string)
	ObservePushLatency(transport string, seconds float64)
}

type noopRecorder struct{}

func (noopRecorder) IncDelivered(string) {}
func (noopRecorder) IncDropped(string)   {}
func (noopRecorder) IncFailed(string)    {}

func (noopRecorder) ObservePushLatency(string, float64) {}
