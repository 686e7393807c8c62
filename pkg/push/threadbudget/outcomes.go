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

import "strconv"

// Outcome is the result of presenting a task body to the admission gate.
// Rejection is a signalled outcome, not an error: the task body simply does
// not run, and the caller decides what dropping the work means.
type Outcome int

const (
	// OutcomeAccepted indicates the task was admitted and its body is now
	// running on its own goroutine.
	OutcomeAccepted Outcome = iota
	// OutcomeRejectedOverBudget indicates admission was refused because the
	// live count already equals the limit.
	OutcomeRejectedOverBudget
	// OutcomeRejectedShutdown indicates admission was refused because the
	// budget has been shut down.
	OutcomeRejectedShutdown
)

// Accepted reports whether the task body was admitted.
func (o Outcome) Accepted() bool { return o == OutcomeAccepted }

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "Accepted"
	case OutcomeRejectedOverBudget:
		return "RejectedOverBudget"
	case OutcomeRejectedShutdown:
		return "RejectedShutdown"
	default:
		return "Outcome(" + strconv.Itoa(int(o)) + ")"
	}
}
