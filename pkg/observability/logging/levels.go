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

package logging

// Verbosity levels for logr.Logger.V(...) calls across the push service.
// Records emitted without V (or with V(DEFAULT)) are operationally
// significant; DEBUG and TRACE are for development and deep diagnosis.
const (
	// DEFAULT is for informational records that operators should see.
	DEFAULT = 1
	// VERBOSE is for records useful when observing a component closely.
	VERBOSE = 2
	// DEBUG is for per-operation diagnostics.
	DEBUG = 3
	// TRACE is for high-frequency records on hot paths.
	TRACE = 4
)
