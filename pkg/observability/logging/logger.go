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

// Package logging wires the push service's logr-based logging to zap and
// defines the verbosity ladder used by all components.
package logging

import (
	"context"

	"github.com/go-logr/logr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// level is shared between Init and SetLevel so verbosity can be adjusted at
// runtime after the root logger has been constructed.
var level = uberzap.NewAtomicLevelAt(zapcore.InfoLevel)

// Init builds the process-wide root logger. Components receive children of
// this logger via constructor parameters or context plumbing; nothing in the
// push service logs through a package-level logger.
func Init(opts ...zap.Opts) logr.Logger {
	allOpts := append([]zap.Opts{
		zap.Level(level),
		zap.RawZapOpts(uberzap.AddCaller()),
	}, opts...)
	logger := zap.New(allOpts...)
	log.SetLogger(logger)
	return logger
}

// SetLevel adjusts the verbosity of the logger built by Init and of every
// logger derived from it.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// NewTestLogger creates a dev-mode zap logger with TRACE verbosity enabled.
func NewTestLogger() logr.Logger {
	return zap.New(
		zap.UseDevMode(true),
		zap.Level(uberzap.NewAtomicLevelAt(zapcore.Level(-1*TRACE))),
		zap.RawZapOpts(uberzap.AddCaller()),
	)
}

// NewTestLoggerIntoContext returns ctx carrying a NewTestLogger, retrievable
// with log.FromContext.
func NewTestLoggerIntoContext(ctx context.Context) context.Context {
	return log.IntoContext(ctx, NewTestLogger())
}
