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

package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/q3k/wire-server/pkg/observability/logging"
	"github.com/q3k/wire-server/pkg/push/metrics"
	"github.com/q3k/wire-server/pkg/push/threadbudget"
	"github.com/q3k/wire-server/version"
)

var (
	metricsAddr = flag.String(
		"metricsAddr",
		":9090",
		"Address the Prometheus metrics endpoint binds to")
)

func main() {
	opts := zap.Options{}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	logger := logging.Init(zap.UseFlagOptions(&opts))
	setupLog := logger.WithName("setup")
	setupLog.Info("Starting push service", "commit", version.CommitSHA, "buildRef", version.BuildRef)

	metrics.Register()

	ctx := ctrl.SetupSignalHandler()
	budget, err := threadbudget.NewBudget(ctx, threadbudget.LoadConfigFromEnv(logger), metrics.Recorder{}, logger)
	if err != nil {
		setupLog.Error(err, "Failed to create thread budget")
		os.Exit(1)
	}
	budget.StartReaper()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(crmetrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              *metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			setupLog.Error(err, "Metrics server failed")
			os.Exit(1)
		}
	}()
	setupLog.Info("Metrics endpoint listening", "addr", *metricsAddr)

	<-ctx.Done()
	setupLog.Info("Termination signal received, shutting down")
	if err := budget.Shutdown(); err != nil {
		setupLog.Error(err, "Thread budget did not drain cleanly")
	}
	if err := srv.Close(); err != nil {
		setupLog.Error(err, "Failed to close metrics server")
	}
}
