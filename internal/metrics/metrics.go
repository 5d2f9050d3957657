// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus counters for the layout wrapper's
// retry and repair/restore paths, the numeric complement to
// internal/logger's event-level logging. It plays the role the teacher's
// common/otel_metrics.go plays for GCS request counts, scoped down to
// client_golang directly since this system has no OpenCensus/OpenTelemetry
// collector to export through.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// StaleRedirectRetries counts error-3005 retries during a synchronous
	// data-server open (spec §4.5 step 3).
	StaleRedirectRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eosxd",
		Subsystem: "layout",
		Name:      "stale_redirect_retries_total",
		Help:      "Number of error-3005 stale-redirect retries during synchronous data-server opens.",
	})

	// RepairAttempts counts inline repair (versioning) requests issued
	// against the master (spec §4.5 "Repair").
	RepairAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eosxd",
		Subsystem: "layout",
		Name:      "repair_attempts_total",
		Help:      "Number of inline repair requests, partitioned by outcome.",
	}, []string{"outcome"})

	// RestoreAttempts counts Restore invocations (spec §4.5 "Restore"),
	// partitioned by outcome (succeeded, refused, failed).
	RestoreAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eosxd",
		Subsystem: "layout",
		Name:      "restore_attempts_total",
		Help:      "Number of cache-replay Restore invocations, partitioned by outcome.",
	}, []string{"outcome"})
)

// MustRegister registers every metric above with reg. Tests typically pass
// a fresh prometheus.NewRegistry() to avoid collisions across packages.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(StaleRedirectRetries, RepairAttempts, RestoreAttempts)
}
