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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMustRegister_AndIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg)

	RestoreAttempts.WithLabelValues("succeeded").Inc()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range mfs {
		if mf.GetName() != "eosxd_layout_restore_attempts_total" {
			continue
		}
		for _, m := range mf.Metric {
			for _, l := range m.Label {
				if l.GetName() == "outcome" && l.GetValue() == "succeeded" {
					found = true
					require.GreaterOrEqual(t, m.Counter.GetValue(), float64(1))
				}
			}
		}
	}
	require.True(t, found, "expected restore_attempts_total{outcome=succeeded} to be present")
}
