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

package layout

import (
	"context"
	"fmt"

	"github.com/cern-eos/eosxd/internal/metrics"
)

// repairLocked issues the inline metadata-side repair request (spec §4.5
// "Repair", §6 "Repair request"). The mgm.zzz=ignore token is a deliberate
// alphabetically-last guard protecting mgm.subcmd from authentication-suffix
// corruption; it is never interpreted by anything, it exists purely to sit
// after subcmd in the body. Caller holds Mu.
func (h *Handle) repairLocked(ctx context.Context, path string) error {
	body := fmt.Sprintf("mgm.cmd=file&mgm.subcmd=version&mgm.zzz=ignore&eos.app=fuse&mgm.purge.version=-1&mgm.path=%s&%s",
		path, h.originalOpaque.Emit())

	_, err := h.transport.Request(ctx, body)
	if err != nil {
		metrics.RepairAttempts.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %v", ErrRepairFailed, err)
	}
	metrics.RepairAttempts.WithLabelValues("succeeded").Inc()
	return nil
}
