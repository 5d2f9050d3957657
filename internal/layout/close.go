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

import "context"

// Close runs the 7-step close sequence from spec §4.5 "Close". On a
// write-mode handle, a failed transport close (or an explicit restore
// request) triggers Restore; Restore succeeding overrides the failure and
// Close returns nil.
func (h *Handle) Close(ctx context.Context) error {
	h.Mu.Lock()
	defer h.Mu.Unlock()

	if h.st == stateClosed {
		return ErrNotOpen
	}

	// Step 1: join any async open still in flight.
	_ = h.joinAsyncOpenLocked()

	// Step 2: optional lazy-close lag (test hook).
	if lag := h.cfg.LazyLagClose(); lag > 0 {
		<-h.clock.After(lag)
	}

	// Step 3: mark closed. Once true this never reverts (spec §3 invariant).
	h.st = stateClosed

	// Step 4: stamp registry expiry for a cacheable write-mode handle.
	if h.canCache && h.flags.isWrite() {
		h.registry.StampExpiry(uint64(h.inode))
		if !h.registry.Exists(uint64(h.inode)) {
			h.canCache = false
		}
	}

	// Step 5: close the transport.
	closeErr := h.transport.Close(ctx)

	// Step 6: Restore on a failed or explicitly flagged write-mode close.
	if h.flags.isWrite() && (closeErr != nil || h.restoring) {
		if h.canCache && h.registry.RestoreEligible(uint64(h.inode)) {
			if restoreErr := h.restoreLocked(ctx); restoreErr == nil {
				closeErr = nil
			}
		}
	}

	// Step 7: a creator handle sheds preallocated slack on destruction.
	if h.cacheIsOwner && h.cacheBuf != nil {
		h.cacheBuf.Resize(int(h.maxOffset))
	}

	return closeErr
}

// RequestRestore sets the restore-flag so the next Close attempts Restore
// even if the transport close itself reports success (spec §3 "Handle":
// "restore-flag").
func (h *Handle) RequestRestore() {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	h.restoring = true
}
