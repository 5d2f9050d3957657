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

// acquireCacheLocked runs the "Cache acquisition" step from spec §4.5,
// executed after any open path (lazy, sync, or async). Caller holds Mu.
// reusedLive reports whether a pre-existing, non-creator entry was adopted
// -- the condition under which Open downgrades a requested data open to a
// lazy one, since the cached prefix can already answer reads.
func (h *Handle) acquireCacheLocked(isCreateOrTrunc bool) (reusedLive bool) {
	if h.inode == 0 || h.cacheBuf != nil {
		return false
	}

	buf, canCache, creator, size := h.registry.AcquireOrReuse(uint64(h.inode), isCreateOrTrunc, h.ownerLifetime)
	if !canCache {
		return false
	}

	h.cacheBuf = buf
	h.canCache = true
	h.cacheIsOwner = creator
	if !creator {
		h.believedSize = size
		h.maxOffset = int64(buf.Size())
		return true
	}
	return false
}
