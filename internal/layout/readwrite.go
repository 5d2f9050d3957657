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

	"github.com/cern-eos/eosxd/internal/transport"
)

// Read delegates to the transport after ensuring the handle is open (spec
// §4.5 "Read path").
func (h *Handle) Read(ctx context.Context, buf []byte, off int64) (int, error) {
	h.Mu.Lock()
	defer h.Mu.Unlock()

	if h.st == stateClosed {
		return 0, ErrNotOpen
	}
	if err := h.makeOpenLocked(ctx, nil); err != nil {
		return 0, err
	}
	return h.transport.ReadAt(buf, off)
}

// ReadCache returns cached bytes for [off, off+len) iff the whole range lies
// within the first maxCached bytes and the handle is cacheable; otherwise it
// returns ok=false, signalling "fall back to network read" (spec §4.5 "Read
// path"). It never returns an error.
func (h *Handle) ReadCache(buf []byte, off int64, length, maxCached int64) (n int, ok bool) {
	h.Mu.Lock()
	defer h.Mu.Unlock()

	if !h.canCache || h.cacheBuf == nil {
		return 0, false
	}
	if off+length > maxCached {
		return 0, false
	}
	n = h.cacheBuf.ReadData(buf, int(off), int(length))
	return n, true
}

// Write delegates to the transport, lazy-opening on first call (spec §4.5
// "Write path").
func (h *Handle) Write(ctx context.Context, buf []byte, off int64) (int, error) {
	h.Mu.Lock()
	defer h.Mu.Unlock()

	if h.st == stateFresh {
		isCreateOrTrunc := h.flags.createOrTrunc()
		if err := h.lazyOpenLocked(ctx); err != nil {
			return 0, err
		}
		h.st = stateLazilyOpened
		h.acquireCacheLocked(isCreateOrTrunc)
	}
	if h.st == stateClosed {
		return 0, ErrNotOpen
	}
	if err := h.makeOpenLocked(ctx, nil); err != nil {
		return 0, err
	}

	n, err := h.transport.WriteAt(buf, off)
	if err != nil {
		return n, err
	}
	if end := off + int64(n); end > h.believedSize {
		h.believedSize = end
	}
	return n, nil
}

// WriteCache tees a copy into the cache buffer, capped at maxCached (spec
// §4.5 "Write path"). Exceeding the cap skips caching and marks the
// registry entry partial, permanently disqualifying the inode from Restore.
func (h *Handle) WriteCache(buf []byte, off int64, length, maxCached int64) (n int) {
	h.Mu.Lock()
	defer h.Mu.Unlock()

	if !h.canCache || h.cacheBuf == nil {
		return 0
	}
	if off+length > maxCached {
		h.registry.MarkPartial(uint64(h.inode))
		return 0
	}

	n = h.cacheBuf.WriteData(buf[:length], int(off))
	if end := off + int64(n); end > h.maxOffset {
		h.maxOffset = end
	}
	h.registry.RecordWrite(uint64(h.inode), h.maxOffset)
	return n
}

// Truncate delegates to the transport and, on success, updates the
// registry's committed size (spec §4.5 "Truncate").
func (h *Handle) Truncate(ctx context.Context, off int64) error {
	h.Mu.Lock()
	defer h.Mu.Unlock()

	if h.st == stateClosed {
		return ErrNotOpen
	}
	if err := h.makeOpenLocked(ctx, nil); err != nil {
		return err
	}
	if err := h.transport.Truncate(off); err != nil {
		return err
	}
	h.believedSize = off
	if h.canCache {
		h.registry.Truncate(uint64(h.inode), off)
	}
	return nil
}

// Sync lazy-opens if needed and forwards to the transport (spec §4.5
// "Sync()/Stat(out)").
func (h *Handle) Sync(ctx context.Context) error {
	h.Mu.Lock()
	defer h.Mu.Unlock()

	if h.st == stateClosed {
		return ErrNotOpen
	}
	if err := h.makeOpenLocked(ctx, nil); err != nil {
		return err
	}
	return h.transport.Sync(ctx)
}

// Stat lazy-opens if needed; if the handle owns a live cache entry, the
// size it reports is the cached (possibly not yet committed) size, per
// the registry's lookup_size contract (spec §4.4, scenario S6).
func (h *Handle) Stat(ctx context.Context) (transport.StatInfo, error) {
	h.Mu.Lock()
	defer h.Mu.Unlock()

	if h.st == stateClosed {
		return transport.StatInfo{}, ErrNotOpen
	}
	if err := h.makeOpenLocked(ctx, nil); err != nil {
		return transport.StatInfo{}, err
	}

	info, err := h.transport.Stat(ctx)
	if err != nil {
		return info, err
	}
	if size, ok := h.registry.LookupSize(uint64(h.inode)); ok {
		info.Size = size
	}
	return info, nil
}
