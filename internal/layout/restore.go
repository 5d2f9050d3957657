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
	"errors"
	"fmt"
	"time"

	"github.com/cern-eos/eosxd/internal/bytebuffer"
	"github.com/cern-eos/eosxd/internal/cacheauthority"
	"github.com/cern-eos/eosxd/internal/metrics"
	"github.com/cern-eos/eosxd/internal/transport"
)

// restoreBlockSize is the chunk size Restore streams the cache buffer in
// (spec §4.5 "Restore", step 3).
const restoreBlockSize = 4 << 20 // 4 MiB

const (
	restoreMaxAttempts = 3
	restoreBackoff     = 5 * time.Second
)

// restoreLocked replays the cache buffer to a freshly opened remote file
// when a write-mode Close could not durably commit (spec §4.5 "Restore").
// Preconditions (cacheable, entry present, not partial) are assumed already
// checked by the caller under the registry lock; restoreLocked re-derives
// them from the registry itself since it, not the handle, is authoritative.
// Caller holds Mu.
func (h *Handle) restoreLocked(ctx context.Context) error {
	if h.cfg.RestoreDisabled() {
		metrics.RestoreAttempts.WithLabelValues("refused").Inc()
		return ErrRestoreRefused
	}
	if !h.registry.RestoreEligible(uint64(h.inode)) {
		metrics.RestoreAttempts.WithLabelValues("refused").Inc()
		return ErrRestoreRefused
	}
	buf, size, ok := h.registry.Snapshot(uint64(h.inode))
	if !ok {
		metrics.RestoreAttempts.WithLabelValues("refused").Inc()
		return ErrRestoreRefused
	}

	tag, _ := h.registry.BeginRestore(uint64(h.inode))
	h.logf("restore[%s]: starting, size=%d", tag, size)

	restoreOpaque := collectAuthKeys(h.originalOpaque)
	restoreOpaque.Set("eos.atomic", "1")
	restoreOpaque.Set("eos.app", "restore")
	if encoded, ok := h.originalOpaque.Get("eos.encodepath"); ok {
		restoreOpaque.Set("eos.encodepath", encoded)
	}

	rt := h.transport
	policy := retryPolicy{
		maxAttempts: restoreMaxAttempts,
		backoff:     restoreBackoff,
		// Only streamCacheToTransport's peek failure wraps ErrRestoreFailed;
		// it ends the Restore instead of starting another attempt.
		retryable: func(err error) bool {
			return !errors.Is(err, ErrRestoreFailed)
		},
	}

	err := policy.run(h.clock, func(try int) error {
		h.logf("restore[%s]: attempt %d", tag, try)

		rt.Redirect(h.lazyURL)
		if err := rt.Open(ctx, restoreOpaque.Emit(), uint32(FlagWrite|FlagCreate), h.mode); err != nil {
			return fmt.Errorf("restore open: %w", err)
		}

		if err := streamCacheToTransport(rt, buf, size); err != nil {
			// A peek failure aborts Restore outright; a write failure aborts
			// only this attempt but still proceeds to close (spec §4.5
			// Restore step 3).
			_ = rt.Close(ctx)
			return err
		}

		if err := rt.Close(ctx); err != nil {
			return fmt.Errorf("restore close: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.RestoreAttempts.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}

	newID, ok := mgmIDFromURL(rt.LastURL())
	if !ok {
		metrics.RestoreAttempts.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: new handle's URL carries no mgm.id", ErrRestoreFailed)
	}
	h.registry.SetRestoreInode(uint64(h.inode), newID)

	metrics.RestoreAttempts.WithLabelValues("succeeded").Inc()
	h.logf("restore[%s]: succeeded, new inode=%x", tag, newID)
	return nil
}

// streamCacheToTransport writes buf's first size bytes to rt in
// restoreBlockSize blocks using PeekData/ReleasePeek (spec §4.5 Restore
// step 3). A peek error is fatal to the whole Restore (returned directly);
// a write error aborts only the current attempt.
func streamCacheToTransport(rt transport.Transport, buf *bytebuffer.Buffer, size int64) error {
	for off := int64(0); off < size; off += restoreBlockSize {
		n := restoreBlockSize
		if remaining := size - off; remaining < int64(n) {
			n = int(remaining)
		}

		block := buf.PeekData(int(off), n)
		if len(block) == 0 {
			buf.ReleasePeek()
			return fmt.Errorf("%w: peek at offset %d yielded nothing", ErrRestoreFailed, off)
		}

		_, writeErr := rt.WriteAt(block, off)
		buf.ReleasePeek()
		if writeErr != nil {
			return fmt.Errorf("restore write at offset %d: %w", off, writeErr)
		}
	}
	return nil
}

// CacheRestore is the outer caller's (upper filesystem's) follow-up to a
// successful restoreLocked: it migrates the registry entry from the old
// inode to the restored one and clears the restore pointer. Idempotent
// (spec §8 invariant 6, scenario S2): a second call finds no pending
// restore and returns 0, false.
func CacheRestore(registry *cacheauthority.Registry, externalInode uint64) (newInode uint64, migrated bool) {
	newInode = registry.Migrate(externalInode)
	return newInode, newInode != 0
}
