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

// Package cacheauthority is the process-wide registry of write-side cache
// entries that gives a writing client owner authority over its own recent
// bytes (spec §4.4). It plays the role the teacher's gcsproxy.MutableObject
// plays for a single handle's dirty-byte tracking, generalized to a
// registry keyed by inode so that the cache outlives any one Handle and a
// failed Close can Restore from it. Persisted state: none — like the
// teacher's local temp files, entries live only in RAM and are discarded on
// process restart (spec §6 "Persisted state").
package cacheauthority

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cern-eos/eosxd/clock"
	"github.com/cern-eos/eosxd/internal/bytebuffer"
)

// entry is the registry's value type (spec §3 "CacheEntry").
type entry struct {
	buf  *bytebuffer.Buffer
	size int64

	// partial is true once a write has been skipped for exceeding the
	// caller's max-cacheable range; such entries are ineligible for Restore.
	partial bool

	// lifetime is an absolute expiry instant. The zero Time means "while at
	// least one live handle still owns the entry" (spec invariant:
	// lifetime == 0 <=> a live handle holds it); it is never a real wall
	// clock value to compare against.
	lifetime time.Time

	ownerLifetime time.Duration

	// restoreInode is the new inode a Restore replayed this entry's bytes
	// into, or 0 before Restore has completed.
	restoreInode uint64
	// restoreTag correlates log lines across a multi-attempt Restore before
	// a real inode number is known (e.g. mid-retry); see SPEC_FULL.md's
	// DOMAIN STACK entry for google/uuid.
	restoreTag string
}

func (e *entry) live(now time.Time) bool {
	return e.lifetime.IsZero() || now.Before(e.lifetime)
}

// Registry is the process-wide inode -> CacheEntry map, guarded by a single
// exclusive lock (spec §5 "Registry lock"). The zero value is not usable;
// construct with New.
type Registry struct {
	mu    sync.Mutex
	clock clock.Clock
	m     map[uint64]*entry
}

// New returns an empty registry driven by the given clock (use
// clock.RealClock{} in production, a clock.SimulatedClock in tests).
func New(c clock.Clock) *Registry {
	return &Registry{clock: c, m: make(map[uint64]*entry)}
}

// AcquireOrReuse implements spec §4.4's acquire_or_reuse. When
// isCreateOrTrunc, a fresh entry is installed unconditionally (size 0,
// partial false, lifetime zero) and the caller becomes its creator.
// Otherwise an existing live entry's buffer is handed back for reuse; a
// missing or expired entry is never an error, it simply yields
// canCache=false (spec §4.4 "Edge-case policy").
func (r *Registry) AcquireOrReuse(inode uint64, isCreateOrTrunc bool, ownerLifetime time.Duration) (buf *bytebuffer.Buffer, canCache, creator bool, knownSize int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if isCreateOrTrunc {
		e := &entry{buf: bytebuffer.New(), ownerLifetime: ownerLifetime}
		r.m[inode] = e
		return e.buf, true, true, 0
	}

	e, ok := r.m[inode]
	if !ok || !e.live(r.clock.Now()) {
		return nil, false, false, 0
	}

	return e.buf, true, false, e.size
}

// RecordWrite updates size = max(size, endOffset) for inode, if an entry
// exists; its liveness is not checked. A missing entry is a no-op (spec
// §4.4 edge-case policy).
func (r *Registry) RecordWrite(inode uint64, endOffset int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.m[inode]
	if !ok {
		return
	}
	if endOffset > e.size {
		e.size = endOffset
	}
}

// MarkPartial marks inode's entry ineligible for Restore.
func (r *Registry) MarkPartial(inode uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.m[inode]; ok {
		e.partial = true
	}
}

// Truncate sets the entry's committed size to newSize.
func (r *Registry) Truncate(inode uint64, newSize int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.m[inode]; ok {
		e.size = newSize
	}
}

// StampExpiry sets lifetime = now + ownerLifetime on a write-mode close
// (spec §4.4, §4.5 Close step 4). Written exactly once; the original's
// redundant second identical write (Design Notes §9) is intentionally not
// reproduced.
func (r *Registry) StampExpiry(inode uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.m[inode]
	if !ok {
		return
	}
	e.lifetime = r.clock.Now().Add(e.ownerLifetime)
}

// LookupSize returns the entry's size iff it is live (lifetime zero or not
// yet expired), used to report a pending file's size before it is
// committed (spec §4.4, scenario S6).
func (r *Registry) LookupSize(inode uint64) (size int64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.m[inode]
	if !exists || !e.live(r.clock.Now()) {
		return 0, false
	}
	return e.size, true
}

// Exists reports whether inode currently has any registry entry,
// regardless of liveness.
func (r *Registry) Exists(inode uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.m[inode]
	return ok
}

// RestoreEligible reports whether inode's entry is present, live, and not
// partial -- the Restore precondition from spec §4.5.
func (r *Registry) RestoreEligible(inode uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.m[inode]
	if !ok || e.partial || !e.live(r.clock.Now()) {
		return false
	}
	return true
}

// Snapshot returns the buffer and committed size for inode without
// liveness/partial checks, for use by Restore once eligibility has already
// been confirmed. ok is false if the entry has vanished since (concurrent
// Remove).
func (r *Registry) Snapshot(inode uint64) (buf *bytebuffer.Buffer, size int64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.m[inode]
	if !exists {
		return nil, 0, false
	}
	return e.buf, e.size, true
}

// BeginRestore stamps inode's entry with a fresh correlation tag for the
// Restore attempt about to start and returns it for logging.
func (r *Registry) BeginRestore(inode uint64) (tag string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.m[inode]
	if !exists {
		return "", false
	}
	e.restoreTag = uuid.NewString()
	return e.restoreTag, true
}

// SetRestoreInode records the inode a Restore replayed inode's bytes into
// (spec §4.5 Restore step 4).
func (r *Registry) SetRestoreInode(oldInode, newInode uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.m[oldInode]; ok {
		e.restoreInode = newInode
	}
}

// Migrate moves old's entry to newInode, clearing the restore pointer, and
// returns the new inode (or 0 if old has no entry or no pending restore).
// Idempotent: calling it twice leaves at most one entry keyed by newInode
// with restoreInode == 0 (spec §8.6).
func (r *Registry) Migrate(oldInode uint64) (newInode uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.m[oldInode]
	if !ok {
		return 0
	}
	if e.restoreInode == 0 {
		return 0
	}

	newInode = e.restoreInode
	e.restoreInode = 0
	delete(r.m, oldInode)
	r.m[newInode] = e

	return newInode
}

// Remove deletes inode's entry, called from outside the wrapper on unlink
// or eviction (spec §4.4 "Lifecycle").
func (r *Registry) Remove(inode uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, inode)
}
