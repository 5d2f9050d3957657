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

// Package layout implements the FUSE client's per-open-file layout wrapper
// (spec §3-§5): the two-phase (lazy, then data-server) open, the read/write
// path against a remote Transport, the write-side cache that gives a writer
// owner authority over its own recent bytes, and the repair/restore recovery
// paths.
//
// It is grounded on the teacher's gcsproxy.MutableObject/MutableContent for
// the overall "buffered handle wrapping a remote object" shape and on
// fs/inode/file.go for guarding mutable handle state with a
// jacobsa/syncutil.InvariantMutex.
package layout

import (
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/syncutil"

	"github.com/cern-eos/eosxd/clock"
	"github.com/cern-eos/eosxd/internal/bytebuffer"
	"github.com/cern-eos/eosxd/internal/cacheauthority"
	"github.com/cern-eos/eosxd/internal/cgiutil"
	"github.com/cern-eos/eosxd/internal/config"
	"github.com/cern-eos/eosxd/internal/logger"
	"github.com/cern-eos/eosxd/internal/transport"
)

// state is the Handle's open-state machine (spec §4.5 "State machine"):
//
//	Fresh -> LazilyOpened -> (AsyncDataOpenPending | DataOpen) -> Closed
type state int

const (
	stateFresh state = iota
	stateLazilyOpened
	stateAsyncDataOpenPending
	stateDataOpen
	stateClosed
)

// Handle is one FUSE file handle's layout wrapper state (spec §3 "Handle").
// Mutable fields are guarded by Mu, a jacobsa/syncutil.InvariantMutex whose
// invariant function is checkInvariants -- the same pattern the teacher uses
// for fs/inode/file.go's FileInode.Mu.
type Handle struct {
	// Mu guards every field below. Acquire with Mu.Lock(); the invariant
	// checker panics on release if state has gone inconsistent.
	Mu syncutil.InvariantMutex

	// Dependencies, fixed for the handle's lifetime.
	transport transport.Transport
	registry  *cacheauthority.Registry
	clock     clock.Clock
	cfg       *config.Runtime

	// Constant data, set at construction.
	path string
	mode uint32

	// GUARDED_BY(Mu)
	flags Flags
	// opaque is the CGI query string used for data-server traffic: the
	// original opaque merged with the master's extra-CGI, with
	// authentication keys stripped and eos.lfn appended (spec §4.5 step 8-9).
	opaque *cgiutil.Values
	// originalOpaque retains the caller-supplied opaque, auth keys included,
	// for Restore's new-URL construction (spec §4.5 Restore step 1).
	originalOpaque *cgiutil.Values
	// lazyURL is the data-server URL handed back by the lazy open, the
	// target of the subsequent synchronous or asynchronous data open.
	lazyURL string

	inode fuse.InodeID

	st state

	restoring     bool
	inlineRepair  bool
	maxOffset     int64
	believedSize  int64
	atime, mtime  time.Time
	async         *asyncOpen
	cacheBuf      *bytebuffer.Buffer
	cacheIsOwner  bool
	canCache      bool
	ownerLifetime time.Duration
}

// Deps bundles a Handle's collaborators, one set shared by every Handle a
// mount creates (spec §3's "shared pointer to a cache buffer" etc. are
// per-handle; the registry, clock and config below are the process-wide
// collaborators a Handle is built from).
type Deps struct {
	Transport     transport.Transport
	Registry      *cacheauthority.Registry
	Clock         clock.Clock
	Config        *config.Runtime
	OwnerLifetime time.Duration
}

// New constructs a Fresh handle for path, not yet opened.
func New(path string, flags Flags, mode uint32, opaque *cgiutil.Values, deps Deps) *Handle {
	if opaque == nil {
		opaque = cgiutil.New()
	}
	h := &Handle{
		transport:      deps.Transport,
		registry:       deps.Registry,
		clock:          deps.Clock,
		cfg:            deps.Config,
		path:           path,
		mode:           mode,
		flags:          flags,
		opaque:         opaque.Clone(),
		originalOpaque: opaque.Clone(),
		st:             stateFresh,
		ownerLifetime:  deps.OwnerLifetime,
	}
	h.Mu = syncutil.NewInvariantMutex(h.checkInvariants)
	return h
}

// checkInvariants enforces the Handle invariants from spec §3:
//
//   - opened implies not closed
//   - max-offset <= cache-buffer.size(), whenever a cache buffer is held
//   - CREATE/TRUNC are absent from flags once any open has succeeded
func (h *Handle) checkInvariants() {
	if h.cacheBuf != nil && h.maxOffset > int64(h.cacheBuf.Size()) {
		panic("layout: max written offset exceeds cache buffer size")
	}
	if h.st == stateDataOpen && h.flags&(FlagCreate|FlagTrunc) != 0 {
		// CREATE/TRUNC are cleared as part of the open transition itself
		// (see lazyOpenLocked/syncDataOpenLocked); reaching stateDataOpen
		// with either still set means that step was skipped.
		panic("layout: CREATE/TRUNC not cleared after successful open")
	}
}

func (h *Handle) logf(format string, args ...any) {
	logger.Debugf("layout[%s]: "+format, append([]any{h.path}, args...)...)
}

// Inode returns the remote inode number learned from the master, or 0
// before any successful open.
func (h *Handle) Inode() uint64 {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return uint64(h.inode)
}

// IsOpen reports whether the handle has completed the full open sequence
// (lazy open and data-server open) and is not yet closed.
func (h *Handle) IsOpen() bool {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return h.st == stateDataOpen
}
