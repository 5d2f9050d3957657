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
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/jacobsa/fuse"
	"golang.org/x/sync/errgroup"

	"github.com/cern-eos/eosxd/internal/metrics"
	"github.com/cern-eos/eosxd/internal/transport"
)

// asyncOpen is the one-shot future for an in-flight asynchronous data-server
// open (Design Notes §9 "Async open completion"), built on
// golang.org/x/sync/errgroup the way the teacher uses errgroup to join
// concurrent GCS calls.
type asyncOpen struct {
	group *errgroup.Group
}

// beginAsyncOpenLocked starts an asynchronous data-server open. Caller holds
// Mu and has already checked transport.SupportsAsyncOpen().
func (h *Handle) beginAsyncOpenLocked(ctx context.Context) {
	h.transport.OpenAsync(ctx, h.opaque.Emit(), uint32(h.flags), h.mode)

	g := new(errgroup.Group)
	g.Go(func() error {
		return h.transport.WaitOpenAsync()
	})
	h.async = &asyncOpen{group: g}
}

// joinAsyncOpenLocked blocks for the outcome of an in-flight async open, if
// any, releasing Mu for the duration (spec §5: "MakeOpen may upgrade by
// releasing and reacquiring"). Returns nil if there was nothing to join.
func (h *Handle) joinAsyncOpenLocked() error {
	a := h.async
	if a == nil {
		return nil
	}
	h.Mu.Unlock()
	err := a.group.Wait()
	h.Mu.Lock()
	h.async = nil
	return err
}

// MakeOpen ensures the handle has completed a data-server open, joining any
// pending async open and otherwise performing a synchronous one (spec §4.5
// "Open state machine"). It is the entry point Read/Write/Truncate/Stat/Sync
// call before touching the transport.
func (h *Handle) MakeOpen(ctx context.Context) error {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return h.makeOpenLocked(ctx, nil)
}

func (h *Handle) makeOpenLocked(ctx context.Context, statHint *transport.StatInfo) error {
	if h.st == stateClosed {
		return ErrNotOpen
	}
	if h.st == stateDataOpen {
		return nil
	}
	return h.syncDataOpenLocked(ctx, statHint)
}

// syncDataOpenLocked implements "Synchronous data-server open" (spec §4.5),
// steps 1-5. Caller holds Mu.
func (h *Handle) syncDataOpenLocked(ctx context.Context, statHint *transport.StatInfo) error {
	skipSyncSteps := false

	if h.st == stateAsyncDataOpenPending || h.async != nil {
		if err := h.joinAsyncOpenLocked(); err != nil {
			lastURL := h.transport.LastURL()
			user := usernameOf(lastURL)
			if transport.CodeOf(err) == transport.CodeNotAuthorized && user != "" && !strings.HasPrefix(user, "*") {
				// Credentials lost on redirect: fall through to a sync open,
				// which re-supplies them (spec §4.5 step 1).
			} else {
				h.st = stateClosed
				return err
			}
		} else {
			skipSyncSteps = true
		}
	}

	if !skipSyncSteps {
		if lag := h.cfg.LazyLagOpen(); lag > 0 {
			<-h.clock.After(lag)
		}

		policy := retryPolicy{
			maxAttempts: h.cfg.OpenMaxRetries(),
			backoff:     10 * time.Millisecond,
			retryable: func(err error) bool {
				return transport.CodeOf(err) == transport.CodeStaleRedirect
			},
		}
		err := policy.run(h.clock, func(try int) error {
			h.transport.Redirect(h.lazyURL)
			err := h.transport.Open(ctx, h.opaque.Emit(), uint32(h.flags), h.mode)
			if err != nil && transport.CodeOf(err) == transport.CodeStaleRedirect {
				metrics.StaleRedirectRetries.Inc()
			}
			return err
		})
		if err != nil {
			h.st = stateClosed
			if transport.CodeOf(err) == transport.CodeNotAuthorized {
				return syscall.EPERM
			}
			return err
		}
	}

	h.flags = h.flags.clearCreateTrunc()
	h.st = stateDataOpen
	if id, ok := mgmIDFromURL(h.transport.LastURL()); ok {
		h.inode = fuse.InodeID(id)
	}
	if statHint != nil {
		h.believedSize = statHint.Size
		h.mtime = statHint.Mtime
	}

	h.acquireCacheLocked(false)
	return nil
}

// usernameOf extracts the userinfo username from a URL, used to decide
// whether async-open credential loss should fall through to a sync open
// (spec §4.5 synchronous open step 1).
func usernameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return ""
	}
	return u.User.Username()
}
