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

// Package transport declares the operations internal/layout calls on the
// underlying remote-file transport (spec §1 "Out of scope": the transport
// itself -- a redirect-based storage protocol client -- is specified only
// at this interface level, the same way the teacher's gcsproxy depends on
// gcs.Bucket without owning its implementation).
//
// Design Notes §9 ("Downcasts to layout subclasses") asks for a capability
// query in place of runtime type identification between transport
// variants: SupportsAsyncOpen/OpenAsync/WaitOpenAsync/LastErrno below are
// that capability surface.
package transport

import (
	"context"
	"fmt"
	"time"
)

// Error-code markers a Transport can report through Error.Code. These are
// domain markers for this spec, not real XRootD wire codes, except for
// CodeStaleRedirect which spec §4.5/§7 names explicitly by number.
const (
	// CodeStaleRedirect is the "error 3005" from spec §4.5 step 3: the
	// sync-open loop retries on this code alone, up to a configured cap.
	CodeStaleRedirect = 3005
	// CodeNotAuthorized marks a not-authorized response from the data
	// server (spec §7 "PermissionDenied"), translated to EPERM at the
	// wrapper boundary.
	CodeNotAuthorized = 3010
)

// Error wraps a transport-level failure with its domain error code.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport: error %d", e.Code)
	}
	return fmt.Sprintf("transport: error %d: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the domain error code from err, or 0 if err is not (or
// does not wrap) a *Error.
func CodeOf(err error) int {
	var te *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			te = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if te == nil {
		return 0
	}
	return te.Code
}

// StatInfo is the subset of remote file metadata the wrapper cares about.
type StatInfo struct {
	Size  int64
	Mtime time.Time
}

// Transport is the per-handle remote-file transport: one instance mediates
// a single open file's lazy (metadata-only) and data-server traffic.
//
// Not safe for concurrent use; internal/layout.Handle serializes access to
// it under its own lock (spec §5).
type Transport interface {
	// Redirect points subsequent calls at url -- either the master's
	// control endpoint or a data server returned in a redirect response.
	Redirect(url string)

	// LastURL returns the URL most recently targeted: the one Redirect set,
	// or, after a successful Open, the data-server URL that open landed on.
	// The wrapper extracts "mgm.id" from it after a successful open.
	LastURL() string

	// Request issues a synchronous control request with the given body
	// (used for the master redirect resolution and for repair, spec
	// §6) and returns the raw response body.
	Request(ctx context.Context, body string) ([]byte, error)

	// Open opens the file for data access synchronously, at the
	// currently-redirected URL, with the given opaque query string,
	// POSIX-style flags bitmask and octal mode.
	Open(ctx context.Context, opaque string, flags uint32, mode uint32) error

	// SupportsAsyncOpen is the capability query from Design Notes §9,
	// replacing a runtime type check against concrete transport
	// subclasses (plain vs. erasure-coded, in the original).
	SupportsAsyncOpen() bool

	// OpenAsync starts an asynchronous open; its outcome is retrieved with
	// WaitOpenAsync. Only called when SupportsAsyncOpen() is true.
	OpenAsync(ctx context.Context, opaque string, flags uint32, mode uint32)

	// WaitOpenAsync blocks for the outcome of the most recent OpenAsync.
	WaitOpenAsync() error

	ReadAt(buf []byte, off int64) (int, error)
	WriteAt(buf []byte, off int64) (int, error)
	Truncate(off int64) error
	Stat(ctx context.Context) (StatInfo, error)
	Sync(ctx context.Context) error
	Close(ctx context.Context) error

	// LastErrno returns the domain error code (see Code* constants above)
	// of the most recent failing operation, or 0.
	LastErrno() int
}

// Factory creates a fresh Transport instance, one per Handle (spec §3
// "Handle": "shared pointer to ... the remote transport handle").
type Factory func() Transport
