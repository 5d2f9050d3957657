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
	"errors"
	"syscall"
)

// Sentinel errors for the error kinds enumerated in spec §7. Transport and
// master-protocol failures are wrapped with these via fmt.Errorf("%w", ...)
// so callers can distinguish them with errors.Is, the same layering the
// teacher uses between gcsproxy (plain errors) and fs (errno translation).
var (
	// ErrNotOpen covers both NotOpen and AlreadyClosed: attempted I/O on a
	// closed handle.
	ErrNotOpen = errors.New("layout: handle is not open")
	// ErrAlreadyOpen: Open called on an already-open handle (spec §4.5
	// public contract: "calling Open on an already-open handle returns -1").
	ErrAlreadyOpen = errors.New("layout: handle is already open")
	// ErrBadMasterResponse: missing or implausibly-placed "?" separator in
	// the redirect response (spec §4.5 step 7, §7 "MasterBadResponse").
	ErrBadMasterResponse = errors.New("layout: master response is not a valid redirect")
	// ErrRestoreRefused: cache absent, expired, or partial (spec §7).
	ErrRestoreRefused = errors.New("layout: restore refused, cache not eligible")
	// ErrRestoreFailed: Restore exhausted its attempt budget (spec §7).
	ErrRestoreFailed = errors.New("layout: restore failed after all attempts")
	// ErrRepairFailed: the metadata versioning call failed (spec §7).
	ErrRepairFailed = errors.New("layout: repair request failed")
)

// ToErrno maps a wrapper-level error to the POSIX errno the public contract
// promises (spec §4.5 table, §7). An error with no specific mapping passes
// through the syscall.Errno in its chain, if any (e.g. the EPERM a
// not-authorized data open returns); anything else maps to EIO.
func ToErrno(err error) syscall.Errno {
	var errno syscall.Errno
	switch {
	case errors.Is(err, ErrNotOpen):
		return syscall.EBADF
	case errors.Is(err, ErrAlreadyOpen):
		return syscall.EBADF
	case errors.As(err, &errno):
		return errno
	default:
		return syscall.EIO
	}
}
