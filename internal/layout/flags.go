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

// Flags is the POSIX-style open-mode bitmask carried on a Handle (spec §3).
type Flags uint32

const (
	FlagRead Flags = 1 << iota
	FlagWrite
	FlagCreate
	FlagTrunc
	FlagAppend
)

// token renders the flag set as the "ro"/"wo"/"rw"[+"cr"][+"tr"] string the
// master's redirect request body carries in eos.client.openflags (spec §4.5
// step 2).
func (f Flags) token() string {
	var t string
	switch {
	case f&FlagWrite != 0 && f&FlagRead != 0:
		t = "rw"
	case f&FlagWrite != 0:
		t = "wo"
	default:
		t = "ro"
	}
	if f&FlagCreate != 0 {
		t += "cr"
	}
	if f&FlagTrunc != 0 {
		t += "tr"
	}
	return t
}

// isWrite reports whether the handle was opened for writing, which gates
// owner-authority caching and Restore eligibility (spec §4.4).
func (f Flags) isWrite() bool {
	return f&FlagWrite != 0
}

// createOrTrunc reports whether the open implies a fresh remote object,
// the condition cacheauthority.AcquireOrReuse's isCreateOrTrunc takes
// (spec §4.4).
func (f Flags) createOrTrunc() bool {
	return f&(FlagCreate|FlagTrunc) != 0
}

// clearCreateTrunc drops CREATE and TRUNC after the first successful open,
// per the Handle invariant in spec §3 ("TRUNC/CREAT cleared after first
// successful open").
func (f Flags) clearCreateTrunc() Flags {
	return f &^ (FlagCreate | FlagTrunc)
}
