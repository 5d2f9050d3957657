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

import "github.com/cern-eos/eosxd/internal/cgiutil"

// authKeys are the authentication parameters that must reach the master's
// control URL (spec §4.5 LazyOpen step 4) but must never be forwarded to a
// data server (spec §4.5 step 8, §8 invariant 8).
var authKeys = []string{
	"xrd.wantprot",
	"xrd.gsiusrpxy",
	"xrd.k5ccname",
	"xrdcl.secuid",
	"xrdcl.secgid",
}

// stripAuthKeys deletes every authKeys entry from v in place.
func stripAuthKeys(v *cgiutil.Values) {
	for _, k := range authKeys {
		v.Del(k)
	}
}

// collectAuthKeys returns the subset of authKeys present in v, as a fresh
// ordered mapping -- used both to forward credentials to the master (step
// 4) and to carry them onto a Restore URL (spec §4.5 Restore step 1).
func collectAuthKeys(v *cgiutil.Values) *cgiutil.Values {
	out := cgiutil.New()
	for _, k := range authKeys {
		if val, ok := v.Get(k); ok {
			out.Set(k, val)
		}
	}
	return out
}
