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

// Package cgiutil parses and emits the "k=v&k=v" CGI-style query strings
// carried in opaque fields of redirect, repair and restore requests. Unlike
// net/url.Values this preserves insertion order and never escapes values:
// callers are expected to pass already-escaped bytes through untouched.
package cgiutil

import "strings"

// Values is an ordered key -> value mapping parsed from a CGI string.
// Duplicate keys are last-wins; iteration order (via Keys) is insertion
// order of first occurrence, matching how the master's redirect CGI and an
// opaque's merged CGI are re-emitted.
type Values struct {
	order []string
	m     map[string]string
}

// New returns an empty ordered mapping.
func New() *Values {
	return &Values{m: make(map[string]string)}
}

// Parse splits cgi on "&"; each token is split on the first "=". A token
// with no "=" is stored with an empty value. An empty token before a
// leading "&" (or a run of "&&") is tolerated and simply ignored.
func Parse(cgi string) *Values {
	v := New()
	if cgi == "" {
		return v
	}

	for _, tok := range strings.Split(cgi, "&") {
		if tok == "" {
			continue
		}

		k := tok
		val := ""
		if i := strings.IndexByte(tok, '='); i >= 0 {
			k = tok[:i]
			val = tok[i+1:]
		}

		v.Set(k, val)
	}

	return v
}

// Set inserts or overwrites the value for k, last-wins. The first time a
// key is seen its position in iteration order is fixed.
func (v *Values) Set(k, val string) {
	if _, ok := v.m[k]; !ok {
		v.order = append(v.order, k)
	}
	v.m[k] = val
}

// Get returns the value for k and whether it was present.
func (v *Values) Get(k string) (string, bool) {
	val, ok := v.m[k]
	return val, ok
}

// Del removes k, if present, including from iteration order.
func (v *Values) Del(k string) {
	if _, ok := v.m[k]; !ok {
		return
	}
	delete(v.m, k)
	for i, key := range v.order {
		if key == k {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in iteration order.
func (v *Values) Keys() []string {
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}

// Merge overwrites v's entries with those from other, last-wins, appending
// any new keys from other to the end of v's iteration order. This is the
// "merge extra-cgi into the original opaque" step of LazyOpen (spec §4.5
// step 8).
func (v *Values) Merge(other *Values) {
	for _, k := range other.order {
		v.Set(k, other.m[k])
	}
}

// Emit concatenates "k=v" pairs separated by "&" in iteration order.
// Neither Parse nor Emit escapes; callers pass pre-escaped values.
func (v *Values) Emit() string {
	var b strings.Builder
	for i, k := range v.order {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v.m[k])
	}
	return b.String()
}

// Clone returns a deep copy that shares no state with v.
func (v *Values) Clone() *Values {
	c := New()
	for _, k := range v.order {
		c.Set(k, v.m[k])
	}
	return c
}
