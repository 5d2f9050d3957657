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

package cgiutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEmit_RoundTrip(t *testing.T) {
	v := Parse("eos.app=fuse&mgm.pcmd=redirect&mgm.id=1234")
	assert.Equal(t, "eos.app=fuse&mgm.pcmd=redirect&mgm.id=1234", v.Emit())
}

func TestParse_DuplicateKeysLastWins(t *testing.T) {
	v := Parse("a=1&b=2&a=3")
	val, ok := v.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "3", val)
	// Position is fixed at first occurrence.
	assert.Equal(t, []string{"a", "b"}, v.Keys())
}

func TestParse_LeadingEmptyToken(t *testing.T) {
	v := Parse("&a=1")
	val, ok := v.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", val)
}

func TestParse_NoEqualsSign(t *testing.T) {
	v := Parse("justakey")
	val, ok := v.Get("justakey")
	assert.True(t, ok)
	assert.Equal(t, "", val)
}

func TestParse_ValueContainsEquals(t *testing.T) {
	v := Parse("xrd.wantprot=unix=krb5")
	val, ok := v.Get("xrd.wantprot")
	assert.True(t, ok)
	assert.Equal(t, "unix=krb5", val)
}

func TestMerge_LastWinsAndAppendsNewKeys(t *testing.T) {
	v := Parse("a=1&b=2")
	other := Parse("b=99&c=3")
	v.Merge(other)

	assert.Equal(t, "a=1&b=99&c=3", v.Emit())
}

func TestDel(t *testing.T) {
	v := Parse("a=1&b=2&c=3")
	v.Del("b")
	assert.Equal(t, "a=1&c=3", v.Emit())

	_, ok := v.Get("b")
	assert.False(t, ok)
}

func TestClone_Independent(t *testing.T) {
	v := Parse("a=1")
	c := v.Clone()
	c.Set("a", "2")

	orig, _ := v.Get("a")
	cloned, _ := c.Get("a")
	assert.Equal(t, "1", orig)
	assert.Equal(t, "2", cloned)
}

// parse(emit(m)) == m for any mapping without embedded '&' or '=' (spec §8.7).
func TestParseEmit_Idempotent(t *testing.T) {
	v := New()
	v.Set("eos.app", "fuse")
	v.Set("mgm.pcmd", "redirect")
	v.Set("eos.client.openflags", "rwcr")

	reparsed := Parse(v.Emit())
	assert.Equal(t, v.Keys(), reparsed.Keys())
	for _, k := range v.Keys() {
		want, _ := v.Get(k)
		got, _ := reparsed.Get(k)
		assert.Equal(t, want, got)
	}
}
