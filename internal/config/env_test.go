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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	r := Load()
	assert.False(t, r.RestoreDisabled())
	assert.Equal(t, time.Duration(0), r.LazyLagOpen())
	assert.Equal(t, time.Duration(0), r.LazyLagClose())
	assert.Equal(t, defaultOpenMaxRetries, r.OpenMaxRetries())
}

func TestLoad_RestoreDisabled(t *testing.T) {
	t.Setenv(envNoCacheRestore, "")
	r := Load()
	assert.True(t, r.RestoreDisabled())
}

func TestLoad_RestoreDisabled_AnyValue(t *testing.T) {
	t.Setenv(envNoCacheRestore, "1")
	r := Load()
	assert.True(t, r.RestoreDisabled())
}

func TestLoad_LazyLags(t *testing.T) {
	t.Setenv(envLazyLagOpen, "50")
	t.Setenv(envLazyLagClose, "25")
	r := Load()
	assert.Equal(t, 50*time.Millisecond, r.LazyLagOpen())
	assert.Equal(t, 25*time.Millisecond, r.LazyLagClose())
}

func TestLoad_OpenMaxRetriesOverride(t *testing.T) {
	t.Setenv(envOpenMaxRetries, "10")
	r := Load()
	assert.Equal(t, 10, r.OpenMaxRetries())
}

func TestLoad_OpenMaxRetries_NonPositiveFallsBackToDefault(t *testing.T) {
	t.Setenv(envOpenMaxRetries, "0")
	r := Load()
	assert.Equal(t, defaultOpenMaxRetries, r.OpenMaxRetries())
}
