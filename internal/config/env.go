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

// Package config resolves the handful of environment variables the layout
// wrapper recognizes (spec §6) through viper's env binding, the same
// mechanism the teacher's cfg package uses to bind flags, narrowed here to
// env vars only since CLI/mount glue is an explicit spec Non-goal.
package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	envNoCacheRestore = "EOS_FUSE_NO_CACHE_RESTORE"
	envLazyLagOpen    = "EOS_FUSE_LAZY_LAG_OPEN"
	envLazyLagClose   = "EOS_FUSE_LAZY_LAG_CLOSE"
	envOpenMaxRetries = "EOS_FUSE_OPEN_MAX_RETRIES"

	// defaultOpenMaxRetries is the cap on error-3005 (stale redirect)
	// retries during a synchronous data-server open, per spec §4.5.
	defaultOpenMaxRetries = 100
)

// Runtime holds the resolved environment for one process. Construct with
// Load; the zero value is usable and matches "no env vars set".
type Runtime struct {
	v *viper.Viper
}

// Load binds the recognized environment variables into a fresh Runtime.
func Load() *Runtime {
	v := viper.New()
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	_ = v.BindEnv(envNoCacheRestore)
	_ = v.BindEnv(envLazyLagOpen)
	_ = v.BindEnv(envLazyLagClose)
	_ = v.BindEnv(envOpenMaxRetries)
	v.SetDefault(envOpenMaxRetries, defaultOpenMaxRetries)

	return &Runtime{v: v}
}

// RestoreDisabled reports whether EOS_FUSE_NO_CACHE_RESTORE is set to any
// (even empty) value, per spec §6: "If set to any value, disables Restore."
func (r *Runtime) RestoreDisabled() bool {
	if r == nil || r.v == nil {
		return false
	}
	return r.v.IsSet(envNoCacheRestore)
}

// LazyLagOpen is the test-hook sleep (spec §4.5 step 2) before a
// synchronous data-server open, or 0 if unset.
func (r *Runtime) LazyLagOpen() time.Duration {
	return r.millisEnv(envLazyLagOpen)
}

// LazyLagClose is the test-hook sleep (spec §4.5 Close step 2) before
// Close proceeds, or 0 if unset.
func (r *Runtime) LazyLagClose() time.Duration {
	return r.millisEnv(envLazyLagClose)
}

// OpenMaxRetries is the cap on error-3005 retries during a synchronous
// open; defaults to 100 if EOS_FUSE_OPEN_MAX_RETRIES is unset.
func (r *Runtime) OpenMaxRetries() int {
	if r == nil || r.v == nil {
		return defaultOpenMaxRetries
	}
	n := r.v.GetInt(envOpenMaxRetries)
	if n <= 0 {
		return defaultOpenMaxRetries
	}
	return n
}

func (r *Runtime) millisEnv(key string) time.Duration {
	if r == nil || r.v == nil {
		return 0
	}
	return time.Duration(r.v.GetInt(key)) * time.Millisecond
}
