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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eosclock "github.com/cern-eos/eosxd/clock"
	"github.com/cern-eos/eosxd/internal/cacheauthority"
	"github.com/cern-eos/eosxd/internal/cgiutil"
	"github.com/cern-eos/eosxd/internal/config"
	"github.com/cern-eos/eosxd/internal/transport"
)

func newTestDeps(t *testing.T) (Deps, *transport.Fake, *eosclock.SimulatedClock) {
	t.Helper()
	c := eosclock.NewSimulatedClock(time.Unix(1000, 0))
	ft := transport.NewFake()
	return Deps{
		Transport:     ft,
		Registry:      cacheauthority.New(c),
		Clock:         c,
		Config:        config.Load(),
		OwnerLifetime: 30 * time.Second,
	}, ft, c
}

func redirectResponse(id string) []byte {
	return []byte("http://data.example:1095/a?mgm.id=" + id + "&eos.app=fuse")
}

func TestOpen_CreateWriteCloseIsNoopRestore(t *testing.T) {
	// Scenario S1.
	deps, ft, _ := newTestDeps(t)
	ft.RequestFunc = func(body string) ([]byte, error) { return redirectResponse("3d"), nil }
	ft.OpenResults = []error{nil}

	h := New("http://master.example:1094/a", FlagCreate|FlagWrite, 0644, cgiutil.Parse("eos.app=fuse"), deps)

	err := h.Open(context.Background(), OpenOptions{DoDataOpen: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x3d), h.Inode())

	n := h.WriteCache([]byte("hello"), 0, 5, 1024)
	assert.Equal(t, 5, n)

	wn, err := h.Write(context.Background(), []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, wn)

	size, ok := deps.Registry.LookupSize(0x3d)
	require.True(t, ok)
	assert.Equal(t, int64(5), size)

	err = h.Close(context.Background())
	require.NoError(t, err)
	assert.True(t, ft.Closed())
}

func TestClose_FailureTriggersRestore(t *testing.T) {
	// Scenario S2: the original Close fails; Restore reopens (a second
	// Open call), writes the cached bytes, and its own Close succeeds --
	// overriding the original failure.
	deps, ft, _ := newTestDeps(t)
	ft.RequestFunc = func(body string) ([]byte, error) { return redirectResponse("3d"), nil }
	ft.OpenResults = []error{nil, nil}
	ft.OpenResultURL = []string{"", "http://data.example:1095/a?mgm.id=5a"}
	ft.CloseResults = []error{errors.New("boom"), nil}

	h := New("http://master.example:1094/a", FlagCreate|FlagWrite, 0644, cgiutil.New(), deps)
	require.NoError(t, h.Open(context.Background(), OpenOptions{DoDataOpen: true}))

	h.WriteCache([]byte("hello"), 0, 5, 1024)
	_, err := h.Write(context.Background(), []byte("hello"), 0)
	require.NoError(t, err)

	err = h.Close(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(ft.WrittenData()[:5]))

	newInode, migrated := CacheRestore(deps.Registry, 0x3d)
	assert.True(t, migrated)
	assert.Equal(t, uint64(0x5a), newInode)
}

func TestWriteCache_PartialBlocksRestore(t *testing.T) {
	// Scenario S3.
	deps, ft, _ := newTestDeps(t)
	ft.RequestFunc = func(body string) ([]byte, error) { return redirectResponse("3d"), nil }
	ft.OpenResults = []error{nil}
	ft.CloseErr = errors.New("boom")

	h := New("http://master.example:1094/a", FlagCreate|FlagWrite, 0644, cgiutil.New(), deps)
	require.NoError(t, h.Open(context.Background(), OpenOptions{DoDataOpen: true}))

	n := h.WriteCache(make([]byte, 2048), 0, 2048, 1024)
	assert.Equal(t, 0, n)
	assert.False(t, deps.Registry.RestoreEligible(0x3d))

	err := h.Close(context.Background())
	assert.Error(t, err)
}

func TestLazyOpen_RejectsRaceArtefactResponse(t *testing.T) {
	// Scenario S4.
	deps, ft, _ := newTestDeps(t)
	junk := make([]byte, 2<<20)
	for i := range junk {
		junk[i] = 'x'
	}
	// Put the only "?" well past the 1 MiB cutoff: a racing-recovery
	// artefact, not a real redirect response (spec §4.5 step 7).
	junk[3<<19] = '?'
	ft.RequestFunc = func(body string) ([]byte, error) { return junk, nil }

	h := New("http://master.example:1094/a", FlagRead, 0644, cgiutil.New(), deps)
	err := h.Open(context.Background(), OpenOptions{})
	assert.ErrorIs(t, err, ErrBadMasterResponse)
	assert.Equal(t, stateFresh, h.st)
}

func TestSyncOpen_StaleRedirectRetry(t *testing.T) {
	// Scenario S5.
	staleErr := &transport.Error{Code: transport.CodeStaleRedirect, Err: errors.New("stale")}

	t.Run("succeeds within cap", func(t *testing.T) {
		deps, ft, _ := newTestDeps(t)
		// The 10ms stale-redirect backoff waits on deps.Clock; a simulated
		// clock that nobody advances would never fire.
		deps.Clock = eosclock.RealClock{}
		t.Setenv("EOS_FUSE_OPEN_MAX_RETRIES", "20")
		deps.Config = config.Load()
		ft.RequestFunc = func(body string) ([]byte, error) { return redirectResponse("3d"), nil }
		results := make([]error, 12)
		for i := range results {
			results[i] = staleErr
		}
		results = append(results, nil)
		ft.OpenResults = results

		h := New("http://master.example:1094/a", FlagRead, 0644, cgiutil.New(), deps)
		err := h.Open(context.Background(), OpenOptions{DoDataOpen: true})
		assert.NoError(t, err)
	})

	t.Run("fails when cap too low", func(t *testing.T) {
		deps, ft, _ := newTestDeps(t)
		deps.Clock = eosclock.RealClock{}
		t.Setenv("EOS_FUSE_OPEN_MAX_RETRIES", "10")
		deps.Config = config.Load()
		ft.RequestFunc = func(body string) ([]byte, error) { return redirectResponse("3d"), nil }
		results := make([]error, 12)
		for i := range results {
			results[i] = staleErr
		}
		results = append(results, nil)
		ft.OpenResults = results

		h := New("http://master.example:1094/a", FlagRead, 0644, cgiutil.New(), deps)
		err := h.Open(context.Background(), OpenOptions{DoDataOpen: true})
		assert.Error(t, err)
		assert.Equal(t, stateClosed, h.st)
	})
}

func TestOpen_AlreadyOpenRejected(t *testing.T) {
	deps, ft, _ := newTestDeps(t)
	ft.RequestFunc = func(body string) ([]byte, error) { return redirectResponse("3d"), nil }
	ft.OpenResults = []error{nil}

	h := New("http://master.example:1094/a", FlagRead, 0644, cgiutil.New(), deps)
	require.NoError(t, h.Open(context.Background(), OpenOptions{DoDataOpen: true}))

	err := h.Open(context.Background(), OpenOptions{DoDataOpen: true})
	assert.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestReadCache_RangeOutsideMaxFallsBackToNetwork(t *testing.T) {
	deps, ft, _ := newTestDeps(t)
	ft.RequestFunc = func(body string) ([]byte, error) { return redirectResponse("3d"), nil }
	ft.OpenResults = []error{nil}

	h := New("http://master.example:1094/a", FlagCreate|FlagWrite, 0644, cgiutil.New(), deps)
	require.NoError(t, h.Open(context.Background(), OpenOptions{DoDataOpen: true}))
	h.WriteCache([]byte("hello"), 0, 5, 1024)

	buf := make([]byte, 5)
	n, ok := h.ReadCache(buf, 0, 5, 1024)
	assert.True(t, ok)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	_, ok = h.ReadCache(buf, 0, 5, 2)
	assert.False(t, ok)
}

func TestAuthKeys_NeverForwardedToDataServer(t *testing.T) {
	// Invariant 8.
	deps, ft, _ := newTestDeps(t)
	var capturedOpaque string
	ft.RequestFunc = func(body string) ([]byte, error) { return redirectResponse("3d"), nil }
	ft.OpenResults = []error{nil}

	opaque := cgiutil.Parse("xrd.wantprot=krb5&eos.app=fuse")
	h := New("http://master.example:1094/a", FlagRead, 0644, opaque, deps)
	require.NoError(t, h.Open(context.Background(), OpenOptions{DoDataOpen: true}))

	capturedOpaque = h.opaque.Emit()
	assert.NotContains(t, capturedOpaque, "xrd.wantprot")
	assert.Contains(t, capturedOpaque, "eos.app=fuse")
}
