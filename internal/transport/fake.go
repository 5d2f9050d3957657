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

package transport

import (
	"context"
	"sync"
)

// Fake is a scriptable in-memory Transport for exercising
// internal/layout without a real master/data-server. It is the hand-rolled
// counterpart of the teacher's gcsproxy/mock package, built directly
// against this interface rather than through a mocking framework.
type Fake struct {
	mu sync.Mutex

	lastURL string

	// RequestFunc, if set, answers Request calls; otherwise Request
	// returns (nil, nil).
	RequestFunc func(body string) ([]byte, error)

	// OpenResults is consumed in order by successive Open calls; the last
	// entry repeats once exhausted. A nil entry means success.
	OpenResults []error
	openCalls   int

	// OpenResultURL, if non-empty for a given call index, replaces lastURL
	// when that Open call succeeds -- standing in for a real Transport's
	// internal redirect bookkeeping, which lands on a final data-server URL
	// carrying the server-assigned mgm.id (spec §4.5 sync-open step 5,
	// Restore step 4). Indexed the same way as OpenResults; missing or
	// empty entries leave lastURL as Redirect last set it.
	OpenResultURL []string

	// AsyncSupported toggles SupportsAsyncOpen.
	AsyncSupported bool
	asyncResult    error
	asyncDone      chan struct{}

	closed int

	// CloseResults is consumed in order by successive Close calls, the same
	// way OpenResults drives Open: the last entry repeats once exhausted.
	// CloseErr is returned by every Close only when CloseResults is empty.
	CloseResults []error
	closeCalls   int
	CloseErr     error
	lastErrno    int

	data []byte

	StatResult StatInfo
	StatErr    error
	SyncErr    error
	TruncErr   error
}

// NewFake returns a Fake transport with AsyncSupported=false and no
// scripted failures.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Redirect(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastURL = url
}

func (f *Fake) LastURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastURL
}

func (f *Fake) Request(ctx context.Context, body string) ([]byte, error) {
	f.mu.Lock()
	fn := f.RequestFunc
	f.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(body)
}

func (f *Fake) Open(ctx context.Context, opaque string, flags, mode uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if len(f.OpenResults) > 0 {
		idx := f.openCalls
		if idx >= len(f.OpenResults) {
			idx = len(f.OpenResults) - 1
		}
		err = f.OpenResults[idx]
	}
	if err == nil && f.openCalls < len(f.OpenResultURL) && f.OpenResultURL[f.openCalls] != "" {
		f.lastURL = f.OpenResultURL[f.openCalls]
	}
	f.openCalls++

	f.lastErrno = CodeOf(err)
	return err
}

func (f *Fake) SupportsAsyncOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.AsyncSupported
}

// ScriptAsyncOpen sets the error OpenAsync/WaitOpenAsync will eventually
// report.
func (f *Fake) ScriptAsyncOpen(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asyncResult = err
}

func (f *Fake) OpenAsync(ctx context.Context, opaque string, flags, mode uint32) {
	f.mu.Lock()
	f.asyncDone = make(chan struct{})
	done := f.asyncDone
	f.mu.Unlock()

	close(done)
}

func (f *Fake) WaitOpenAsync() error {
	f.mu.Lock()
	done := f.asyncDone
	result := f.asyncResult
	f.mu.Unlock()

	if done != nil {
		<-done
	}

	f.mu.Lock()
	f.lastErrno = CodeOf(result)
	f.mu.Unlock()

	return result
}

func (f *Fake) ReadAt(buf []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if off >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(buf, f.data[off:])
	return n, nil
}

func (f *Fake) WriteAt(buf []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	end := off + int64(len(buf))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[off:end], buf)
	return len(buf), nil
}

func (f *Fake) Truncate(off int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.TruncErr != nil {
		return f.TruncErr
	}
	if off <= int64(len(f.data)) {
		f.data = f.data[:off]
		return nil
	}
	grown := make([]byte, off)
	copy(grown, f.data)
	f.data = grown
	return nil
}

func (f *Fake) Stat(ctx context.Context) (StatInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.StatResult, f.StatErr
}

func (f *Fake) Sync(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SyncErr
}

func (f *Fake) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed++

	if len(f.CloseResults) > 0 {
		idx := f.closeCalls
		if idx >= len(f.CloseResults) {
			idx = len(f.CloseResults) - 1
		}
		f.closeCalls++
		return f.CloseResults[idx]
	}
	f.closeCalls++
	return f.CloseErr
}

func (f *Fake) LastErrno() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErrno
}

// Closed reports whether Close has been called at least once.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed > 0
}

// WrittenData returns a copy of the bytes accumulated via WriteAt, for
// assertions in Restore tests.
func (f *Fake) WrittenData() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out
}

var _ Transport = (*Fake)(nil)
