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
	"time"

	"github.com/cern-eos/eosxd/clock"
)

// retryPolicy is the central retry object Design Notes §9 asks for: a
// shared (max attempts, backoff, predicate-on-error) triple driving both
// the synchronous data-server open's error-3005 loop and Restore's
// open-and-retry loop, rather than two ad hoc copies of the same shape.
type retryPolicy struct {
	maxAttempts int
	backoff     time.Duration
	// retryable decides whether err warrants another attempt; nil means
	// "retry any non-nil error".
	retryable func(err error) bool
}

// run calls attempt up to p.maxAttempts times, sleeping p.backoff between
// tries on the clock c, stopping early on success or on a non-retryable
// error. It returns the last error seen (nil on eventual success).
func (p retryPolicy) run(c clock.Clock, attempt func(try int) error) error {
	var err error
	for try := 1; try <= p.maxAttempts; try++ {
		err = attempt(try)
		if err == nil {
			return nil
		}
		if p.retryable != nil && !p.retryable(err) {
			return err
		}
		if try < p.maxAttempts {
			<-c.After(p.backoff)
		}
	}
	return err
}
