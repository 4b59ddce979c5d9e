// Copyright 2024 Google Inc. All Rights Reserved.
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

package handle

// The reader/writer schema below is spec.md §4.6.2 verbatim: one mutex, one
// condition variable, writer preference enforced by having readers block
// whenever writersCount > 0 (P7, P8). Callers must hold r.mu before calling
// any of these and it remains held on return.

func (r *record) acquireReadLocked() {
	for r.writing || r.writersCount > 0 {
		r.cond.Wait()
	}
	r.readersCount++
}

func (r *record) releaseReadLocked() {
	r.readersCount--
	if r.readersCount == 0 {
		r.cond.Broadcast()
	}
}

func (r *record) acquireWriteLocked() {
	r.writersCount++
	for r.readersCount > 0 || r.writing {
		r.cond.Wait()
	}
	r.writersCount--
	r.writing = true
}

func (r *record) releaseWriteLocked() {
	r.writing = false
	r.cond.Broadcast()
}

// waitOpenInMasterLocked blocks until the background opencheck ratifies a
// fast-path open, per spec.md §4.6.3.
func (r *record) waitOpenInMasterLocked() {
	for !r.openInMaster {
		r.cond.Wait()
	}
}
