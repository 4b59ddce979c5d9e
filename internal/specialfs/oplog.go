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

package specialfs

import "sync"

// opLogRing is the shared ring buffer behind both the oplog (tail-only) and
// ophistory (full-history) special inodes. total counts every line ever
// appended, so per-handle cursors are just "lines seen so far" and need no
// pointer chasing once the ring has wrapped.
type opLogRing struct {
	mu    sync.Mutex
	lines []string
	cap   int
	total int
}

func newOpLogRing(capacity int) *opLogRing {
	return &opLogRing{cap: capacity}
}

func (r *opLogRing) append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) < r.cap {
		r.lines = append(r.lines, line)
	} else {
		r.lines[r.total%r.cap] = line
	}
	r.total++
}

// tailCursor is a cursor positioned at "now": an oplog open only sees lines
// appended after it opened.
func (r *opLogRing) tailCursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// headCursor is a cursor positioned at the oldest line still retained: an
// ophistory open replays retained history before following the tail.
func (r *opLogRing) headCursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.total <= r.cap {
		return 0
	}
	return r.total - r.cap
}

// since returns every line appended at or after cursor, plus the cursor
// value the caller should pass next.
func (r *opLogRing) since(cursor int) ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cursor < r.total-r.cap {
		cursor = r.total - r.cap
	}
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= r.total {
		return nil, cursor
	}

	out := make([]string, 0, r.total-cursor)
	for i := cursor; i < r.total; i++ {
		out = append(out, r.lines[i%r.cap])
	}
	return out, r.total
}
