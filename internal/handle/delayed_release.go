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

import (
	"sync"
	"time"
)

// delayedReleaseList holds records whose Release has unwound their locks
// and flushed their writes, but which a platform quirk says must not be
// freed immediately: a driver on some platforms can still deliver one more
// operation against a handle after it asks to release it, so the slot (and
// the inode-length reference it holds) must outlive that window. Records
// sit here until the reaper in sweepDelayed below decides it is safe to finish
// freeing them (spec.md §4.6.9).
//
// This is only populated, and the reaper only runs, when
// Config.DelayedReleaseEnabled is set — per spec.md §9's Design Notes, a
// platform whose driver guarantees in-order release has no use for it.
type delayedReleaseList struct {
	mu   sync.Mutex
	head *record
}

func (l *delayedReleaseList) push(r *record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r.delayedNext = l.head
	l.head = r
}

// drain removes and returns every record currently on the list whose grace
// period (last use + cfg.DelayedReleaseGrace) has elapsed and which has no
// operation in flight; everything else is left on the list for the next
// sweep.
func (l *delayedReleaseList) drain(grace func(r *record) bool) []*record {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ready []*record
	var keep *record
	for r := l.head; r != nil; {
		next := r.delayedNext
		if grace(r) {
			r.delayedNext = nil
			ready = append(ready, r)
		} else {
			r.delayedNext = keep
			keep = r
		}
		r = next
	}
	l.head = keep
	return ready
}

// scheduleDelayedRelease hands r to the reaper instead of freeing its slot
// immediately, per spec.md §4.6.9.
func (t *Table) scheduleDelayedRelease(r *record) {
	t.delayed.push(r)
}

// StartDelayedRelease launches the 1-Hz reaper goroutine. It is a no-op
// unless cfg.DelayedReleaseEnabled was set when the table was built; callers
// that never enable delayed release never pay for the goroutine.
func (t *Table) StartDelayedRelease() {
	if !t.cfg.DelayedReleaseEnabled {
		return
	}
	t.stopDelay = make(chan struct{})
	t.delayWg.Add(1)
	go t.delayedReleaseLoop()
}

// StopDelayedRelease stops the reaper goroutine and waits for it to exit.
// Safe to call even if StartDelayedRelease was never called (delayed
// release disabled).
func (t *Table) StopDelayedRelease() {
	if !t.cfg.DelayedReleaseEnabled || t.stopDelay == nil {
		return
	}
	close(t.stopDelay)
	t.delayWg.Wait()
}

func (t *Table) delayedReleaseLoop() {
	defer t.delayWg.Done()

	interval := t.cfg.DelayedReleasePollInterval
	if interval <= 0 {
		interval = time.Second
	}

	for {
		select {
		case <-t.stopDelay:
			return
		case <-t.clk.After(interval):
			t.sweepDelayed()
		}
	}
}

// sweepDelayed is the body of one reaper pass, exposed separately so tests
// can drive it synchronously instead of racing a real goroutine.
func (t *Table) sweepDelayed() {
	grace := t.cfg.DelayedReleaseGrace
	now := t.clk.Now()

	ready := t.delayed.drain(func(r *record) bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.opsInProgress != 0 {
			return false
		}
		// A pending write would still block on this record; leave it on
		// the list rather than freeing out from under it.
		if r.writersCount > 0 || r.writing {
			return false
		}
		return now.Sub(r.lastUse) >= grace
	})

	for _, r := range ready {
		t.finishRelease(r)
	}
}
