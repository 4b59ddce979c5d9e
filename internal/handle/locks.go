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
	"context"
)

// ownersLocked returns the map backing kind, assuming r.mu is held.
func (r *record) ownersLocked(kind LockKind) map[LockOwner]struct{} {
	if kind == LockFlock {
		return r.flockOwners
	}
	return r.posixOwners
}

// SetLk acquires a byte-range (POSIX) or whole-file (flock) lock on behalf
// of owner, per spec.md §4.6.7: every acquire adds owner to the handle's
// lock-owner list if not already present, before issuing the request to the
// master. A blocking acquire may run for a long time; interrupt, if
// non-nil, is watched by the caller's interruption thread (spec.md §4.6.8)
// and does not itself cancel the call — cancellation is ctx's job.
func (t *Table) SetLk(ctx context.Context, h H, inode uint64, owner LockOwner, kind LockKind, exclusive, blocking bool, interrupt <-chan struct{}) error {
	r, err := t.resolve(h, inode)
	if err != nil {
		return err
	}

	r.mu.Lock()
	owners := r.ownersLocked(kind)
	_, already := owners[owner]
	if !already {
		owners[owner] = struct{}{}
	}
	r.mu.Unlock()

	err = t.master.SetLk(ctx, inode, owner, kind, exclusive, blocking, interrupt)
	if err != nil {
		if !already {
			r.mu.Lock()
			delete(owners, owner)
			r.mu.Unlock()
		}
		return err
	}
	return nil
}

// SetLkBlocking is SetLk for the blocking case (F_SETLKW, or a BSD flock
// without LOCK_NB): it spawns the interruption pinger of spec.md §4.6.8 for
// the duration of the master call, so a cancelled wait doesn't strand the
// request in the master forever.
func (t *Table) SetLkBlocking(ctx context.Context, h H, inode uint64, owner LockOwner, kind LockKind, exclusive bool, ping func()) error {
	r, err := t.resolve(h, inode)
	if err != nil {
		return err
	}

	r.mu.Lock()
	owners := r.ownersLocked(kind)
	_, already := owners[owner]
	if !already {
		owners[owner] = struct{}{}
	}
	r.mu.Unlock()

	interrupt, stop := t.watchBlockingLock(ctx, ping)
	err = t.master.SetLk(ctx, inode, owner, kind, exclusive, true, interrupt)
	stop()

	if err != nil {
		if !already {
			r.mu.Lock()
			delete(owners, owner)
			r.mu.Unlock()
		}
		return err
	}
	return nil
}

// Unlk releases owner's lock of kind explicitly (an F_UNLCK setlk, or an
// explicit flock(LOCK_UN)). The owner is dropped from the handle's
// lock-owner list regardless of the master call's outcome: once the driver
// asks to unlock, there is nothing locally left to track for that owner.
func (t *Table) Unlk(ctx context.Context, h H, inode uint64, owner LockOwner, kind LockKind) error {
	r, err := t.resolve(h, inode)
	if err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.ownersLocked(kind), owner)
	r.mu.Unlock()

	return t.master.Unlock(ctx, inode, owner, kind)
}

// Release tears down a handle on its final close. Per spec.md §4.6.7/P9,
// every lock-owner still on h's lists (an owner already dropped by Unlk is
// not replayed) — in both the POSIX and the flock lists — gets an
// explicit unlock sent to the master before the slot is
// freed, so a process that dies (or a driver that never sends the matching
// F_UNLCK) cannot leak an advisory lock past the handle's lifetime.
//
// If the table was built with delayed release enabled, the record is handed
// to the reaper instead of being freed immediately (spec.md §4.6.9); the
// reaper calls finishRelease once it is safe to do so.
func (t *Table) Release(ctx context.Context, h H, inode uint64) error {
	r, err := t.resolve(h, inode)
	if err != nil {
		return err
	}

	if err := t.flush(ctx, r, false); err != nil {
		// A flush failure does not block lock replay or teardown: the
		// locks and the slot are still this process's responsibility to
		// release.
		_ = err
	}

	t.unwindAllLocks(ctx, r)

	if t.cfg.DelayedReleaseEnabled {
		t.scheduleDelayedRelease(r)
		return nil
	}

	t.finishRelease(r)
	return nil
}

// unwindAllLocks replays an unlock for every remaining owner of r, across
// both lock-kind lists, per P9.
func (t *Table) unwindAllLocks(ctx context.Context, r *record) {
	for _, kind := range [...]LockKind{LockPOSIX, LockFlock} {
		r.mu.Lock()
		owners := make([]LockOwner, 0, len(r.ownersLocked(kind)))
		for o := range r.ownersLocked(kind) {
			owners = append(owners, o)
		}
		r.mu.Unlock()

		for _, o := range owners {
			_ = t.master.Unlock(ctx, r.inode, o, kind)
			r.mu.Lock()
			delete(r.ownersLocked(kind), o)
			r.mu.Unlock()
		}
	}
}

// finishRelease drops the handle's inode-length reference and frees its
// slot. Called either directly from Release, or by the delayed-release
// reaper once it decides the record is truly safe to drop.
func (t *Table) finishRelease(r *record) {
	r.mu.Lock()
	r.released = true
	idx := r.findex.slot()
	r.mu.Unlock()

	t.inodeLens.Release(r.flenHandle)
	t.freeSlot(idx)
}
