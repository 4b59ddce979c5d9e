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
	"sync"

	"github.com/distfs/mfsclient/internal/fdcache"
	"github.com/jacobsa/syncutil"
)

// Lookup-flags bits embedded in an FD-cache entry (C3), interpreted here to
// decide fast-open eligibility.
const (
	LookupAllowRead  uint8 = 1 << 0
	LookupAllowWrite uint8 = 1 << 1
)

func modeNeedsRead(m Mode) bool  { return m == ModeRW || m == ModeRO }
func modeNeedsWrite(m Mode) bool { return m == ModeRW || m == ModeWO }

func fastOpenEligible(flags uint8, m Mode) bool {
	if modeNeedsRead(m) && flags&LookupAllowRead == 0 {
		return false
	}
	if modeNeedsWrite(m) && flags&LookupAllowWrite == 0 {
		return false
	}
	return true
}

// SetChunkDataInjector installs f, which, if set, receives an FD-cache
// entry's embedded chunk-location data on a fast-path open so the caller can push it into
// the chunk-location cache (C2), per spec.md §8 scenario 1.
func (t *Table) SetChunkDataInjector(f func(inode uint64, cd fdcache.ChunkData)) {
	t.injectChunkData = f
}

// Open opens inode for mode on behalf of (uid,gid,pid). If the FD cache (C3)
// has a matching, still-valid entry whose lookup flags permit the requested
// mode, the open completes immediately (spec.md §4.6.3); a background
// opencheck still ratifies the open with the master before any blocking I/O
// is allowed to proceed.
func (t *Table) Open(ctx context.Context, inode uint64, m Mode, uid, gid uint32, pid int32) (H, error) {
	idx := t.allocSlot()

	r := &record{
		inode:       inode,
		mode:        m,
		createTime:  t.clk.Now(),
		lastUse:     t.clk.Now(),
		posixOwners: make(map[LockOwner]struct{}),
		flockOwners: make(map[LockOwner]struct{}),
	}
	r.mu = syncutil.NewInvariantMutex(r.checkInvariants)
	r.cond = sync.NewCond(&r.mu)

	h := t.installSlot(idx, r)

	r.flenHandle = t.inodeLens.Acquire(inode)

	fast := false
	if e := t.fdCache.Acquire(inode, uid, gid, pid); e != nil {
		if fastOpenEligible(e.LookupFlags(), m) {
			fast = true
			r.cachedAttr = e.Attr()
			r.hasCachedAttr = true
			if t.injectChunkData != nil {
				t.injectChunkData(inode, e.ChunkData())
			}
		}
		t.fdCache.Release(e)
	}

	if fast {
		r.openInMaster = false
		go func() {
			err := t.master.OpenCheck(ctx, inode, m)
			r.mu.Lock()
			if err == nil {
				r.openInMaster = true
			}
			r.cond.Broadcast()
			r.mu.Unlock()
		}()
	} else {
		if err := t.master.OpenCheck(ctx, inode, m); err != nil {
			t.inodeLens.Release(r.flenHandle)
			t.freeSlot(idx)
			return 0, err
		}
		r.openInMaster = true
	}

	return h, nil
}
