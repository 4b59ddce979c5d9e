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

// Package fdcache is the file-descriptor cache (C3): it remembers the last
// successful lookup of an inode by a (uid, gid, pid) triple, so a lookup
// immediately followed by an open by the same process can skip a second
// master round trip, and can skip an initial chunk-location fetch if the
// lookup already carried one.
package fdcache

import (
	"sync"
	"time"

	"github.com/distfs/mfsclient/clock"
	"github.com/distfs/mfsclient/internal/attr"
)

// ttl is fixed at 1.0s per spec.md §4.3.
const ttl = time.Second

// defaultBuckets matches the "intrusive hash chain keyed by inode mod HASH"
// shape of spec.md §3; HASH itself isn't pinned by the spec, so a modest
// prime is used.
const defaultBuckets = 1021

// ChunkData is the embedded first-chunk location a lookup may carry,
// destined for injection into the chunk-location cache (C2) on acquire.
type ChunkData struct {
	CSDataVersion uint32
	ChunkID       uint64
	Version       uint32
	CSData        []byte
}

type entry struct {
	createTime time.Time
	uid, gid   uint32
	pid        int32
	inode      uint64
	attr       attr.Record
	lookupFlags uint8
	chunkData  ChunkData

	next *entry
}

// Entry is an opaque handle returned by Acquire. The caller must Release it
// (after optionally calling InjectChunkData) exactly once.
type Entry struct {
	inode      uint64
	attr       attr.Record
	lookupFlags uint8
	chunkData  ChunkData
}

func (e *Entry) Attr() attr.Record      { return e.attr }
func (e *Entry) LookupFlags() uint8     { return e.lookupFlags }
func (e *Entry) ChunkData() ChunkData   { return e.chunkData }

// Cache is the FD cache. The zero value is not usable; call New.
type Cache struct {
	buckets []bucket
	clk     clock.Clock
}

type bucket struct {
	mu   sync.Mutex
	head *entry
}

func New(clk clock.Clock) *Cache {
	return &Cache{
		buckets: make([]bucket, defaultBuckets),
		clk:     clk,
	}
}

func (c *Cache) bucketFor(inode uint64) *bucket {
	return &c.buckets[inode%uint64(len(c.buckets))]
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return now.Sub(e.createTime) >= ttl
}

// removeMatching unlinks every entry for inode other than keep (keep may be
// nil) from b's chain, dropping stale duplicates as spec.md §4.3 requires of
// Insert.
func (b *bucket) removeMatching(inode uint64, keep *entry) {
	var prev *entry
	cur := b.head
	for cur != nil {
		next := cur.next
		if cur.inode == inode && cur != keep {
			if prev != nil {
				prev.next = next
			} else {
				b.head = next
			}
		} else {
			prev = cur
		}
		cur = next
	}
}

func (b *bucket) unlink(target *entry) {
	var prev *entry
	cur := b.head
	for cur != nil {
		if cur == target {
			if prev != nil {
				prev.next = cur.next
			} else {
				b.head = cur.next
			}
			return
		}
		prev = cur
		cur = cur.next
	}
}

// Insert records (or refreshes) the entry for this (inode,uid,gid,pid)
// tuple, purging any other stale duplicate already on the same bucket.
func (c *Cache) Insert(inode uint64, uid, gid uint32, pid int32, a attr.Record, lookupFlags uint8, cd ChunkData) {
	b := c.bucketFor(inode)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := c.clk.Now()
	for cur := b.head; cur != nil; cur = cur.next {
		if cur.inode == inode && cur.uid == uid && cur.gid == gid && cur.pid == pid {
			cur.createTime = now
			cur.attr = a
			cur.lookupFlags = lookupFlags
			cur.chunkData = cd
			b.removeMatching(inode, cur)
			return
		}
	}

	e := &entry{
		createTime:  now,
		uid:         uid,
		gid:         gid,
		pid:         pid,
		inode:       inode,
		attr:        a,
		lookupFlags: lookupFlags,
		chunkData:   cd,
		next:        b.head,
	}
	b.head = e
	b.removeMatching(inode, e)
}

// Invalidate removes every entry for inode, regardless of (uid,gid,pid).
func (c *Cache) Invalidate(inode uint64) {
	b := c.bucketFor(inode)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeMatching(inode, nil)
}

func (b *bucket) find(inode uint64, uid, gid uint32, pid int32, now time.Time, expired func(*entry, time.Time) bool) *entry {
	for cur := b.head; cur != nil; cur = cur.next {
		if cur.inode == inode && cur.uid == uid && cur.gid == gid && cur.pid == pid {
			if expired(cur, now) {
				return nil
			}
			return cur
		}
	}
	return nil
}

// Find non-destructively reports whether a matching, unexpired entry exists
// and, if so, returns its cached attributes and lookup flags.
func (c *Cache) Find(inode uint64, uid, gid uint32, pid int32) (a attr.Record, lookupFlags uint8, ok bool) {
	b := c.bucketFor(inode)
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.find(inode, uid, gid, pid, c.clk.Now(), c.expired)
	if e == nil {
		return attr.Record{}, 0, false
	}
	return e.attr, e.lookupFlags, true
}

// Acquire unlinks a matching, unexpired entry from its bucket if present,
// handing ownership to the caller. The caller must Release it.
func (c *Cache) Acquire(inode uint64, uid, gid uint32, pid int32) *Entry {
	b := c.bucketFor(inode)
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.find(inode, uid, gid, pid, c.clk.Now(), c.expired)
	if e == nil {
		return nil
	}
	b.unlink(e)
	return &Entry{inode: e.inode, attr: e.attr, lookupFlags: e.lookupFlags, chunkData: e.chunkData}
}

// Release is the counterpart to Acquire. The entry was already unlinked on
// acquire, so this is a no-op placeholder kept for symmetry with the C
// acquire/release pairing spec.md §4.3 documents (and a home for future
// pooling, should one be needed).
func (c *Cache) Release(e *Entry) {}

// InjectChunkData is a convenience accessor naming the spec's documented
// caller sequence (acquire, inject_chunkdata, release): it returns the
// chunk-location payload the caller should push into the chunk-location
// cache (C2).
func (c *Cache) InjectChunkData(e *Entry) ChunkData {
	return e.ChunkData()
}
