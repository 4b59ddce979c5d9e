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

// Package groups is the supplementary-groups cache (C5): it resolves a
// (pid, uid, gid) tuple to the OS process's full supplementary-group list,
// caching the result so permission checks don't re-scrape /proc on every
// call.
package groups

import (
	"fmt"
	"sync"
	"time"

	"github.com/distfs/mfsclient/clock"
	"golang.org/x/sync/singleflight"
)

const bucketCount = 65536

// bucketsPerSweep and sweepInterval match spec.md §4.5's cleanup cadence:
// 16 buckets every 10ms.
const (
	bucketsPerSweep = 16
	sweepInterval   = 10 * time.Millisecond
)

// Resolver scrapes the OS for pid's supplementary groups. Implementations
// are platform-specific; see resolver_linux.go / resolver_other.go.
type Resolver interface {
	Resolve(pid int32, gid uint32) ([]uint32, error)
}

// GroupRef is a reference-counted supplementary-group list. Callers must
// Release every GroupRef obtained from Get/GetCacheOnly exactly once.
type GroupRef struct {
	Gids []uint32
	lcnt int
}

type cacheKey struct {
	pid      int32
	uid, gid uint32
}

type cacheEntry struct {
	key  cacheKey
	time time.Time
	ref  *GroupRef
	next *cacheEntry
}

// Cache is the supplementary-groups cache. The zero value is not usable;
// call New.
type Cache struct {
	mu       sync.Mutex
	buckets  []*cacheEntry
	ttl      time.Duration
	clk      clock.Clock
	resolver Resolver
	sf       singleflight.Group

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a cache with the given TTL (<=0 means entries never expire, so
// only root's lookups re-resolve) using resolver to scrape the OS.
func New(ttl time.Duration, clk clock.Clock, resolver Resolver) *Cache {
	return &Cache{
		buckets:  make([]*cacheEntry, bucketCount),
		ttl:      ttl,
		clk:      clk,
		resolver: resolver,
	}
}

func hashBucket(k cacheKey) uint32 {
	h := uint64(uint32(k.pid))*0x74BF4863 + uint64(k.uid)
	h = h*0xB435C489 + uint64(k.gid)
	return uint32(h % bucketCount)
}

// matchLocked scans bucket h for an entry with the given key. If
// requireFresh, an entry whose TTL has lapsed is treated as absent (a plain
// Get must re-resolve it); GetCacheOnly passes requireFresh=false, since a
// stale cached answer still beats the synthetic fallback.
func (c *Cache) matchLocked(h uint32, k cacheKey, now time.Time, requireFresh bool) *cacheEntry {
	for e := c.buckets[h]; e != nil; e = e.next {
		if e.key != k {
			continue
		}
		if requireFresh && c.ttl > 0 && now.Sub(e.time) >= c.ttl {
			continue
		}
		return e
	}
	return nil
}

// removeKeyLocked unlinks any entry for key k from bucket h. It does not
// touch the referenced GroupRef's lcnt: holders that already acquired a
// reference keep it valid until they Release it.
func (c *Cache) removeKeyLocked(h uint32, k cacheKey) {
	var prev *cacheEntry
	cur := c.buckets[h]
	for cur != nil {
		next := cur.next
		if cur.key == k {
			if prev != nil {
				prev.next = next
			} else {
				c.buckets[h] = next
			}
		} else {
			prev = cur
		}
		cur = next
	}
}

// Get resolves (pid,uid,gid), preferring a cached entry unless uid==0 (root
// is always refreshed, since root's groups may have changed -- P6) or the
// TTL has lapsed. The returned ref is reference-counted; the caller must
// Release it.
func (c *Cache) Get(pid int32, uid, gid uint32) (*GroupRef, error) {
	k := cacheKey{pid: pid, uid: uid, gid: gid}
	h := hashBucket(k)
	now := c.clk.Now()

	if uid != 0 {
		c.mu.Lock()
		if e := c.matchLocked(h, k, now, true); e != nil {
			e.ref.lcnt++
			c.mu.Unlock()
			return e.ref, nil
		}
		c.mu.Unlock()
	}

	sfKey := fmt.Sprintf("%d:%d:%d", pid, uid, gid)
	gidsAny, err, _ := c.sf.Do(sfKey, func() (any, error) {
		return c.resolver.Resolve(pid, gid)
	})

	var gids []uint32
	if err != nil {
		gids = []uint32{gid}
	} else {
		gids = gidsAny.([]uint32)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeKeyLocked(h, k)
	ref := &GroupRef{Gids: gids, lcnt: 1}
	c.buckets[h] = &cacheEntry{key: k, time: now, ref: ref, next: c.buckets[h]}
	return ref, nil
}

// GetCacheOnly returns a cached ref without ever scraping the OS, even if
// its TTL has lapsed (a stale answer beats none). If no entry is cached it
// returns the synthetic single-element list {gid}, matching spec.md §4.5's
// "emergency mode" fallback -- used where resolving groups could deadlock,
// e.g. during a macOS quarantine-xattr lookup.
func (c *Cache) GetCacheOnly(pid int32, uid, gid uint32) *GroupRef {
	k := cacheKey{pid: pid, uid: uid, gid: gid}
	h := hashBucket(k)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.matchLocked(h, k, c.clk.Now(), false); e != nil {
		e.ref.lcnt++
		return e.ref
	}
	return &GroupRef{Gids: []uint32{gid}, lcnt: 1}
}

// Release decrements ref's refcount. It does not itself free anything; the
// background cleanup goroutine reclaims expired, unreferenced entries.
func (c *Cache) Release(ref *GroupRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref.lcnt--
}

// Init starts the background cleanup goroutine, sweeping bucketsPerSweep
// buckets every sweepInterval and reclaiming entries past TTL whose
// refcount has dropped to zero.
func (c *Cache) Init() {
	c.stop = make(chan struct{})
	c.wg.Add(1)
	go c.cleanupLoop()
}

// Term stops the background cleanup goroutine and waits for it to exit.
func (c *Cache) Term() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	c.wg.Wait()
}

func (c *Cache) cleanupLoop() {
	defer c.wg.Done()
	var h uint32
	for {
		select {
		case <-c.stop:
			return
		case <-c.clk.After(sweepInterval):
			c.sweep(&h)
		}
	}
}

func (c *Cache) sweep(h *uint32) {
	now := c.clk.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < bucketsPerSweep; i++ {
		var prev *cacheEntry
		cur := c.buckets[*h]
		for cur != nil {
			next := cur.next
			if c.ttl > 0 && now.Sub(cur.time) >= c.ttl && cur.ref.lcnt == 0 {
				if prev != nil {
					prev.next = next
				} else {
					c.buckets[*h] = next
				}
			} else {
				prev = cur
			}
			cur = next
		}
		*h = (*h + 1) % bucketCount
	}
}

// Sweep runs one cleanup pass over every bucket synchronously, starting from
// bucket 0. Exposed for tests that want deterministic control over
// reclamation without waiting on the background goroutine.
func (c *Cache) Sweep() {
	var h uint32
	for i := 0; i < bucketCount/bucketsPerSweep; i++ {
		c.sweep(&h)
	}
}
