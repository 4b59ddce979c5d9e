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

// Package negentry is the negative-entry cache (C1): it remembers that a
// (parent inode, name) lookup came back absent, so a repeated lookup for the
// same pair within the TTL can be answered without a master round trip.
package negentry

import (
	"sync"
	"time"

	"github.com/distfs/mfsclient/clock"
)

const slotsPerBucket = 16

// numHashes is the number of independent hash functions probed per
// operation, per spec.md §4.1 ("4 hash functions, 16 slots per bucket").
const numHashes = 4

// defaultBuckets matches spec.md §4.1's "~6000 buckets".
const defaultBuckets = 6007

type entry struct {
	valid     bool
	parent    uint64
	name      string
	timestamp time.Time
	gen       uint64 // Cache.clearStamp at insert/refresh time
}

// Cache is the negative-entry cache. The zero value is not usable; call New.
type Cache struct {
	mu         sync.Mutex
	buckets    [][slotsPerBucket]entry
	ttl        time.Duration
	clk        clock.Clock
	clearStamp uint64
}

// New builds a cache with the given TTL and bucket count. A TTL <= 0
// disables the cache: every operation becomes a no-op, per spec.md §4.1's
// failure model. bucketCount <= 0 uses the spec's default of ~6000.
func New(ttl time.Duration, bucketCount int, clk clock.Clock) *Cache {
	if bucketCount <= 0 {
		bucketCount = defaultBuckets
	}
	return &Cache{
		buckets: make([][slotsPerBucket]entry, bucketCount),
		ttl:     ttl,
		clk:     clk,
	}
}

// Enabled reports whether the cache is active (TTL > 0).
func (c *Cache) Enabled() bool {
	return c.ttl > 0
}

func (c *Cache) hashIndexes(parent uint64, name string) [numHashes]int {
	var idxs [numHashes]int
	n := uint64(len(c.buckets))
	// Four independent FNV-1a-style mixes, seeded differently so the four
	// probe buckets for a given key are (with overwhelming likelihood)
	// distinct.
	seeds := [numHashes]uint64{
		0xcbf29ce484222325,
		0x100000001b3,
		0x9e3779b97f4a7c15,
		0xc2b2ae3d27d4eb4f,
	}
	for h := 0; h < numHashes; h++ {
		hash := seeds[h]
		hash ^= parent
		hash *= 0x100000001b3
		for i := 0; i < len(name); i++ {
			hash ^= uint64(name[i])
			hash *= 0x100000001b3
		}
		idxs[h] = int(hash % n)
	}
	return idxs
}

func (c *Cache) isExpired(e *entry, now time.Time) bool {
	if !e.valid {
		return true
	}
	if e.gen != c.clearStamp {
		return true
	}
	return now.Sub(e.timestamp) >= c.ttl
}

// Insert records that name is absent under parent. Idempotent: inserting
// the same pair again just refreshes its timestamp (P1).
func (c *Cache) Insert(parent uint64, name string) {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	idxs := c.hashIndexes(parent, name)

	for _, idx := range idxs {
		bucket := &c.buckets[idx]
		for i := range bucket {
			e := &bucket[i]
			if e.valid && e.parent == parent && e.name == name {
				e.timestamp = now
				e.gen = c.clearStamp
				return
			}
		}
	}

	// No existing entry: place in the emptiest/oldest candidate slot across
	// all four buckets, preferring any already-invalid or expired slot.
	bestIdx, bestSlot := idxs[0], 0
	bestTime := now
	haveBest := false
	for _, idx := range idxs {
		bucket := &c.buckets[idx]
		for i := range bucket {
			e := &bucket[i]
			if c.isExpired(e, now) {
				bestIdx, bestSlot = idx, i
				c.buckets[bestIdx][bestSlot] = entry{valid: true, parent: parent, name: name, timestamp: now, gen: c.clearStamp}
				return
			}
			if !haveBest || e.timestamp.Before(bestTime) {
				bestIdx, bestSlot, bestTime = idx, i, e.timestamp
				haveBest = true
			}
		}
	}

	c.buckets[bestIdx][bestSlot] = entry{valid: true, parent: parent, name: name, timestamp: now, gen: c.clearStamp}
}

// Remove clears a specific (parent,name) entry if present, and opportunistically
// expires any stale entries it encounters along the way.
func (c *Cache) Remove(parent uint64, name string) {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	idxs := c.hashIndexes(parent, name)
	for _, idx := range idxs {
		bucket := &c.buckets[idx]
		for i := range bucket {
			e := &bucket[i]
			if !e.valid {
				continue
			}
			if e.parent == parent && e.name == name {
				*e = entry{}
				continue
			}
			if c.isExpired(e, now) {
				*e = entry{}
			}
		}
	}
}

// Search reports whether (parent,name) is currently remembered as absent.
func (c *Cache) Search(parent uint64, name string) bool {
	if !c.Enabled() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	idxs := c.hashIndexes(parent, name)
	for _, idx := range idxs {
		bucket := &c.buckets[idx]
		for i := range bucket {
			e := &bucket[i]
			if !e.valid || e.parent != parent || e.name != name {
				continue
			}
			if c.isExpired(e, now) {
				*e = entry{}
				return false
			}
			return true
		}
	}
	return false
}

// Clear invalidates every entry currently in the cache without touching the
// backing storage: it advances a global clear-stamp counter, so future
// operations treat everything recorded before this call as absent, even
// entries inserted at the same clock instant (P2).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearStamp++
}
