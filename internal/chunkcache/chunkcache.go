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

// Package chunkcache is the chunk-location cache (C2): it maps
// (inode, chunk-index) to the chunk id/version/chunk-server location blob
// the master last handed out, so repeated reads of the same chunk skip a
// master round trip.
package chunkcache

import "sync"

// chunkKey identifies one chunk record in the by-(inode,chunk-index) map.
type chunkKey struct {
	inode uint64
	chi   uint64
}

// record is one chunk-location entry. It is threaded onto two structures at
// once: the chunkKey map (O(1) find by (inode,chi)) and a doubly-linked list
// of every record belonging to the same inode (so clear_inode and the
// destroy-on-last-entry rule can walk one inode's records without scanning
// the whole cache).
type record struct {
	inode     uint64
	chi       uint64
	chunkID   uint64
	version   uint32
	csVersion uint32
	csBlob    []byte

	prev, next *record // siblings within the same inode's list
}

// inodeHeader owns the per-inode list of chunk records.
type inodeHeader struct {
	head, tail *record
	count      int
}

// Cache is the chunk-location cache. The zero value is not usable; call New.
type Cache struct {
	mu      sync.Mutex
	inodes  map[uint64]*inodeHeader
	byChunk map[chunkKey]*record
}

func New() *Cache {
	return &Cache{
		inodes:  make(map[uint64]*inodeHeader),
		byChunk: make(map[chunkKey]*record),
	}
}

func (c *Cache) unlinkLocked(r *record) {
	h := c.inodes[r.inode]
	if r.prev != nil {
		r.prev.next = r.next
	} else if h != nil {
		h.head = r.next
	}
	if r.next != nil {
		r.next.prev = r.prev
	} else if h != nil {
		h.tail = r.prev
	}
	if h != nil {
		h.count--
		if h.count == 0 {
			delete(c.inodes, r.inode)
		}
	}
	delete(c.byChunk, chunkKey{r.inode, r.chi})
}

func (c *Cache) linkLocked(r *record) {
	h, ok := c.inodes[r.inode]
	if !ok {
		h = &inodeHeader{}
		c.inodes[r.inode] = h
	}
	r.prev = h.tail
	r.next = nil
	if h.tail != nil {
		h.tail.next = r
	} else {
		h.head = r
	}
	h.tail = r
	h.count++
	c.byChunk[chunkKey{r.inode, r.chi}] = r
}

// Check reports whether (inode,chi) currently maps to exactly
// (chunkID,version).
func (c *Cache) Check(inode, chi, chunkID uint64, version uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.byChunk[chunkKey{inode, chi}]
	if !ok {
		return false
	}
	return r.chunkID == chunkID && r.version == version
}

// Change updates the chunk id/version of an existing record in place,
// leaving the chunk-server location blob untouched. It is a no-op if no
// record exists for (inode,chi).
func (c *Cache) Change(inode, chi, chunkID uint64, version uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.byChunk[chunkKey{inode, chi}]
	if !ok {
		return
	}
	r.chunkID = chunkID
	r.version = version
}

// Insert records (or replaces) the chunk-location entry for (inode,chi).
func (c *Cache) Insert(inode, chi, chunkID uint64, version, csVersion uint32, csBlob []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.byChunk[chunkKey{inode, chi}]; ok {
		r.chunkID = chunkID
		r.version = version
		r.csVersion = csVersion
		r.csBlob = csBlob
		return
	}

	r := &record{inode: inode, chi: chi, chunkID: chunkID, version: version, csVersion: csVersion, csBlob: csBlob}
	c.linkLocked(r)
}

// Find returns the full chunk-location entry for (inode,chi), if present.
func (c *Cache) Find(inode, chi uint64) (chunkID uint64, version, csVersion uint32, csBlob []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, present := c.byChunk[chunkKey{inode, chi}]
	if !present {
		return 0, 0, 0, nil, false
	}
	return r.chunkID, r.version, r.csVersion, r.csBlob, true
}

// Invalidate removes the (inode,chi) entry, if any. Removing the last entry
// of an inode removes the inode header too.
func (c *Cache) Invalidate(inode, chi uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.byChunk[chunkKey{inode, chi}]
	if !ok {
		return
	}
	c.unlinkLocked(r)
}

// ClearInode removes every chunk record of inode whose index is >= fromChi,
// collapsing the inode header if that empties it.
func (c *Cache) ClearInode(inode, fromChi uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.inodes[inode]
	if !ok {
		return
	}
	r := h.head
	for r != nil {
		next := r.next
		if r.chi >= fromChi {
			c.unlinkLocked(r)
		}
		r = next
	}
}

// RecordCount reports how many chunk-location records are currently cached
// across all inodes, for exporting as a metrics gauge.
func (c *Cache) RecordCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byChunk)
}

// InodeChunkCount returns how many chunk records inode currently owns,
// purely for tests that verify the list-collapse invariant (P3).
func (c *Cache) InodeChunkCount(inode uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.inodes[inode]
	if !ok {
		return 0
	}
	return h.count
}
