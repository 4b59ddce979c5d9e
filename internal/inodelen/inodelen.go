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

// Package inodelen is the inode-length registry (C4): a refcounted record
// per inode tracking the file length every outstanding handle agrees on, so
// concurrent opens of the same inode share one up-to-date length instead of
// each tracking (and disagreeing about) their own.
package inodelen

import (
	"sync"
	"sync/atomic"
)

const defaultBuckets = 1021

type record struct {
	inode  uint64
	refcnt int64
	fleng  atomic.Uint64
}

type bucket struct {
	mu      sync.Mutex
	records map[uint64]*record
}

// Cache is the inode-length registry. The zero value is not usable; call
// New.
type Cache struct {
	buckets []bucket
}

func New() *Cache {
	c := &Cache{buckets: make([]bucket, defaultBuckets)}
	for i := range c.buckets {
		c.buckets[i].records = make(map[uint64]*record)
	}
	return c
}

func (c *Cache) bucketFor(inode uint64) *bucket {
	return &c.buckets[inode%uint64(len(c.buckets))]
}

// Handle is an opaque reference to an inode's length record. The caller
// must Release it exactly once.
type Handle struct {
	rec *record
}

// Acquire returns a handle to inode's length record, creating it if this is
// the first outstanding handle. Exactly one record exists per inode for as
// long as any handle is outstanding.
func (c *Cache) Acquire(inode uint64) *Handle {
	b := c.bucketFor(inode)
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[inode]
	if !ok {
		rec = &record{inode: inode}
		b.records[inode] = rec
	}
	rec.refcnt++
	return &Handle{rec: rec}
}

// Release drops a handle. The record is removed iff its refcount reaches
// zero, re-checked under the bucket lock so a concurrent Acquire racing the
// drop-to-zero can't observe (or reuse) a record being torn down.
func (c *Cache) Release(h *Handle) {
	b := c.bucketFor(h.rec.inode)
	b.mu.Lock()
	defer b.mu.Unlock()

	h.rec.refcnt--
	if h.rec.refcnt == 0 {
		delete(b.records, h.rec.inode)
	}
}

// GetFleng reads the handle's current length.
func (c *Cache) GetFleng(h *Handle) uint64 {
	return h.rec.fleng.Load()
}

// SetFleng updates the handle's length, visible to every other handle on
// the same inode.
func (c *Cache) SetFleng(h *Handle, length uint64) {
	h.rec.fleng.Store(length)
}

// UpdateFleng broadcasts a new length to every outstanding handle of inode,
// without requiring the caller to hold one itself. It is a no-op if no
// handle is currently outstanding for inode.
func (c *Cache) UpdateFleng(inode uint64, length uint64) {
	b := c.bucketFor(inode)
	b.mu.Lock()
	defer b.mu.Unlock()

	if rec, ok := b.records[inode]; ok {
		rec.fleng.Store(length)
	}
}
