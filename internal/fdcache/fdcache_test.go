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

package fdcache

import (
	"testing"
	"time"

	"github.com/distfs/mfsclient/clock"
	"github.com/distfs/mfsclient/internal/attr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertThenFind(t *testing.T) {
	fc := clock.NewSimulatedClock(time.Now())
	c := New(fc)

	var a attr.Record
	a.SetLength(42)
	c.Insert(1, 100, 200, 300, a, 7, ChunkData{ChunkID: 55})

	gotAttr, gotFlags, ok := c.Find(1, 100, 200, 300)
	require.True(t, ok)
	assert.Equal(t, uint64(42), gotAttr.Length())
	assert.Equal(t, uint8(7), gotFlags)
}

// TestP4Scoping: any differing field in the tuple must miss, even within TTL.
func TestP4Scoping(t *testing.T) {
	fc := clock.NewSimulatedClock(time.Now())
	c := New(fc)

	var a attr.Record
	c.Insert(1, 100, 200, 300, a, 0, ChunkData{})

	_, _, ok := c.Find(1, 999, 200, 300)
	assert.False(t, ok, "uid mismatch must miss")
	_, _, ok = c.Find(1, 100, 999, 300)
	assert.False(t, ok, "gid mismatch must miss")
	_, _, ok = c.Find(1, 100, 200, 999)
	assert.False(t, ok, "pid mismatch must miss")
	_, _, ok = c.Find(2, 100, 200, 300)
	assert.False(t, ok, "inode mismatch must miss")

	_, _, ok = c.Find(1, 100, 200, 300)
	assert.True(t, ok, "exact tuple must still hit")
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	fc := clock.NewSimulatedClock(time.Now())
	c := New(fc)

	var a attr.Record
	c.Insert(1, 100, 200, 300, a, 0, ChunkData{})
	fc.AdvanceTime(1100 * time.Millisecond)

	_, _, ok := c.Find(1, 100, 200, 300)
	assert.False(t, ok)
}

func TestEntryStillValidJustBeforeTTL(t *testing.T) {
	fc := clock.NewSimulatedClock(time.Now())
	c := New(fc)

	var a attr.Record
	c.Insert(1, 100, 200, 300, a, 0, ChunkData{})
	fc.AdvanceTime(900 * time.Millisecond)

	_, _, ok := c.Find(1, 100, 200, 300)
	assert.True(t, ok)
}

func TestInsertUpdatesInPlaceForSameTuple(t *testing.T) {
	fc := clock.NewSimulatedClock(time.Now())
	c := New(fc)

	var a1, a2 attr.Record
	a1.SetLength(1)
	a2.SetLength(2)
	c.Insert(1, 100, 200, 300, a1, 0, ChunkData{})
	c.Insert(1, 100, 200, 300, a2, 1, ChunkData{})

	gotAttr, gotFlags, ok := c.Find(1, 100, 200, 300)
	require.True(t, ok)
	assert.Equal(t, uint64(2), gotAttr.Length())
	assert.Equal(t, uint8(1), gotFlags)
}

func TestInsertPurgesOtherStaleDuplicatesOnBucket(t *testing.T) {
	fc := clock.NewSimulatedClock(time.Now())
	c := New(fc)

	var a attr.Record
	// Same inode, different pid -- a distinct tuple on the same inode.
	c.Insert(1, 100, 200, 300, a, 0, ChunkData{})
	c.Insert(1, 100, 200, 301, a, 0, ChunkData{})

	// Insert's duplicate-purge only targets records for the same inode;
	// the newest tuple for pid 301 survives, the older pid-300 record is
	// purged as a stale duplicate of the same inode.
	_, _, ok := c.Find(1, 100, 200, 300)
	assert.False(t, ok)
	_, _, ok = c.Find(1, 100, 200, 301)
	assert.True(t, ok)
}

func TestAcquireUnlinksAndReleaseDoesNotPanic(t *testing.T) {
	fc := clock.NewSimulatedClock(time.Now())
	c := New(fc)

	var a attr.Record
	a.SetLength(9)
	c.Insert(1, 100, 200, 300, a, 3, ChunkData{ChunkID: 77})

	e := c.Acquire(1, 100, 200, 300)
	require.NotNil(t, e)
	assert.Equal(t, uint64(9), e.Attr().Length())
	assert.Equal(t, uint8(3), e.LookupFlags())
	assert.Equal(t, uint64(77), c.InjectChunkData(e).ChunkID)

	// Acquired entries are unlinked: a second find must miss.
	_, _, ok := c.Find(1, 100, 200, 300)
	assert.False(t, ok)

	c.Release(e) // must not panic
}

func TestAcquireMissingReturnsNil(t *testing.T) {
	fc := clock.NewSimulatedClock(time.Now())
	c := New(fc)

	assert.Nil(t, c.Acquire(1, 100, 200, 300))
}

func TestInvalidateRemovesAllTuplesForInode(t *testing.T) {
	fc := clock.NewSimulatedClock(time.Now())
	c := New(fc)

	var a attr.Record
	c.Insert(1, 100, 200, 300, a, 0, ChunkData{})
	c.Insert(1, 111, 222, 333, a, 0, ChunkData{})
	c.Insert(2, 100, 200, 300, a, 0, ChunkData{})

	c.Invalidate(1)

	_, _, ok := c.Find(1, 100, 200, 300)
	assert.False(t, ok)
	_, _, ok = c.Find(1, 111, 222, 333)
	assert.False(t, ok)
	_, _, ok = c.Find(2, 100, 200, 300)
	assert.True(t, ok, "unrelated inode must be untouched")
}
