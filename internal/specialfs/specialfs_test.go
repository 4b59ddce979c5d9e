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

import (
	"syscall"
	"testing"
	"time"

	"github.com/distfs/mfsclient/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T, clk clock.Clock) *Registry {
	t.Helper()
	resetCalled := false
	return New(Config{
		Clock: clk,
		MasterInfo: func() ([4]byte, uint16, uint32, uint16) {
			return [4]byte{10, 0, 0, 1}, 9421, 0x010708, 9422
		},
		StatsText:    func() string { return "read_bytes: 100\n" },
		ResetStats:   func() { resetCalled = true },
		ParamsText:   func() string { return "io_try_reconnect_cnt = 3\n" },
		OpLogHistory: 4,
	})
}

func TestIsSpecial(t *testing.T) {
	assert.True(t, IsSpecial(MasterInfoInode))
	assert.True(t, IsSpecial(RandomInode))
	assert.False(t, IsSpecial(1))
}

func TestMasterInfoBoundedRead(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	reg := testRegistry(t, clk)
	h, err := reg.Open(MasterInfoInode, 1000)
	require.NoError(t, err)

	full, err := h.Read(0, 14)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 0, 0, 1}, full[0:4])
	assert.False(t, h.Writable())
}

func TestParamsRootOnly(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	reg := testRegistry(t, clk)

	_, err := reg.Open(ParamsInode, 1000)
	assert.Equal(t, syscall.EACCES, err)

	h, err := reg.Open(ParamsInode, 0)
	require.NoError(t, err)
	data, err := h.Read(0, 100)
	require.NoError(t, err)
	assert.Contains(t, string(data), "io_try_reconnect_cnt")
}

func TestStatsSnapshotAndResetOnWrite(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	var resetCalled bool
	reg := New(Config{
		Clock:      clk,
		StatsText:  func() string { return "x: 1\n" },
		ResetStats: func() { resetCalled = true },
		ParamsText: func() string { return "" },
	})

	h, err := reg.Open(StatsInode, 1000)
	require.NoError(t, err)
	assert.True(t, h.Writable())

	data, _ := h.Read(0, 100)
	assert.Equal(t, "x: 1\n", string(data))

	n, err := h.Write([]byte("0"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	h.Release()
	assert.True(t, resetCalled)
}

func TestMooseartEyesAnimateOnFiveSecondBoundary(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	reg := testRegistry(t, clk)
	h, err := reg.Open(MooseartInode, 1000)
	require.NoError(t, err)

	open, err := h.Read(0, 4096)
	require.NoError(t, err)

	clk.AdvanceTime(5 * time.Second)
	closed, err := h.Read(0, 4096)
	require.NoError(t, err)

	assert.NotEqual(t, string(open), string(closed))
}

func TestRandomIsNotConstant(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	reg := testRegistry(t, clk)
	h, err := reg.Open(RandomInode, 1000)
	require.NoError(t, err)

	a, _ := h.Read(0, 32)
	b, _ := h.Read(0, 32)
	assert.NotEqual(t, a, b)
}

func TestOpLogSeesOnlyLinesAfterOpen(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	reg := testRegistry(t, clk)

	reg.AppendOpLog("before-open")
	h, err := reg.Open(OplogInode, 1000)
	require.NoError(t, err)
	reg.AppendOpLog("after-open")

	data, err := h.Read(0, 4096)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "before-open")
	assert.Contains(t, string(data), "after-open")
}

func TestOphistoryReplaysRetainedHistoryFirst(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	reg := testRegistry(t, clk)

	reg.AppendOpLog("line1")
	h, err := reg.Open(OphistoryInode, 1000)
	require.NoError(t, err)

	data, err := h.Read(0, 4096)
	require.NoError(t, err)
	assert.Contains(t, string(data), "line1")
}

func TestOpLogRingWrapsWithoutLosingRecentLines(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	reg := testRegistry(t, clk) // capacity 4

	for i := 0; i < 10; i++ {
		reg.AppendOpLog(string(rune('a' + i)))
	}

	h, err := reg.Open(OphistoryInode, 1000)
	require.NoError(t, err)
	data, err := h.Read(0, 4096)
	require.NoError(t, err)
	assert.Contains(t, string(data), "j") // the most recent line must survive
	assert.NotContains(t, string(data), "a")
}
