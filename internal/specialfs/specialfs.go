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

// Package specialfs serves the seven fixed-content special inodes every
// mount exposes regardless of the exported tree: masterinfo, stats, params,
// oplog, ophistory, mooseart and random (spec.md §4.8).
package specialfs

import (
	"fmt"
	"sync"
	"syscall"

	"github.com/distfs/mfsclient/clock"
)

// Reserved inode numbers, fixed for compatibility with existing tooling
// (spec.md §6).
const (
	MasterInfoInode uint64 = 0x7FFFFFFF
	StatsInode      uint64 = 0x7FFFFFF0
	OplogInode      uint64 = 0x7FFFFFF1
	OphistoryInode  uint64 = 0x7FFFFFF2
	MooseartInode   uint64 = 0x7FFFFFF3
	RandomInode     uint64 = 0x7FFFFFF4
	ParamsInode     uint64 = 0x7FFFFFF5
)

// IsSpecial reports whether inode is one of the seven reserved inodes.
func IsSpecial(inode uint64) bool {
	switch inode {
	case MasterInfoInode, StatsInode, OplogInode, OphistoryInode, MooseartInode, RandomInode, ParamsInode:
		return true
	default:
		return false
	}
}

// Handle is one open special file. Read honors the kernel-provided offset
// for the fixed-content files (masterinfo, mooseart) and ignores it for the
// streaming ones (oplog, ophistory, random), treating them as a pipe with a
// handle-private cursor, matching the originals' behavior.
type Handle interface {
	Read(offset int64, size int) ([]byte, error)
	Writable() bool
	Write(data []byte) (int, error)
	Release()
}

// MasterInfoSource supplies the current (possibly proxy-substituted)
// master address, per spec.md §4.8's masterinfo note.
type MasterInfoSource func() (ip [4]byte, port uint16, version uint32, proxyPort uint16)

// Config wires the Registry to the rest of the mount's ambient state.
type Config struct {
	Clock        clock.Clock
	MasterInfo   MasterInfoSource
	StatsText    func() string // per-open snapshot of the statistics tree
	ResetStats   func()        // invoked when a write to the stats inode is released
	ParamsText   func() string // root-only runtime parameter dump
	OpLogHistory int           // ring-buffer capacity in lines
}

// Registry owns the shared state (the oplog ring, the RNG seed) behind
// every special-file open.
type Registry struct {
	cfg  Config
	clk  clock.Clock
	ring *opLogRing

	mu    sync.Mutex
	rngS1 uint32
	rngS2 uint32
	rngS3 uint32
}

// New builds a Registry. Callers normally construct exactly one per mount.
func New(cfg Config) *Registry {
	if cfg.OpLogHistory <= 0 {
		cfg.OpLogHistory = 1000
	}
	return &Registry{
		cfg:   cfg,
		clk:   cfg.Clock,
		ring:  newOpLogRing(cfg.OpLogHistory),
		rngS1: 362436069,
		rngS2: 521288629,
		rngS3: 88675123,
	}
}

// AppendOpLog feeds one line into the shared oplog/ophistory ring buffer.
func (r *Registry) AppendOpLog(line string) {
	r.ring.append(line)
}

// Open returns a Handle for inode on behalf of uid, or a POSIX errno if the
// open is not permitted (params is root-only).
func (r *Registry) Open(inode uint64, uid uint32) (Handle, error) {
	switch inode {
	case MasterInfoInode:
		return &masterInfoHandle{reg: r}, nil
	case StatsInode:
		return &statsHandle{reg: r, snapshot: []byte(r.cfg.StatsText())}, nil
	case ParamsInode:
		if uid != 0 {
			return nil, syscall.EACCES
		}
		return &paramsHandle{text: []byte(r.cfg.ParamsText())}, nil
	case OplogInode:
		return &opLogHandle{ring: r.ring, cursor: r.ring.tailCursor()}, nil
	case OphistoryInode:
		return &opLogHandle{ring: r.ring, cursor: r.ring.headCursor()}, nil
	case MooseartInode:
		return &mooseartHandle{reg: r}, nil
	case RandomInode:
		return &randomHandle{reg: r}, nil
	default:
		return nil, syscall.ENOENT
	}
}

// readOnly is embedded by every handle type that never accepts writes.
type readOnly struct{}

func (readOnly) Writable() bool           { return false }
func (readOnly) Write([]byte) (int, error) { return 0, syscall.EACCES }

// --- masterinfo ---

// masterInfoBlobSize matches spec.md §6's "reads bounded to [0,14)":
// ip(4) + port(2) + version(4) + proxy port(4).
const masterInfoBlobSize = 14

type masterInfoHandle struct {
	readOnly
	reg *Registry
}

func (h *masterInfoHandle) Read(offset int64, size int) ([]byte, error) {
	ip, port, version, proxyPort := h.reg.cfg.MasterInfo()
	buf := make([]byte, masterInfoBlobSize)
	copy(buf[0:4], ip[:])
	buf[4] = byte(port)
	buf[5] = byte(port >> 8)
	buf[6] = byte(version)
	buf[7] = byte(version >> 8)
	buf[8] = byte(version >> 16)
	buf[9] = byte(version >> 24)
	buf[10] = byte(proxyPort)
	buf[11] = byte(proxyPort >> 8)
	return sliceAt(buf, offset, size), nil
}

func (h *masterInfoHandle) Release() {}

// --- stats ---

type statsHandle struct {
	readOnly
	reg      *Registry
	snapshot []byte
	written  bool
}

func (h *statsHandle) Read(offset int64, size int) ([]byte, error) {
	return sliceAt(h.snapshot, offset, size), nil
}

// statsHandle additionally accepts writes (any payload resets the tree), so
// it overrides the readOnly embed instead of using it.
func (h *statsHandle) Writable() bool { return true }
func (h *statsHandle) Write(data []byte) (int, error) {
	h.written = true
	return len(data), nil
}

func (h *statsHandle) Release() {
	if h.written && h.reg.cfg.ResetStats != nil {
		h.reg.cfg.ResetStats()
	}
}

// --- params ---

type paramsHandle struct {
	readOnly
	text []byte
}

func (h *paramsHandle) Read(offset int64, size int) ([]byte, error) {
	return sliceAt(h.text, offset, size), nil
}
func (h *paramsHandle) Release() {}

// --- oplog / ophistory ---

type opLogHandle struct {
	readOnly
	ring   *opLogRing
	cursor int
}

func (h *opLogHandle) Read(offset int64, size int) ([]byte, error) {
	lines, next := h.ring.since(h.cursor)
	h.cursor = next
	out := make([]byte, 0, size)
	for _, l := range lines {
		out = append(out, l...)
		out = append(out, '\n')
		if len(out) >= size {
			break
		}
	}
	if len(out) > size {
		out = out[:size]
	}
	return out, nil
}
func (h *opLogHandle) Release() {}

// --- mooseart ---

const mooseartBody = `           \_\_    _/_/
            \_\_  _/_/
      _______\_\_/_/_______
     /                     \
    /  %c               %c  \
    |       MOOSEFS          |
    |                        |
     \______  _____  _______/
            \/     \/
`

type mooseartHandle struct {
	readOnly
	reg *Registry
}

func (h *mooseartHandle) Read(offset int64, size int) ([]byte, error) {
	eyeOpen := (h.reg.clk.Now().Unix()/5)%2 == 0
	left, right := 'o', 'o'
	if !eyeOpen {
		left, right = '-', '-'
	}
	art := []byte(fmt.Sprintf(mooseartBody, left, right))
	return sliceAt(art, offset, size), nil
}
func (h *mooseartHandle) Release() {}

// --- random ---

type randomHandle struct {
	readOnly
	reg *Registry
}

func (h *randomHandle) Read(offset int64, size int) ([]byte, error) {
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(h.reg.kiss())
	}
	return out, nil
}
func (h *randomHandle) Release() {}

// kiss implements Marsaglia's KISS pseudo-random generator: not
// cryptographic, explicitly per spec.md §4.8.
func (r *Registry) kiss() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rngS1 = 36969*(r.rngS1&65535) + (r.rngS1 >> 16)
	r.rngS2 = 18000*(r.rngS2&65535) + (r.rngS2 >> 16)
	mwc := (r.rngS1 << 16) + r.rngS2

	r.rngS3 ^= r.rngS3 << 17
	r.rngS3 ^= r.rngS3 >> 13
	r.rngS3 ^= r.rngS3 << 5

	return mwc ^ r.rngS3
}

// sliceAt returns buf[offset : offset+size], clamped to buf's bounds, as
// ReadFile's (offset, size) addressing expects.
func sliceAt(buf []byte, offset int64, size int) []byte {
	if offset < 0 || offset >= int64(len(buf)) {
		return nil
	}
	end := offset + int64(size)
	if end > int64(len(buf)) {
		end = int64(len(buf))
	}
	return buf[offset:end]
}
