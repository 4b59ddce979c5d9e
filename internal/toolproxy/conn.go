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

package toolproxy

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/distfs/mfsclient/internal/logger"
)

// phase tracks a connection's sendnops state from masterproxy.c: idle (no
// command in flight, no nop needed), inFlight (a forwarded command is
// running, the keep-alive thread should be pinging), nopWriting (a nop
// write is in progress — the server thread must not interleave its own
// reply with it), and terminated (the connection is done; both threads
// exit, and whichever notices last simply lets the connection get
// garbage-collected instead of an explicit free).
type phase int32

const (
	phaseIdle phase = iota
	phaseInFlight
	phaseNopWriting
	phaseTerminated
)

// connState is one accepted connection's shared state, guarded by mu and
// signaled by cond — the Go equivalent of masterproxy.c's conn_data plus
// its mutex, observed by both the server and keep-alive goroutines. P10 (no
// interleave) holds because each goroutine writes to conn only from a phase
// that excludes the other's write: the keep-alive goroutine writes only
// after claiming phaseNopWriting from phaseInFlight, and the server
// goroutine writes its reply only after waitNotNopWriting has seen the nop
// write finish and moved the connection to phaseIdle under the same lock.
// The writes themselves happen outside mu.
type connState struct {
	mu    sync.Mutex
	cond  *sync.Cond
	phase phase
}

func newConnState() *connState {
	cs := &connState{}
	cs.cond = sync.NewCond(&cs.mu)
	return cs
}

func (cs *connState) setPhase(p phase) {
	cs.mu.Lock()
	cs.phase = p
	cs.cond.Broadcast()
	cs.mu.Unlock()
}

func (cs *connState) get() phase {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.phase
}

// claimNopWriting transitions phaseInFlight -> phaseNopWriting, reporting
// whether it did (the keep-alive goroutine should only ever attempt this
// from phaseInFlight; if the server thread has since gone idle or torn the
// connection down there is nothing to ping).
func (cs *connState) claimNopWriting() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.phase != phaseInFlight {
		return false
	}
	cs.phase = phaseNopWriting
	cs.cond.Broadcast()
	return true
}

// waitNotNopWriting blocks the server goroutine until no nop write is in
// progress, mirroring masterproxy.c's explicit busy-wait loop with a
// condition variable instead of a sleep, then sets phaseIdle in the same
// critical section so no new nop write can be claimed before the reply.
func (cs *connState) waitNotNopWriting() {
	cs.mu.Lock()
	for cs.phase == phaseNopWriting {
		cs.cond.Wait()
	}
	cs.phase = phaseIdle
	cs.cond.Broadcast()
	cs.mu.Unlock()
}

// Forwarder is the subset of the main master session the proxy forwards
// tool commands through (masterproxy.c's fs_custom).
type Forwarder interface {
	Custom(ctx context.Context, cmd uint32, payload []byte) (replyCmd uint32, reply []byte, err error)
}

// DentryInvalidator asks the kernel to drop its cached dentry for
// (parent, name), used after a tool-driven snapshot lands a new name.
type DentryInvalidator func(parent uint64, name string)

// handler bundles everything one accepted connection needs beyond its own
// socket and state.
type handler struct {
	forwarder   Forwarder
	invalidator DentryInvalidator
	clearNeg    func()
	cfg         Config
	id          string
}

// serve runs the server-thread logic for one connection until it ends,
// then marks the connection terminated so the keep-alive goroutine exits.
func (h *handler) serve(conn net.Conn, cs *connState) {
	defer func() {
		cs.setPhase(phaseTerminated)
		_ = conn.Close()
	}()

	if !h.handshake(conn) {
		return
	}

	for {
		f, err := readFrame(conn, h.cfg.SocketTimeout, h.cfg.MaxFrameSize)
		if err != nil {
			return
		}
		if len(f.Payload) < 4 {
			return
		}

		cs.setPhase(phaseInFlight)

		msgid := binary.BigEndian.Uint32(f.Payload[0:4])
		body := f.Payload[4:]

		var snapInodeDst uint64
		var snapName string
		if f.Cmd == cmdSnapshot {
			snapInodeDst, snapName = parseSnapshotTarget(body)
		}

		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.TotalTimeout)
		replyCmd, reply, err := h.forwarder.Custom(ctx, f.Cmd, body)
		cancel()
		if err != nil {
			return
		}

		if f.Cmd == cmdSnapshot && replyCmd == cmdSnapshotReply {
			h.clearNeg()
			if snapInodeDst != 0 && snapName != "" {
				h.invalidator(snapInodeDst, snapName)
			}
		}

		out := make([]byte, 4+len(reply))
		binary.BigEndian.PutUint32(out[0:4], msgid)
		copy(out[4:], reply)

		cs.waitNotNopWriting()

		if err := writeFrame(conn, h.cfg.SocketTimeout, replyCmd, out); err != nil {
			return
		}
	}
}

// handshake consumes the mandatory first REGISTER frame, replying
// REGISTER_OK iff it is well-formed. It reports whether the connection
// should continue being served.
func (h *handler) handshake(conn net.Conn) bool {
	f, err := readFrame(conn, h.cfg.SocketTimeout, registerFrameSize)
	if err != nil {
		logger.Warnf("toolproxy[%s]: register read failed: %v", h.id, err)
		return false
	}
	if f.Cmd != cmdRegister || len(f.Payload) != registerFrameSize {
		logger.Warnf("toolproxy[%s]: first frame was not a valid register", h.id)
		return false
	}
	if [registerBlobSize]byte(f.Payload[:registerBlobSize]) != registerBlob {
		logger.Warnf("toolproxy[%s]: register blob mismatch", h.id)
		return false
	}
	if f.Payload[registerBlobSize] != registerToolsDiscriminant {
		logger.Warnf("toolproxy[%s]: register was not a tools registration", h.id)
		return false
	}

	return writeFrame(conn, h.cfg.SocketTimeout, cmdRegisterReply, []byte{statusOK}) == nil
}

// parseSnapshotTarget extracts (inode_dst, name_dst) from a
// CLTOMA_FUSE_SNAPSHOT payload (src inode, dst inode, name length, name),
// per masterproxy.c's inline parse. It returns the zero value if the
// payload is too short to carry a destination at all.
func parseSnapshotTarget(body []byte) (uint64, string) {
	if len(body) < 9 {
		return 0, ""
	}
	inodeDst := uint64(binary.BigEndian.Uint32(body[4:8]))
	nameLen := int(body[8])
	if len(body) < 9+nameLen {
		return 0, ""
	}
	return inodeDst, string(body[9 : 9+nameLen])
}

// keepAlive runs the keep-alive-thread logic for one connection: while the
// server thread is mid-command (phaseInFlight), it writes a nop frame every
// KeepAliveInterval, claiming phaseNopWriting for the duration of the write
// so the server thread's reply can never interleave with it (P10).
func (h *handler) keepAlive(conn net.Conn, cs *connState) {
	ticker := time.NewTicker(h.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		<-ticker.C
		if cs.get() == phaseTerminated {
			return
		}
		if !cs.claimNopWriting() {
			continue
		}
		if err := writeFrame(conn, h.cfg.SocketTimeout, cmdNop, nil); err != nil {
			cs.setPhase(phaseTerminated)
			return
		}
		cs.mu.Lock()
		if cs.phase == phaseNopWriting {
			cs.phase = phaseInFlight
		}
		cs.cond.Broadcast()
		cs.mu.Unlock()
	}
}
