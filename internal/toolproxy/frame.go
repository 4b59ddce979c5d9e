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

// Package toolproxy is the loopback tool-proxy listener (C7): it lets a
// local administrative tool send master commands through this mount's
// already-authenticated session, without the tool ever holding its own
// credentials, and without a long-running command (snapshot, rewrite
// chunk, ...) losing its socket to an idle timeout.
package toolproxy

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// Wire command codes. spec.md §6 names these by the original protocol's
// symbolic constants (CLTOMA_FUSE_REGISTER, MATOCL_FUSE_REGISTER,
// ANTOAN_NOP, CLTOMA_FUSE_SNAPSHOT, MATOCL_FUSE_SNAPSHOT); their numeric
// wire values live in a master-protocol header outside this retrieval pack
// (`original_source/mfsclient/masterproxy.c` uses the symbols but never
// defines them). The values below are stand-ins kept internally consistent
// across this package and its tests; replace with the real protocol table
// if it ever becomes available.
const (
	cmdRegister      uint32 = 1
	cmdRegisterReply uint32 = 2
	cmdNop           uint32 = 0
	cmdSnapshot      uint32 = 8
	cmdSnapshotReply uint32 = 9
)

// statusOK is the single-byte MFS_STATUS_OK value echoed in a REGISTER
// reply; same provenance note as the command codes above.
const statusOK uint8 = 0

// registerFrameSize is fixed by spec.md §6: "First client frame: cmd =
// CLTOMA_FUSE_REGISTER, size = 73, payload = [ACL_BLOB:64]
// [REGISTER_TOOLS:1][...:8]".
const registerFrameSize = 73
const registerBlobSize = 64

// registerToolsDiscriminant is the byte distinguishing a tools-registration
// from a regular client registration in the shared REGISTER frame; its
// numeric value has the same out-of-pack provenance as the command codes.
const registerToolsDiscriminant = 1

// registerBlob is the fixed 64-byte ACL magic every REGISTER frame must
// carry verbatim (`FUSE_REGISTER_BLOB_ACL` in masterproxy.c:147). The
// literal bytes of that blob live in the same missing header as the command
// codes; this package defines its own fixed value and requires an exact
// match, which is all the protocol here actually needs.
var registerBlob [registerBlobSize]byte

// frame is one decoded `[cmd:u32 BE][size:u32 BE][payload:size bytes]`
// message, per spec.md §6.
type frame struct {
	Cmd     uint32
	Payload []byte
}

// readFrame reads one frame from conn, enforcing a deadline derived from
// perOpTimeout. maxPayload bounds the payload size read, guarding against a
// hostile or corrupt peer claiming an enormous size.
func readFrame(conn net.Conn, perOpTimeout time.Duration, maxPayload uint32) (frame, error) {
	if err := conn.SetReadDeadline(time.Now().Add(perOpTimeout)); err != nil {
		return frame{}, err
	}
	var header [8]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return frame{}, err
	}
	cmd := binary.BigEndian.Uint32(header[0:4])
	size := binary.BigEndian.Uint32(header[4:8])
	if size > maxPayload {
		return frame{}, fmt.Errorf("toolproxy: frame size %d exceeds limit %d", size, maxPayload)
	}

	if err := conn.SetReadDeadline(time.Now().Add(perOpTimeout)); err != nil {
		return frame{}, err
	}
	payload := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(conn, payload); err != nil {
			return frame{}, err
		}
	}
	return frame{Cmd: cmd, Payload: payload}, nil
}

// writeFrame writes cmd/payload as one frame, enforcing a deadline derived
// from perOpTimeout.
func writeFrame(conn net.Conn, perOpTimeout time.Duration, cmd uint32, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(perOpTimeout)); err != nil {
		return err
	}
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], cmd)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	_, err := conn.Write(buf)
	return err
}
