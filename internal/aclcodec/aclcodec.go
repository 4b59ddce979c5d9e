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

// Package aclcodec marshals and unmarshals the flat POSIX ACL representation
// exchanged with the master through the system.posix_acl_{access,default}
// xattrs (spec.md §6).
package aclcodec

import (
	"encoding/binary"
	"fmt"
)

// Tag identifies which principal an ACL entry applies to.
type Tag uint16

const (
	TagUser      Tag = 1
	TagNamedUser Tag = 2
	TagGroup     Tag = 4
	TagNamedGrp  Tag = 8
	TagMask      Tag = 16
	TagOther     Tag = 32
)

// Entry is one ACL entry: a tag, an rwx permission mask in the low three
// bits, and an id (uid/gid) meaningful only for NamedUser/NamedGrp.
type Entry struct {
	Tag  Tag
	Perm uint16
	ID   uint32
}

const (
	version     = 2
	headerSize  = 4
	entrySize   = 8
	maxEntries  = 1 << 16
)

// Encode produces the flat blob: [version=2:1][flags=0:1][pad:2] followed by
// one 8-byte record per entry, in the order given.
func Encode(entries []Entry) []byte {
	buf := make([]byte, headerSize+entrySize*len(entries))
	buf[0] = version
	buf[1] = 0 // flags, always zero
	// buf[2:4] is padding, left zero.

	off := headerSize
	for _, e := range entries {
		binary.LittleEndian.PutUint16(buf[off:], uint16(e.Tag))
		binary.LittleEndian.PutUint16(buf[off+2:], e.Perm)
		binary.LittleEndian.PutUint32(buf[off+4:], e.ID)
		off += entrySize
	}
	return buf
}

// Decode parses a blob produced by Encode (or by the master). It rejects any
// version other than 2 and any payload whose length doesn't divide evenly
// into whole entries after the header.
func Decode(blob []byte) ([]Entry, error) {
	if len(blob) < headerSize {
		return nil, fmt.Errorf("aclcodec: blob too short (%d bytes)", len(blob))
	}
	if blob[0] != version {
		return nil, fmt.Errorf("aclcodec: unsupported version %d", blob[0])
	}
	rest := blob[headerSize:]
	if len(rest)%entrySize != 0 {
		return nil, fmt.Errorf("aclcodec: payload length %d is not a multiple of %d", len(rest), entrySize)
	}
	n := len(rest) / entrySize
	if n > maxEntries {
		return nil, fmt.Errorf("aclcodec: %d entries exceeds limit %d", n, maxEntries)
	}

	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		off := i * entrySize
		entries[i] = Entry{
			Tag:  Tag(binary.LittleEndian.Uint16(rest[off:])),
			Perm: binary.LittleEndian.Uint16(rest[off+2:]),
			ID:   binary.LittleEndian.Uint32(rest[off+4:]),
		}
	}
	return entries, nil
}

// FindMask returns the effective-rights mask entry's permission bits, and
// whether a MASK entry was present at all (POSIX ACLs with named
// user/group entries are required to carry one).
func FindMask(entries []Entry) (uint16, bool) {
	for _, e := range entries {
		if e.Tag == TagMask {
			return e.Perm, true
		}
	}
	return 0, false
}

// NeedsMask reports whether entries contains any NAMED_USER/NAMED_GROUP
// entry, which POSIX requires to be paired with a MASK entry.
func NeedsMask(entries []Entry) bool {
	for _, e := range entries {
		if e.Tag == TagNamedUser || e.Tag == TagNamedGrp {
			return true
		}
	}
	return false
}
