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

// Package attr holds the fixed-size attribute record the master hands back
// for every inode. The core treats it as an opaque blob threaded through
// caches untouched; only a handful of accessor predicates look inside it.
package attr

import "encoding/binary"

// Size is the wire size of one attribute record.
const Size = 35

// Record is the opaque attribute blob: type, mode, uid, gid, atime/mtime/
// ctime, nlink, and either length or rdev, in the layout the master uses on
// the wire. Callers copy it by value.
type Record [Size]byte

// Mode-attr flag bits within the mode-attr byte returned by MAttr.
const (
	NoACache       = 0x01
	NoECache       = 0x02
	AllowDataCache = 0x04
	DirectMode     = 0x08
	NoXAttr        = 0x10
)

// Type returns the node type byte (directory, file, symlink, ...).
func (r Record) Type() uint8 {
	return r[1] >> 4
}

// MAttr returns the mode-attr flag byte.
func (r Record) MAttr() uint8 {
	return r[0]
}

func (r Record) hasFlag(bit uint8) bool { return r.MAttr()&bit != 0 }

func (r Record) NoACacheFlag() bool       { return r.hasFlag(NoACache) }
func (r Record) NoECacheFlag() bool       { return r.hasFlag(NoECache) }
func (r Record) AllowDataCacheFlag() bool { return r.hasFlag(AllowDataCache) }
func (r Record) DirectModeFlag() bool     { return r.hasFlag(DirectMode) }
func (r Record) NoXAttrFlag() bool        { return r.hasFlag(NoXAttr) }

// Length returns the file length encoded in the trailing 8 bytes of the
// record (meaningful only for regular files; for device nodes the same
// bytes hold rdev instead).
func (r Record) Length() uint64 {
	return binary.BigEndian.Uint64(r[27:35])
}

// SetLength writes a file length into the trailing 8 bytes of the record.
func (r *Record) SetLength(length uint64) {
	binary.BigEndian.PutUint64(r[27:35], length)
}

// Layout of the remaining fields, needed by the dispatcher (C8) to render a
// fuseops.InodeAttributes: mode/perm bits share bytes[1:3] with the type
// nibble already read by Type(); uid/gid/atime/mtime/ctime/nlink each take
// one big-endian uint32 in the fixed order below.
const (
	offUID   = 3
	offGID   = 7
	offATime = 11
	offMTime = 15
	offCTime = 19
	offNLink = 23
)

// Mode returns the permission bits (the low 12 bits of the type/mode
// halfword), independent of the node-type nibble Type() reports.
func (r Record) Mode() uint16 {
	return binary.BigEndian.Uint16(r[1:3]) & 0x0FFF
}

// SetTypeMode packs a node type and permission bits into bytes[1:3].
func (r *Record) SetTypeMode(typ uint8, mode uint16) {
	binary.BigEndian.PutUint16(r[1:3], uint16(typ)<<12|mode&0x0FFF)
}

func (r Record) UID() uint32   { return binary.BigEndian.Uint32(r[offUID : offUID+4]) }
func (r Record) GID() uint32   { return binary.BigEndian.Uint32(r[offGID : offGID+4]) }
func (r Record) ATime() uint32 { return binary.BigEndian.Uint32(r[offATime : offATime+4]) }
func (r Record) MTime() uint32 { return binary.BigEndian.Uint32(r[offMTime : offMTime+4]) }
func (r Record) CTime() uint32 { return binary.BigEndian.Uint32(r[offCTime : offCTime+4]) }
func (r Record) NLink() uint32 { return binary.BigEndian.Uint32(r[offNLink : offNLink+4]) }

func (r *Record) SetUID(v uint32)   { binary.BigEndian.PutUint32(r[offUID:offUID+4], v) }
func (r *Record) SetGID(v uint32)   { binary.BigEndian.PutUint32(r[offGID:offGID+4], v) }
func (r *Record) SetATime(v uint32) { binary.BigEndian.PutUint32(r[offATime:offATime+4], v) }
func (r *Record) SetMTime(v uint32) { binary.BigEndian.PutUint32(r[offMTime:offMTime+4], v) }
func (r *Record) SetCTime(v uint32) { binary.BigEndian.PutUint32(r[offCTime:offCTime+4], v) }
func (r *Record) SetNLink(v uint32) { binary.BigEndian.PutUint32(r[offNLink:offNLink+4], v) }

// Node-type nibble values, as returned by Type().
const (
	TypeFile    uint8 = 1
	TypeDir     uint8 = 2
	TypeSymlink uint8 = 3
)
