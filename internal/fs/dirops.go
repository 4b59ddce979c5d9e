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

package fs

import (
	"context"
	"sync/atomic"
	"syscall"

	"github.com/distfs/mfsclient/internal/specialfs"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// MkDir creates a child directory, per spec.md §4.8.
func (fs *FileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	if err := rejectOversizeName(op.Name); err != nil {
		return err
	}
	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	reply, err := fs.master.MkDir(ctx, uint64(op.Parent), op.Name, uint32(op.Mode), caller)
	if err != nil {
		return err
	}
	fs.neg.Remove(uint64(op.Parent), op.Name)
	fs.dc.put(uint64(op.Parent), op.Name, reply.Inode, reply.Attr)

	op.Entry.Child = fuseops.InodeID(reply.Inode)
	op.Entry.Attributes = toInodeAttributes(reply.Attr)
	return nil
}

// CreateFile creates and opens a regular file in one round trip, per
// spec.md §4.8; the resulting handle is minted through the coordinator
// table (C6) exactly as OpenFile would.
func (fs *FileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	if err := rejectOversizeName(op.Name); err != nil {
		return err
	}
	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	reply, err := fs.master.CreateFile(ctx, uint64(op.Parent), op.Name, uint32(op.Mode), caller)
	if err != nil {
		return err
	}
	fs.neg.Remove(uint64(op.Parent), op.Name)
	fs.dc.put(uint64(op.Parent), op.Name, reply.Inode, reply.Attr)

	op.Entry.Child = fuseops.InodeID(reply.Inode)
	op.Entry.Attributes = toInodeAttributes(reply.Attr)

	h, err := fs.handles.Open(ctx, reply.Inode, modeForFlags(uint32(op.Flags)), op.Uid, op.Gid, int32(op.Pid))
	if err != nil {
		return err
	}
	op.Handle = fs.registerFileHandle(reply.Inode, h)
	return nil
}

// CreateSymlink creates a symlink inode, per spec.md §4.8.
func (fs *FileSystem) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	if err := rejectOversizeName(op.Name); err != nil {
		return err
	}
	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	reply, err := fs.master.CreateSymlink(ctx, uint64(op.Parent), op.Name, op.Target, caller)
	if err != nil {
		return err
	}
	fs.neg.Remove(uint64(op.Parent), op.Name)
	fs.dc.put(uint64(op.Parent), op.Name, reply.Inode, reply.Attr)

	op.Entry.Child = fuseops.InodeID(reply.Inode)
	op.Entry.Attributes = toInodeAttributes(reply.Attr)
	return nil
}

// ReadSymlink returns the target of a symlink inode.
func (fs *FileSystem) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	target, err := fs.master.ReadSymlink(ctx, uint64(op.Inode))
	if err != nil {
		return err
	}
	op.Target = target
	return nil
}

// RmDir removes an empty child directory.
func (fs *FileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	if err := rejectOversizeName(op.Name); err != nil {
		return err
	}
	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	if err := fs.master.RmDir(ctx, uint64(op.Parent), op.Name, caller); err != nil {
		return err
	}
	fs.dc.invalidate(uint64(op.Parent), op.Name)
	if fs.neg.Enabled() {
		fs.neg.Insert(uint64(op.Parent), op.Name)
	}
	return nil
}

// Unlink removes a directory entry pointing at a (possibly still-open) file.
func (fs *FileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	if err := rejectOversizeName(op.Name); err != nil {
		return err
	}
	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	if err := fs.master.Unlink(ctx, uint64(op.Parent), op.Name, caller); err != nil {
		return err
	}
	fs.dc.invalidate(uint64(op.Parent), op.Name)
	if fs.neg.Enabled() {
		fs.neg.Insert(uint64(op.Parent), op.Name)
	}
	return nil
}

// Rename moves a directory entry, invalidating both the old and new dircache
// slots, clearing any negative entry for the new name and, when the negative
// cache is enabled, recording the old name as absent.
func (fs *FileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	if err := rejectOversizeName(op.OldName); err != nil {
		return err
	}
	if err := rejectOversizeName(op.NewName); err != nil {
		return err
	}
	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	if err := fs.master.Rename(ctx, uint64(op.OldParent), op.OldName, uint64(op.NewParent), op.NewName, caller); err != nil {
		return err
	}
	fs.dc.invalidate(uint64(op.OldParent), op.OldName)
	fs.dc.invalidate(uint64(op.NewParent), op.NewName)
	fs.neg.Remove(uint64(op.NewParent), op.NewName)
	if fs.neg.Enabled() {
		fs.neg.Insert(uint64(op.OldParent), op.OldName)
	}
	return nil
}

// OpenDir admits any directory open; a fresh listing is snapshotted lazily
// on the first ReadDir against the resulting handle.
func (fs *FileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	inode := uint64(op.Inode)
	if specialfs.IsSpecial(inode) {
		return syscall.ENOTDIR
	}
	op.Handle = fs.registerDirHandle(inode)
	return nil
}

// ReadDir serves one page of a directory listing out of the handle's
// snapshot. The first ReadDir on a handle builds that snapshot by fetching
// every continuation page from the master.
func (fs *FileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	dh, ok := fs.dirHandles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		return syscall.EBADF
	}

	if dh.entries == nil {
		caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
		defer release()

		var entries []fuseutil.Dirent
		cont := ""
		for {
			page, next, err := fs.master.ReadDir(ctx, dh.inode, cont, caller)
			if err != nil {
				return err
			}
			for _, e := range page {
				entries = append(entries, fuseutil.Dirent{
					Offset: fuseops.DirOffset(len(entries) + 1),
					Inode:  fuseops.InodeID(e.Inode),
					Name:   e.Name,
					Type:   directDirentType(e.Attr.Type()),
				})
			}
			if next == "" {
				break
			}
			cont = next
		}
		fs.mu.Lock()
		dh.entries = entries
		fs.mu.Unlock()
	}

	if int(op.Offset) > len(dh.entries) {
		return nil
	}
	for _, e := range dh.entries[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], e)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

// ReleaseDirHandle drops a directory listing snapshot.
func (fs *FileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	delete(fs.dirHandles, op.Handle)
	fs.mu.Unlock()
	return nil
}

func directDirentType(nodeType uint8) fuseutil.DirentType {
	switch nodeType {
	case 2: // attr.TypeDir
		return fuseutil.DT_Directory
	case 3: // attr.TypeSymlink
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

var handleIDCounter uint64

func (fs *FileSystem) registerDirHandle(inode uint64) fuseops.HandleID {
	id := fuseops.HandleID(atomic.AddUint64(&handleIDCounter, 1))
	fs.mu.Lock()
	fs.dirHandles[id] = &dirHandleState{inode: inode}
	fs.mu.Unlock()
	return id
}
