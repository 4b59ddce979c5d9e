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

	"github.com/distfs/mfsclient/internal/handle"
	"github.com/distfs/mfsclient/internal/specialfs"
	"github.com/jacobsa/fuse/fuseops"
)

// modeForFlags maps the kernel's open(2) access-mode bits to the
// coordinator's handle.Mode, per spec.md §4.6.
func modeForFlags(flags uint32) handle.Mode {
	switch int(flags) & syscall.O_ACCMODE {
	case syscall.O_RDONLY:
		return handle.ModeRO
	case syscall.O_WRONLY:
		return handle.ModeWO
	default:
		return handle.ModeRW
	}
}

func (fs *FileSystem) registerFileHandle(inode uint64, h handle.H) fuseops.HandleID {
	id := fuseops.HandleID(atomic.AddUint64(&handleIDCounter, 1))
	fs.mu.Lock()
	fs.fileHandleByID[id] = h
	fs.fileHandleInode[id] = inode
	fs.mu.Unlock()
	return id
}

func (fs *FileSystem) registerSpecialHandle(inode uint64, h specialfs.Handle) fuseops.HandleID {
	id := fuseops.HandleID(atomic.AddUint64(&handleIDCounter, 1))
	fs.mu.Lock()
	fs.specialHandles[id] = h
	fs.specialHandleInode[id] = inode
	fs.mu.Unlock()
	return id
}

// OpenFile mints a handle for a regular file through the coordinator table
// (C6), or serves one of the seven special inodes directly.
func (fs *FileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	inode := uint64(op.Inode)
	if specialfs.IsSpecial(inode) {
		h, err := fs.special.Open(inode, op.Uid)
		if err != nil {
			return err
		}
		op.Handle = fs.registerSpecialHandle(inode, h)
		return nil
	}

	h, err := fs.handles.Open(ctx, inode, modeForFlags(uint32(op.Flags)), op.Uid, op.Gid, int32(op.Pid))
	if err != nil {
		return err
	}
	op.Handle = fs.registerFileHandle(inode, h)
	return nil
}

func (fs *FileSystem) lookupFileHandle(id fuseops.HandleID) (handle.H, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	h, ok := fs.fileHandleByID[id]
	return h, ok
}

func (fs *FileSystem) lookupFileHandleInode(id fuseops.HandleID) (uint64, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	inode, ok := fs.fileHandleInode[id]
	return inode, ok
}

func (fs *FileSystem) lookupSpecialHandle(id fuseops.HandleID) (specialfs.Handle, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	h, ok := fs.specialHandles[id]
	return h, ok
}

// ReadFile reads through the coordinator's per-handle read session, or the
// matching special-file generator.
func (fs *FileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	if sh, ok := fs.lookupSpecialHandle(op.Handle); ok {
		data, err := sh.Read(op.Offset, op.Size)
		if err != nil {
			return err
		}
		op.Data = data
		return nil
	}

	h, ok := fs.lookupFileHandle(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	data, err := fs.handles.Read(ctx, h, uint64(op.Inode), uint64(op.Offset), uint32(op.Size))
	if err != nil {
		return err
	}
	op.Data = data
	return nil
}

// WriteFile writes through the coordinator, or accepts a reset/trigger
// write to a writable special inode (.stats).
func (fs *FileSystem) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	if sh, ok := fs.lookupSpecialHandle(op.Handle); ok {
		if !sh.Writable() {
			return syscall.EACCES
		}
		_, err := sh.Write(op.Data)
		return err
	}

	h, ok := fs.lookupFileHandle(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	_, err := fs.handles.Write(ctx, h, uint64(op.Inode), uint64(op.Offset), op.Data)
	return err
}

// FlushFile flushes pending writes on close(2), per spec.md §4.6.8.
func (fs *FileSystem) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	if _, ok := fs.lookupSpecialHandle(op.Handle); ok {
		return nil
	}
	h, ok := fs.lookupFileHandle(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	return fs.handles.Flush(ctx, h, uint64(op.Inode))
}

// SyncFile honors fsync(2)/fdatasync(2), per spec.md §4.6.8.
func (fs *FileSystem) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	if _, ok := fs.lookupSpecialHandle(op.Handle); ok {
		return nil
	}
	h, ok := fs.lookupFileHandle(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	return fs.handles.Fsync(ctx, h, uint64(op.Inode))
}

// ReleaseFileHandle disposes of a handle, delivering it to the coordinator's
// delayed-release machinery (spec.md §4.6.9) for regular files, or running
// the special-file's own release hook (e.g. .stats' reset-on-write).
func (fs *FileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	if sh, ok := fs.lookupSpecialHandle(op.Handle); ok {
		sh.Release()
		fs.mu.Lock()
		delete(fs.specialHandles, op.Handle)
		delete(fs.specialHandleInode, op.Handle)
		fs.mu.Unlock()
		return nil
	}

	h, ok := fs.lookupFileHandle(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	inode, _ := fs.lookupFileHandleInode(op.Handle)
	fs.mu.Lock()
	delete(fs.fileHandleByID, op.Handle)
	delete(fs.fileHandleInode, op.Handle)
	fs.mu.Unlock()
	return fs.handles.Release(ctx, h, inode)
}
