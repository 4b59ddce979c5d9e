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
	"syscall"

	"github.com/distfs/mfsclient/internal/aclcodec"
	"github.com/distfs/mfsclient/internal/specialfs"
	"github.com/jacobsa/fuse/fuseops"
)

// aclXattrNames are the two xattr names the kernel's ACL machinery reads and
// writes; their values are the flat aclcodec encoding rather than whatever
// bytes a plain user.* xattr would carry.
const (
	aclAccessXattr  = "system.posix_acl_access"
	aclDefaultXattr = "system.posix_acl_default"
)

// GetXattr serves getxattr(2). Special inodes carry no extended attributes.
func (fs *FileSystem) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) error {
	inode := uint64(op.Inode)
	if specialfs.IsSpecial(inode) {
		return syscall.ENODATA
	}

	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	value, err := fs.master.GetXattr(ctx, inode, op.Name, caller)
	if err != nil {
		return err
	}
	if len(op.Dst) < len(value) {
		return syscall.ERANGE
	}
	op.BytesRead = copy(op.Dst, value)
	return nil
}

// SetXattr serves setxattr(2).
func (fs *FileSystem) SetXattr(ctx context.Context, op *fuseops.SetXattrOp) error {
	inode := uint64(op.Inode)
	if specialfs.IsSpecial(inode) {
		return syscall.EACCES
	}

	if op.Name == aclAccessXattr || op.Name == aclDefaultXattr {
		entries, err := aclcodec.Decode(op.Value)
		if err != nil {
			return syscall.EINVAL
		}
		if aclcodec.NeedsMask(entries) {
			if _, ok := aclcodec.FindMask(entries); !ok {
				return syscall.EINVAL
			}
		}
	}

	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	if err := fs.master.SetXattr(ctx, inode, op.Name, op.Value, caller); err != nil {
		return err
	}
	fs.fdCache.Invalidate(inode)
	return nil
}

// ListXattr serves listxattr(2), packing a NUL-separated name list into
// op.Dst the way the kernel expects.
func (fs *FileSystem) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) error {
	inode := uint64(op.Inode)
	if specialfs.IsSpecial(inode) {
		return nil
	}

	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	names, err := fs.master.ListXattr(ctx, inode, caller)
	if err != nil {
		return err
	}

	var total int
	for _, n := range names {
		total += len(n) + 1
	}
	if len(op.Dst) < total {
		return syscall.ERANGE
	}
	for _, n := range names {
		op.BytesRead += copy(op.Dst[op.BytesRead:], n)
		op.Dst[op.BytesRead] = 0
		op.BytesRead++
	}
	return nil
}

// RemoveXattr serves removexattr(2).
func (fs *FileSystem) RemoveXattr(ctx context.Context, op *fuseops.RemoveXattrOp) error {
	inode := uint64(op.Inode)
	if specialfs.IsSpecial(inode) {
		return syscall.EACCES
	}

	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	if err := fs.master.RemoveXattr(ctx, inode, op.Name, caller); err != nil {
		return err
	}
	fs.fdCache.Invalidate(inode)
	return nil
}

// StatFS reports aggregate volume usage, per spec.md §4.8.
func (fs *FileSystem) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	reply, err := fs.master.StatFS(ctx)
	if err != nil {
		return err
	}
	const blockSize = 4096
	op.BlockSize = blockSize
	op.Blocks = reply.TotalSpace / blockSize
	op.BlocksFree = reply.FreeSpace / blockSize
	op.BlocksAvailable = reply.FreeSpace / blockSize
	op.Inodes = reply.Inodes
	op.InodesFree = reply.FreeInodes
	op.IoSize = blockSize
	return nil
}
