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

	"github.com/distfs/mfsclient/internal/master"
	"github.com/distfs/mfsclient/internal/specialfs"
	"github.com/jacobsa/fuse/fuseops"
)

// LookUpInode resolves (parent, name) to a child inode and its attributes,
// per spec.md §4.8: reject oversize names, short-circuit the seven special
// inodes at the root, then consult dircache and the negative-entry cache
// (C1) before issuing a master RPC. The FD cache (C3) is consulted by the
// open path (see fileops.go), not by name resolution.
func (fs *FileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	if err := rejectOversizeName(op.Name); err != nil {
		return err
	}

	parent := uint64(op.Parent)

	if parent == uint64(fuseops.RootInodeID) {
		if inode, ok := specialNames[op.Name]; ok {
			op.Entry.Child = fuseops.InodeID(inode)
			op.Entry.Attributes = specialAttributes(inode)
			return nil
		}
	}

	if e, ok := fs.dc.get(parent, op.Name); ok {
		op.Entry.Child = fuseops.InodeID(e.inode)
		op.Entry.Attributes = toInodeAttributes(e.attr)
		return nil
	}

	if fs.neg.Search(parent, op.Name) {
		return syscall.ENOENT
	}

	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	reply, err := fs.master.Lookup(ctx, parent, op.Name, caller)
	if err != nil {
		if fs.neg.Enabled() {
			fs.neg.Insert(parent, op.Name)
		}
		return err
	}

	fs.neg.Remove(parent, op.Name)
	fs.dc.put(parent, op.Name, reply.Inode, reply.Attr)

	op.Entry.Child = fuseops.InodeID(reply.Inode)
	op.Entry.Attributes = toInodeAttributes(reply.Attr)
	if reply.HasChunkData {
		fs.fdCache.Insert(reply.Inode, op.Uid, op.Gid, int32(op.Pid), reply.Attr, reply.LookupFlags, reply.ChunkData)
	}
	return nil
}

// GetInodeAttributes serves a getattr, going straight to the master unless
// the special-file short circuit applies.
func (fs *FileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	inode := uint64(op.Inode)
	if specialfs.IsSpecial(inode) {
		op.Attributes = specialAttributes(inode)
		return nil
	}

	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	a, err := fs.master.GetAttr(ctx, inode, caller)
	if err != nil {
		return err
	}
	op.Attributes = toInodeAttributes(a)
	return nil
}

// SetInodeAttributes forwards a setattr (chmod/chown/truncate/utimes) to the
// master, translating the subset of fuseops fields the kernel populates into
// master.SetAttrRequest.
func (fs *FileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	inode := uint64(op.Inode)
	if specialfs.IsSpecial(inode) {
		op.Attributes = specialAttributes(inode)
		return nil
	}

	req := master.SetAttrRequest{
		Size:  op.Size,
		Atime: op.Atime,
		Mtime: op.Mtime,
	}
	if op.Mode != nil {
		m := uint32(*op.Mode)
		req.Mode = &m
	}

	caller, release := fs.callerOf(op.Uid, op.Gid, int32(op.Pid))
	defer release()

	a, err := fs.master.SetAttr(ctx, inode, req, caller)
	if err != nil {
		return err
	}
	fs.fdCache.Invalidate(inode)
	op.Attributes = toInodeAttributes(a)
	return nil
}

// ForgetInode drops this inode's FD-cache (C3) entries; dircache entries
// naming it are left to expire on their own TTL. The
// coordinator table (C6) tracks its own handle lifetimes independently of
// the kernel's lookup-count bookkeeping.
func (fs *FileSystem) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	fs.fdCache.Invalidate(uint64(op.Inode))
	return nil
}
