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

// Package master is the dispatcher's one collaborator for everything that
// crosses the wire to the metadata master. spec.md §1 deliberately scopes
// the remote master protocol encoder/decoder out of this mount: the core
// only ever calls opaque `master_*` operations. This package IS that opaque
// operation surface — Client exposes the typed calls every other component
// needs (handle.Master, toolproxy.Forwarder, the dispatcher's lookup/
// getattr/mkdir/... family) and defers the actual byte-level request/reply
// codec and socket management to a Transport implementation that is never
// built here.
package master

import (
	"context"
	"time"

	"github.com/distfs/mfsclient/internal/attr"
	"github.com/distfs/mfsclient/internal/errno"
	"github.com/distfs/mfsclient/internal/fdcache"
	"github.com/distfs/mfsclient/internal/handle"
)

// OpenMode mirrors handle.Mode without importing it into the wire-facing
// request types below, so Transport implementations don't need to know
// about the coordinator package.
type OpenMode = handle.Mode

// LockKind mirrors handle.LockKind for the same reason.
type LockKind = handle.LockKind

// LookupReply is what a successful LOOKUP/CreateXxx RPC hands back. ChunkData
// is only populated when the master chose to embed the first chunk's
// location inline (spec.md §8 scenario 1); HasChunkData reports whether it
// did.
type LookupReply struct {
	Inode        uint64
	Attr         attr.Record
	LookupFlags  uint8
	HasChunkData bool
	ChunkData    fdcache.ChunkData
}

// SetAttrRequest carries the subset of inode attributes a setattr call may
// change; nil fields are left untouched.
type SetAttrRequest struct {
	Size  *uint64
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Atime *time.Time
	Mtime *time.Time
}

// DirEntry is one entry of a ReadDir reply.
type DirEntry struct {
	Name  string
	Inode uint64
	Attr  attr.Record
}

// StatFSReply is the master's volume-level usage/capacity snapshot.
type StatFSReply struct {
	TotalSpace uint64
	FreeSpace  uint64
	Inodes     uint64
	FreeInodes uint64
}

// Caller identifies the requesting process for every RPC that needs
// permission evaluation.
type Caller struct {
	UID  uint32
	GID  uint32
	PID  int32
	GIDs []uint32 // supplementary groups, pinned for the RPC's duration (C5)
}

// Transport is the opaque wire boundary spec.md §1 excludes from this
// mount's scope: marshalling requests onto the master's socket protocol,
// matching replies by message id, and reconnecting on session loss. This
// package defines the shape every caller expects from it; no concrete
// network implementation lives in this repository.
type Transport interface {
	Lookup(ctx context.Context, parent uint64, name string, who Caller) (LookupReply, errno.MasterStatus, error)
	GetAttr(ctx context.Context, inode uint64, who Caller) (attr.Record, errno.MasterStatus, error)
	SetAttr(ctx context.Context, inode uint64, req SetAttrRequest, who Caller) (attr.Record, errno.MasterStatus, error)
	MkDir(ctx context.Context, parent uint64, name string, mode uint32, who Caller) (LookupReply, errno.MasterStatus, error)
	CreateFile(ctx context.Context, parent uint64, name string, mode uint32, who Caller) (LookupReply, errno.MasterStatus, error)
	CreateSymlink(ctx context.Context, parent uint64, name, target string, who Caller) (LookupReply, errno.MasterStatus, error)
	ReadSymlink(ctx context.Context, inode uint64) (target string, status errno.MasterStatus, err error)
	Unlink(ctx context.Context, parent uint64, name string, who Caller) (errno.MasterStatus, error)
	RmDir(ctx context.Context, parent uint64, name string, who Caller) (errno.MasterStatus, error)
	Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string, who Caller) (errno.MasterStatus, error)
	ReadDir(ctx context.Context, inode uint64, cont string, who Caller) (entries []DirEntry, nextCont string, status errno.MasterStatus, err error)
	StatFS(ctx context.Context) (StatFSReply, errno.MasterStatus, error)

	GetXattr(ctx context.Context, inode uint64, name string, who Caller) (value []byte, status errno.MasterStatus, err error)
	SetXattr(ctx context.Context, inode uint64, name string, value []byte, who Caller) (errno.MasterStatus, error)
	ListXattr(ctx context.Context, inode uint64, who Caller) (names []string, status errno.MasterStatus, err error)
	RemoveXattr(ctx context.Context, inode uint64, name string, who Caller) (errno.MasterStatus, error)

	OpenCheck(ctx context.Context, inode uint64, mode OpenMode, who Caller) (errno.MasterStatus, error)
	Unlock(ctx context.Context, inode uint64, owner uint64, kind LockKind) (errno.MasterStatus, error)
	SetLk(ctx context.Context, inode uint64, owner uint64, kind LockKind, exclusive, blocking bool, interrupt <-chan struct{}) (errno.MasterStatus, error)

	// Custom forwards an opaque tool-proxy command (C7) through the same
	// session, returning the reply command code and body verbatim.
	Custom(ctx context.Context, cmd uint32, payload []byte) (replyCmd uint32, reply []byte, err error)

	// MasterInfo returns the 10-byte ip:port:version triple broadcast
	// through the masterinfo special inode.
	MasterInfo(ctx context.Context) (ip [4]byte, port uint16, version uint32, err error)
}

// Client adapts a Transport to every collaborator interface the rest of
// this mount expects: handle.Master, toolproxy.Forwarder, and the
// dispatcher's own higher-level vocabulary. It is the only place a
// MasterStatus is translated to a POSIX errno via the fixed table in
// internal/errno.
type Client struct {
	t Transport
}

// NewClient wraps a Transport. Production wiring supplies a real
// network-backed Transport (not implemented here, see the package doc);
// tests supply a fake.
func NewClient(t Transport) *Client { return &Client{t: t} }

func statusErr(op string, status errno.MasterStatus, err error) error {
	if err != nil {
		return errno.NewFatalError(op, err)
	}
	if status == errno.StatusOK {
		return nil
	}
	if errno.IsRetryable(status) {
		return errno.NewTransientError(op, status, nil)
	}
	return errno.ToErrno(status)
}

func (c *Client) Lookup(ctx context.Context, parent uint64, name string, who Caller) (LookupReply, error) {
	reply, status, err := c.t.Lookup(ctx, parent, name, who)
	return reply, statusErr("lookup", status, err)
}

func (c *Client) GetAttr(ctx context.Context, inode uint64, who Caller) (attr.Record, error) {
	a, status, err := c.t.GetAttr(ctx, inode, who)
	return a, statusErr("getattr", status, err)
}

func (c *Client) SetAttr(ctx context.Context, inode uint64, req SetAttrRequest, who Caller) (attr.Record, error) {
	a, status, err := c.t.SetAttr(ctx, inode, req, who)
	return a, statusErr("setattr", status, err)
}

func (c *Client) MkDir(ctx context.Context, parent uint64, name string, mode uint32, who Caller) (LookupReply, error) {
	reply, status, err := c.t.MkDir(ctx, parent, name, mode, who)
	return reply, statusErr("mkdir", status, err)
}

func (c *Client) CreateFile(ctx context.Context, parent uint64, name string, mode uint32, who Caller) (LookupReply, error) {
	reply, status, err := c.t.CreateFile(ctx, parent, name, mode, who)
	return reply, statusErr("create", status, err)
}

func (c *Client) CreateSymlink(ctx context.Context, parent uint64, name, target string, who Caller) (LookupReply, error) {
	reply, status, err := c.t.CreateSymlink(ctx, parent, name, target, who)
	return reply, statusErr("symlink", status, err)
}

func (c *Client) ReadSymlink(ctx context.Context, inode uint64) (string, error) {
	target, status, err := c.t.ReadSymlink(ctx, inode)
	return target, statusErr("readlink", status, err)
}

func (c *Client) Unlink(ctx context.Context, parent uint64, name string, who Caller) error {
	status, err := c.t.Unlink(ctx, parent, name, who)
	return statusErr("unlink", status, err)
}

func (c *Client) RmDir(ctx context.Context, parent uint64, name string, who Caller) error {
	status, err := c.t.RmDir(ctx, parent, name, who)
	return statusErr("rmdir", status, err)
}

func (c *Client) Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string, who Caller) error {
	status, err := c.t.Rename(ctx, oldParent, oldName, newParent, newName, who)
	return statusErr("rename", status, err)
}

func (c *Client) ReadDir(ctx context.Context, inode uint64, cont string, who Caller) ([]DirEntry, string, error) {
	entries, next, status, err := c.t.ReadDir(ctx, inode, cont, who)
	return entries, next, statusErr("readdir", status, err)
}

func (c *Client) StatFS(ctx context.Context) (StatFSReply, error) {
	reply, status, err := c.t.StatFS(ctx)
	return reply, statusErr("statfs", status, err)
}

func (c *Client) GetXattr(ctx context.Context, inode uint64, name string, who Caller) ([]byte, error) {
	v, status, err := c.t.GetXattr(ctx, inode, name, who)
	return v, statusErr("getxattr", status, err)
}

func (c *Client) SetXattr(ctx context.Context, inode uint64, name string, value []byte, who Caller) error {
	status, err := c.t.SetXattr(ctx, inode, name, value, who)
	return statusErr("setxattr", status, err)
}

func (c *Client) ListXattr(ctx context.Context, inode uint64, who Caller) ([]string, error) {
	names, status, err := c.t.ListXattr(ctx, inode, who)
	return names, statusErr("listxattr", status, err)
}

func (c *Client) RemoveXattr(ctx context.Context, inode uint64, name string, who Caller) error {
	status, err := c.t.RemoveXattr(ctx, inode, name, who)
	return statusErr("removexattr", status, err)
}

func (c *Client) MasterInfo(ctx context.Context) (ip [4]byte, port uint16, version uint32, err error) {
	return c.t.MasterInfo(ctx)
}

// --- handle.Master ---

func (c *Client) OpenCheck(ctx context.Context, inode uint64, mode handle.Mode) error {
	status, err := c.t.OpenCheck(ctx, inode, mode, Caller{})
	return statusErr("opencheck", status, err)
}

func (c *Client) Unlock(ctx context.Context, inode uint64, owner handle.LockOwner, kind handle.LockKind) error {
	status, err := c.t.Unlock(ctx, inode, uint64(owner), kind)
	return statusErr("unlock", status, err)
}

func (c *Client) SetLk(ctx context.Context, inode uint64, owner handle.LockOwner, kind handle.LockKind, exclusive, blocking bool, interrupt <-chan struct{}) error {
	status, err := c.t.SetLk(ctx, inode, uint64(owner), kind, exclusive, blocking, interrupt)
	return statusErr("setlk", status, err)
}

// --- toolproxy.Forwarder ---

func (c *Client) Custom(ctx context.Context, cmd uint32, payload []byte) (uint32, []byte, error) {
	return c.t.Custom(ctx, cmd, payload)
}
