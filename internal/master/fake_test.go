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

package master

import (
	"context"

	"github.com/distfs/mfsclient/internal/attr"
	"github.com/distfs/mfsclient/internal/errno"
)

// fakeTransport is a hand-scripted Transport test double. It is not, and is
// not meant to resemble, a real wire client: production wiring supplies its
// own network-backed Transport (see package doc).
type fakeTransport struct {
	lookupReply LookupReply
	lookupErr   error
	lookupStat  errno.MasterStatus

	getAttr    attr.Record
	getAttrErr error
	getAttrSt  errno.MasterStatus

	unlinkSt errno.MasterStatus

	openCheckSt  errno.MasterStatus
	openCheckErr error

	customReplyCmd uint32
	customReply    []byte
	customErr      error

	calls []string
}

func (f *fakeTransport) Lookup(ctx context.Context, parent uint64, name string, who Caller) (LookupReply, errno.MasterStatus, error) {
	f.calls = append(f.calls, "Lookup")
	return f.lookupReply, f.lookupStat, f.lookupErr
}

func (f *fakeTransport) GetAttr(ctx context.Context, inode uint64, who Caller) (attr.Record, errno.MasterStatus, error) {
	f.calls = append(f.calls, "GetAttr")
	return f.getAttr, f.getAttrSt, f.getAttrErr
}

func (f *fakeTransport) SetAttr(ctx context.Context, inode uint64, req SetAttrRequest, who Caller) (attr.Record, errno.MasterStatus, error) {
	return attr.Record{}, errno.StatusOK, nil
}

func (f *fakeTransport) MkDir(ctx context.Context, parent uint64, name string, mode uint32, who Caller) (LookupReply, errno.MasterStatus, error) {
	return LookupReply{}, errno.StatusOK, nil
}

func (f *fakeTransport) CreateFile(ctx context.Context, parent uint64, name string, mode uint32, who Caller) (LookupReply, errno.MasterStatus, error) {
	return LookupReply{}, errno.StatusOK, nil
}

func (f *fakeTransport) CreateSymlink(ctx context.Context, parent uint64, name, target string, who Caller) (LookupReply, errno.MasterStatus, error) {
	return LookupReply{}, errno.StatusOK, nil
}

func (f *fakeTransport) ReadSymlink(ctx context.Context, inode uint64) (string, errno.MasterStatus, error) {
	return "", errno.StatusOK, nil
}

func (f *fakeTransport) Unlink(ctx context.Context, parent uint64, name string, who Caller) (errno.MasterStatus, error) {
	f.calls = append(f.calls, "Unlink")
	return f.unlinkSt, nil
}

func (f *fakeTransport) RmDir(ctx context.Context, parent uint64, name string, who Caller) (errno.MasterStatus, error) {
	return errno.StatusOK, nil
}

func (f *fakeTransport) Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string, who Caller) (errno.MasterStatus, error) {
	return errno.StatusOK, nil
}

func (f *fakeTransport) ReadDir(ctx context.Context, inode uint64, cont string, who Caller) ([]DirEntry, string, errno.MasterStatus, error) {
	return nil, "", errno.StatusOK, nil
}

func (f *fakeTransport) StatFS(ctx context.Context) (StatFSReply, errno.MasterStatus, error) {
	return StatFSReply{}, errno.StatusOK, nil
}

func (f *fakeTransport) GetXattr(ctx context.Context, inode uint64, name string, who Caller) ([]byte, errno.MasterStatus, error) {
	return nil, errno.StatusOK, nil
}

func (f *fakeTransport) SetXattr(ctx context.Context, inode uint64, name string, value []byte, who Caller) (errno.MasterStatus, error) {
	return errno.StatusOK, nil
}

func (f *fakeTransport) ListXattr(ctx context.Context, inode uint64, who Caller) ([]string, errno.MasterStatus, error) {
	return nil, errno.StatusOK, nil
}

func (f *fakeTransport) RemoveXattr(ctx context.Context, inode uint64, name string, who Caller) (errno.MasterStatus, error) {
	return errno.StatusOK, nil
}

func (f *fakeTransport) OpenCheck(ctx context.Context, inode uint64, mode OpenMode, who Caller) (errno.MasterStatus, error) {
	f.calls = append(f.calls, "OpenCheck")
	return f.openCheckSt, f.openCheckErr
}

func (f *fakeTransport) Unlock(ctx context.Context, inode uint64, owner uint64, kind LockKind) (errno.MasterStatus, error) {
	return errno.StatusOK, nil
}

func (f *fakeTransport) SetLk(ctx context.Context, inode uint64, owner uint64, kind LockKind, exclusive, blocking bool, interrupt <-chan struct{}) (errno.MasterStatus, error) {
	return errno.StatusOK, nil
}

func (f *fakeTransport) Custom(ctx context.Context, cmd uint32, payload []byte) (uint32, []byte, error) {
	f.calls = append(f.calls, "Custom")
	return f.customReplyCmd, f.customReply, f.customErr
}

func (f *fakeTransport) MasterInfo(ctx context.Context) (ip [4]byte, port uint16, version uint32, err error) {
	return [4]byte{127, 0, 0, 1}, 9421, 0x010708, nil
}
