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

package handle

import (
	"context"
	"syscall"

	"github.com/distfs/mfsclient/internal/errno"
)

func (t *Table) resolve(h H, inode uint64) (*record, error) {
	r, ok := t.lookup(h)
	if !ok {
		return nil, errno.NewValidationError("handle lookup", syscall.EBADF)
	}
	if r.inode != inode {
		return nil, errno.NewValidationError("handle inode mismatch", syscall.EBADF)
	}
	return r, nil
}

func validateRange(off uint64, size uint32) error {
	if off >= MaxFileSize || off+uint64(size) >= MaxFileSize {
		return errno.NewValidationError("read/write range", syscall.EFBIG)
	}
	return nil
}

// Read implements spec.md §4.6.4.
func (t *Table) Read(ctx context.Context, h H, inode uint64, off uint64, size uint32) ([]byte, error) {
	r, err := t.resolve(h, inode)
	if err != nil {
		return nil, err
	}
	if err := validateRange(off, size); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.mode == ModeWO {
		r.mu.Unlock()
		return nil, errno.NewValidationError("read on write-only handle", syscall.EBADF)
	}
	r.waitOpenInMasterLocked()
	r.acquireReadLocked()
	if r.rdata == nil {
		r.rdata = t.movers.NewReadSession(r.inode, t.inodeLens.GetFleng(r.flenHandle))
	}
	r.lastUse = t.clk.Now()
	r.mu.Unlock()

	if err := t.movers.FlushInodeWrites(ctx, r.inode); err != nil {
		r.mu.Lock()
		r.releaseReadLocked()
		r.mu.Unlock()
		return nil, err
	}
	data, err := r.rdata.Read(ctx, off, size)

	r.mu.Lock()
	r.releaseReadLocked()
	r.mu.Unlock()

	return data, err
}

// Write implements spec.md §4.6.5.
func (t *Table) Write(ctx context.Context, h H, inode uint64, off uint64, data []byte) (int, error) {
	r, err := t.resolve(h, inode)
	if err != nil {
		return 0, err
	}
	if err := validateRange(off, uint32(len(data))); err != nil {
		return 0, err
	}

	r.mu.Lock()
	if r.mode == ModeRO {
		r.mu.Unlock()
		return 0, errno.NewValidationError("write on read-only handle", syscall.EBADF)
	}
	r.waitOpenInMasterLocked()
	r.acquireWriteLocked()
	if r.wdata == nil {
		r.wdata = t.movers.NewWriteSession(r.inode, t.inodeLens.GetFleng(r.flenHandle))
	}
	r.lastUse = t.clk.Now()
	r.mu.Unlock()

	n, err := r.wdata.Write(ctx, off, data)

	if err == nil {
		end := off + uint64(n)
		if end > t.inodeLens.GetFleng(r.flenHandle) {
			t.inodeLens.SetFleng(r.flenHandle, end)
		}
	}

	r.mu.Lock()
	r.releaseWriteLocked()
	r.mu.Unlock()

	if err == nil {
		t.fdCache.Invalidate(r.inode)
	}

	return n, err
}

// flush runs the full write_data_flush + invalidation; unwindLocks
// additionally unwinds every byte-range lock owned by this handle
// (spec.md §4.6.6).
func (t *Table) flush(ctx context.Context, r *record, unwindLocks bool) error {
	r.mu.Lock()
	r.waitOpenInMasterLocked()
	r.acquireWriteLocked()
	wdata := r.wdata
	r.mu.Unlock()

	var err error
	if wdata != nil {
		err = wdata.Flush(ctx)
	}

	r.mu.Lock()
	r.releaseWriteLocked()
	var owners []LockOwner
	if unwindLocks {
		for o := range r.posixOwners {
			owners = append(owners, o)
		}
	}
	r.mu.Unlock()

	t.fdCache.Invalidate(r.inode)

	if unwindLocks {
		for _, o := range owners {
			_ = t.master.Unlock(ctx, r.inode, o, LockPOSIX)
			r.mu.Lock()
			delete(r.posixOwners, o)
			r.mu.Unlock()
		}
	}

	return err
}

// Flush is called by the driver at every handle close, possibly many times
// per process (spec.md §4.6.6).
func (t *Table) Flush(ctx context.Context, h H, inode uint64) error {
	r, err := t.resolve(h, inode)
	if err != nil {
		return err
	}
	return t.flush(ctx, r, true)
}

// Fsync performs only the write-lock + flush + cache invalidation; no lock
// unwinding.
func (t *Table) Fsync(ctx context.Context, h H, inode uint64) error {
	r, err := t.resolve(h, inode)
	if err != nil {
		return err
	}
	return t.flush(ctx, r, false)
}
