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
	"sync/atomic"
	"time"
)

// interruptPinger is the minimal thread spec.md §4.6.8 asks for: while a
// blocking F_SETLKW or BSD flock sits in the master, a signal cancelling
// the driver's wait (delivered here as ctx becoming Done) must not leave
// that call stuck forever. The pinger sends a ping (conceptually
// POSIX_LOCK_CMD_INT or FLOCK_INTERRUPT) every interval until the blocking
// call itself reports completion via stop().
//
// refcnt is shared between the pinger goroutine and the blocking caller
// purely so a caller can tell, after both have called release, whether it
// was the last one out — neither side needs to agree in advance on who
// frees what.
type interruptPinger struct {
	refcnt atomic.Int32
}

func (p *interruptPinger) release() int32 { return p.refcnt.Add(-1) }

// watchBlockingLock spawns the pinger for one blocking lock acquisition. It
// returns a ping channel — the caller threads it through to Master.SetLk as
// the interrupt parameter — and a stop func the caller must invoke exactly
// once when the blocking call returns, cancelled or not.
func (t *Table) watchBlockingLock(ctx context.Context, ping func()) (interrupt <-chan struct{}, stop func()) {
	interval := t.cfg.LockInterruptInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	pinger := &interruptPinger{}
	pinger.refcnt.Store(2) // one ref for this goroutine, one for the caller

	done := make(chan struct{})
	pings := make(chan struct{})

	go func() {
		defer pinger.release()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				select {
				case pings <- struct{}{}:
					ping()
				default:
				}
				return
			case <-t.clk.After(interval):
				select {
				case pings <- struct{}{}:
					ping()
				case <-done:
					return
				}
			}
		}
	}()

	var closeOnce int32
	stop = func() {
		if atomic.CompareAndSwapInt32(&closeOnce, 0, 1) {
			close(done)
		}
		pinger.release()
	}
	return pings, stop
}
