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

package toolproxy

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/distfs/mfsclient/internal/logger"
)

// auxBufferSize bounds a non-register frame's payload, matching
// masterproxy.c's AUXBUFFSIZE.
const auxBufferSize = 65536

// Config tunes socket timeouts and keep-alive cadence, sourced from
// cfg.ToolProxyConfig.
type Config struct {
	SocketTimeout     time.Duration
	TotalTimeout      time.Duration
	KeepAliveInterval time.Duration
	MaxFrameSize      uint32
}

// Proxy is the tool-proxy listener (C7): accept loop plus the per-
// connection server/keep-alive goroutine pair described in spec.md §4.7.
type Proxy struct {
	cfg         Config
	forwarder   Forwarder
	invalidator DentryInvalidator
	clearNeg    func()

	listener net.Listener
	wg       sync.WaitGroup

	mu   sync.Mutex
	done bool
}

// New builds a Proxy. forwarder issues forwarded commands through the main
// master session; invalidator requests a kernel dentry invalidation after a
// snapshot; clearNeg clears the negative-entry cache (C1) after a
// successful snapshot, per spec.md §8 scenario 5.
func New(cfg Config, forwarder Forwarder, invalidator DentryInvalidator, clearNeg func()) *Proxy {
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = auxBufferSize
	}
	return &Proxy{cfg: cfg, forwarder: forwarder, invalidator: invalidator, clearNeg: clearNeg}
}

// Listen opens the loopback listener on addr (typically from
// cfg.ToolProxyConfig.ListenAddress, e.g. "127.0.0.1:0" to pick an
// ephemeral port) and starts the accept loop in the background. The
// resolved address is returned so it can be broadcast through the
// masterinfo special inode.
func (p *Proxy) Listen(addr string) (string, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	p.listener = l

	p.wg.Add(1)
	go p.acceptLoop()

	return l.Addr().String(), nil
}

// Close stops accepting new connections. Connections already accepted are
// left to drain on their own, per spec.md §4.7's teardown note ("live
// connection threads are detached and drain on their own").
func (p *Proxy) Close() error {
	p.mu.Lock()
	p.done = true
	p.mu.Unlock()

	if p.listener == nil {
		return nil
	}
	err := p.listener.Close()
	p.wg.Wait()
	return err
}

func (p *Proxy) acceptLoop() {
	defer p.wg.Done()
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			p.mu.Lock()
			stopping := p.done
			p.mu.Unlock()
			if stopping {
				return
			}
			logger.Warnf("toolproxy: accept failed: %v", err)
			return
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		go p.handleConn(conn)
	}
}

func (p *Proxy) handleConn(conn net.Conn) {
	id := uuid.NewString()
	h := &handler{
		forwarder:   p.forwarder,
		invalidator: p.invalidator,
		clearNeg:    p.clearNeg,
		cfg:         p.cfg,
		id:          id,
	}
	cs := newConnState()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.serve(conn, cs)
	}()
	go func() {
		defer wg.Done()
		h.keepAlive(conn, cs)
	}()
	wg.Wait()
}
