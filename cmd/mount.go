// Copyright 2024 Google LLC
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

package cmd

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/distfs/mfsclient/cfg"
	"github.com/distfs/mfsclient/clock"
	"github.com/distfs/mfsclient/internal/chunkcache"
	"github.com/distfs/mfsclient/internal/config"
	"github.com/distfs/mfsclient/internal/fdcache"
	"github.com/distfs/mfsclient/internal/fs"
	"github.com/distfs/mfsclient/internal/groups"
	"github.com/distfs/mfsclient/internal/handle"
	"github.com/distfs/mfsclient/internal/inodelen"
	"github.com/distfs/mfsclient/internal/logger"
	"github.com/distfs/mfsclient/internal/master"
	"github.com/distfs/mfsclient/internal/metrics"
	"github.com/distfs/mfsclient/internal/negentry"
	"github.com/distfs/mfsclient/internal/specialfs"
	"github.com/distfs/mfsclient/internal/toolproxy"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
)

// newMasterTransport and newChunkMovers are the two extension points this
// mount delegates to the surrounding deployment: the wire protocol to the
// metadata server and the chunk-server read/write data movers are both
// consumed only through the interfaces internal/master and internal/handle
// declare, never implemented inside this module. A real deployment
// overrides these with a build that dials the actual cluster; the
// unconfigured default fails fast with a clear error rather than mounting a
// filesystem that can never complete an RPC.
var (
	newMasterTransport = func(mountConfig *cfg.Config) (master.Transport, error) {
		return nil, fmt.Errorf("no master transport configured for this mount")
	}
	newChunkMovers = func(mountConfig *cfg.Config) (handle.Movers, error) {
		return nil, fmt.Errorf("no chunk data movers configured for this mount")
	}
)

// dentryInvalidatorCell lets the tool-proxy (built before the fuse
// connection exists) reach the connection's entry-invalidation call once
// mountClient has one in hand. The kernel-facing invalidation call lives on
// the live *fuse.Connection handed to a fuseutil.FileSystem's callbacks as
// they run, not on anything returned by fuse.Mount itself, so this mount
// leaves the cell unset and relies on the cache's own TTL plus the
// negative-entry clear already issued after a tool-driven snapshot.
type dentryInvalidatorCell struct {
	mu sync.Mutex
	fn toolproxy.DentryInvalidator
}

func (c *dentryInvalidatorCell) invalidate(parent uint64, name string) {
	c.mu.Lock()
	fn := c.fn
	c.mu.Unlock()
	if fn != nil {
		fn(parent, name)
	}
}

// proxyListenPort extracts the numeric port the tool-proxy listener
// resolved to, for embedding into the masterinfo special inode (spec.md
// §4.7). A malformed address (which Listen never actually returns) reports
// port 0 rather than failing the mount.
func proxyListenPort(addr string) uint16 {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	p, err := strconv.Atoi(portStr)
	if err != nil || p < 0 || p > 65535 {
		return 0
	}
	return uint16(p)
}

// mountClient builds the dispatcher and blocks serving it until unmounted.
func mountClient(mountConfig *cfg.Config, mountPoint string) error {
	if string(mountConfig.Logging.FilePath) != "" {
		legacy := config.LogConfig{
			Severity: string(mountConfig.Logging.Severity),
			File:     string(mountConfig.Logging.FilePath),
			Format:   mountConfig.Logging.Format,
			LogRotateConfig: config.LogRotateConfig{
				MaxFileSizeMB:   mountConfig.Logging.LogRotate.MaxFileSizeMb,
				BackupFileCount: mountConfig.Logging.LogRotate.BackupFileCount,
				Compress:        mountConfig.Logging.LogRotate.Compress,
			},
		}
		if err := logger.InitLogFile(legacy, mountConfig.Logging); err != nil {
			return fmt.Errorf("init log file: %w", err)
		}
	} else {
		logger.SetLogFormat(mountConfig.Logging.Format)
	}

	clk := clock.RealClock{}

	transport, err := newMasterTransport(mountConfig)
	if err != nil {
		return fmt.Errorf("master transport: %w", err)
	}
	masterClient := master.NewClient(transport)

	movers, err := newChunkMovers(mountConfig)
	if err != nil {
		return fmt.Errorf("chunk data movers: %w", err)
	}

	negCache := negentry.New(mountConfig.Caches.NegativeEntryTtl, 0, clk)
	fdCache := fdcache.New(clk)
	inodeLens := inodelen.New()
	chunkCache := chunkcache.New()

	resolver := groups.NewResolver()
	groupsCache := groups.New(mountConfig.Caches.GroupsTtl, clk, resolver)
	groupsCache.Init()

	handles := handle.NewTable(masterClient, movers, fdCache, inodeLens, clk, handle.Config{
		FsyncBeforeCloseMinTime:    mountConfig.Handles.FsyncBeforeCloseMinTime,
		DelayedReleaseEnabled:      mountConfig.Handles.DelayedReleaseEnabled,
		DelayedReleaseGrace:        mountConfig.Handles.DelayedReleaseGrace,
		DelayedReleasePollInterval: mountConfig.Handles.DelayedReleasePollInterval,
		LockInterruptInterval:      mountConfig.Handles.LockInterruptInterval,
	})
	if mountConfig.Handles.DelayedReleaseEnabled {
		handles.StartDelayedRelease()
	}

	var invalidatorCell dentryInvalidatorCell
	proxy := toolproxy.New(toolproxy.Config{
		SocketTimeout:     mountConfig.ToolProxy.SocketTimeout,
		TotalTimeout:      mountConfig.ToolProxy.TotalTimeout,
		KeepAliveInterval: mountConfig.ToolProxy.KeepAliveInterval,
	}, masterClient, invalidatorCell.invalidate, negCache.Clear)

	proxyAddr, err := proxy.Listen(mountConfig.ToolProxy.ListenAddress)
	if err != nil {
		return fmt.Errorf("tool-proxy listen: %w", err)
	}
	logger.Infof("tool-proxy listening at %s", proxyAddr)

	metricsReg := metrics.New(handles, chunkCache)

	special := specialfs.New(specialfs.Config{
		Clock: clk,
		MasterInfo: func() (ip [4]byte, port uint16, version uint32, proxyPort uint16) {
			ip, port, version, _ = masterClient.MasterInfo(context.Background())
			return ip, port, version, proxyListenPort(proxyAddr)
		},
		StatsText: metricsReg.Text,
		ParamsText: func() string {
			return fmt.Sprintf("app-name=%s\nfull-permissions=%t\n", mountConfig.AppName, mountConfig.FullPermissions)
		},
	})

	dispatcher, err := fs.NewFileSystem(mountConfig, fs.Deps{
		Master:     masterClient,
		Neg:        negCache,
		FdCache:    fdCache,
		InodeLens:  inodeLens,
		Groups:     groupsCache,
		ChunkCache: chunkCache,
		Handles:    handles,
		Special:    special,
		Proxy:      proxy,
		Clock:      clk,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	server := fuseutil.NewFileSystemServer(dispatcher)

	mfs, err := fuse.Mount(mountPoint, server, &fuse.MountConfig{
		FSName: mountConfig.AppName,
	})
	if err != nil {
		return fmt.Errorf("fuse.Mount: %w", err)
	}

	logger.Infof("mounted at %s", mountPoint)

	if err := mfs.Join(context.Background()); err != nil {
		return fmt.Errorf("serving connection: %w", err)
	}

	groupsCache.Term()
	return nil
}
