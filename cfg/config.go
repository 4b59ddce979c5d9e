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

package cfg

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully rationalized, validated configuration for a mount.
// It is assembled by binding cobra/pflag flags into viper, decoding viper's
// merged view (flags, then config file, then defaults) into this struct via
// mapstructure, then running Rationalize and ValidateConfig over the result.
type Config struct {
	AppName string `yaml:"app-name"`

	// FullPermissions, when true, resolves the full supplementary-group
	// list for every permission-sensitive RPC (via the groups cache, C5)
	// instead of checking only the caller's primary gid.
	FullPermissions bool `yaml:"full-permissions"`

	Debug DebugConfig `yaml:"debug"`

	Caches CachesConfig `yaml:"caches"`

	Handles HandlesConfig `yaml:"handles"`

	ToolProxy ToolProxyConfig `yaml:"tool-proxy"`

	Logging LoggingConfig `yaml:"logging"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

// CachesConfig holds the tunables for the five read-side caches (C1-C5).
type CachesConfig struct {
	// NegativeEntryTtl is how long a failed lookup is remembered as absent.
	// Zero disables the negative-entry cache entirely.
	NegativeEntryTtl time.Duration `yaml:"negative-entry-ttl"`

	// ChunkLocationBuckets sizes the two hash tables backing the
	// chunk-location cache (by-inode and by-(inode,chunk-index)).
	ChunkLocationBuckets int `yaml:"chunk-location-buckets"`

	// FdCacheTtl is defaulted and clamped here but not read by the FD cache
	// (C3), which keeps a lookup/open state for a fixed 1s for reuse by a
	// subsequent open of the same (inode,uid,gid,pid).
	FdCacheTtl time.Duration `yaml:"fd-cache-ttl"`

	// DirCacheTtl is how long the dispatcher's positive name->inode cache
	// remembers a successful lookup, consulted ahead of the FD cache (C3)
	// and the negative-entry cache (C1).
	DirCacheTtl time.Duration `yaml:"dir-cache-ttl"`

	// GroupsTtl is how long a resolved supplementary-groups list is cached
	// per pid.
	GroupsTtl time.Duration `yaml:"groups-ttl"`

	// GroupsReaperInterval is validated here but not read by the groups
	// cache (C5), whose reaper wakes on a fixed 10ms period.
	GroupsReaperInterval time.Duration `yaml:"groups-reaper-interval"`

	// GroupsReaperBucketsPerSweep is validated here but not read by the
	// groups cache, whose reaper walks a fixed 16 buckets per wakeup.
	GroupsReaperBucketsPerSweep int `yaml:"groups-reaper-buckets-per-sweep"`
}

// HandlesConfig holds the tunables for the per-open-file coordinator (C6).
type HandlesConfig struct {
	// FsyncBeforeCloseMinTime is passed to the coordinator's handle.Config,
	// but Flush and Release do not consult it: every close runs a full
	// flush regardless of how long the handle was open.
	FsyncBeforeCloseMinTime time.Duration `yaml:"fsync-before-close-min-time"`

	// DelayedReleaseEnabled, when true, defers freeing a released handle's
	// slot until it has been idle for DelayedReleaseGrace with no I/O in
	// flight. Writes are still flushed at release, and a later open always
	// gets a new handle.
	DelayedReleaseEnabled bool `yaml:"delayed-release-enabled"`

	DelayedReleaseGrace time.Duration `yaml:"delayed-release-grace"`

	DelayedReleasePollInterval time.Duration `yaml:"delayed-release-poll-interval"`

	// LockInterruptInterval is the period at which a blocked POSIX/flock
	// lock request is re-signaled so it notices an interrupted fuse
	// request promptly.
	LockInterruptInterval time.Duration `yaml:"lock-interrupt-interval"`
}

// ToolProxyConfig controls the loopback listener that in-mount tools
// (snapshot, rewrite chunk, etc.) register with over TCP (C7).
type ToolProxyConfig struct {
	ListenAddress string `yaml:"listen-address"`

	KeepAliveInterval time.Duration `yaml:"keep-alive-interval"`

	SocketTimeout time.Duration `yaml:"socket-timeout"`

	TotalTimeout time.Duration `yaml:"total-timeout"`
}

type LogRotateLoggingConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`

	FilePath ResolvedPath `yaml:"file-path"`

	Format string `yaml:"format"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "", "The application name of this mount.")
	if err = viper.BindPFlag("app-name", flagSet.Lookup("app-name")); err != nil {
		return err
	}

	flagSet.BoolP("debug_invariants", "", false, "Exit when internal invariants are violated.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug_invariants")); err != nil {
		return err
	}

	flagSet.BoolP("debug_mutex", "", false, "Print debug messages when a mutex is held too long.")
	if err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug_mutex")); err != nil {
		return err
	}

	flagSet.DurationP("negative-entry-ttl", "", DefaultNegativeEntryTTL, "How long a failed lookup is remembered as absent; 0 disables the cache.")
	if err = viper.BindPFlag("caches.negative-entry-ttl", flagSet.Lookup("negative-entry-ttl")); err != nil {
		return err
	}

	flagSet.IntP("chunk-location-buckets", "", DefaultChunkLocationBuckets, "Hash-table bucket count for the chunk-location cache.")
	if err = viper.BindPFlag("caches.chunk-location-buckets", flagSet.Lookup("chunk-location-buckets")); err != nil {
		return err
	}

	flagSet.DurationP("fd-cache-ttl", "", DefaultFDCacheTTL, "How long a released open-state entry survives for reuse.")
	if err = viper.BindPFlag("caches.fd-cache-ttl", flagSet.Lookup("fd-cache-ttl")); err != nil {
		return err
	}

	flagSet.DurationP("dir-cache-ttl", "", DefaultDirCacheTTL, "How long the dispatcher's positive name->inode cache remembers a lookup.")
	if err = viper.BindPFlag("caches.dir-cache-ttl", flagSet.Lookup("dir-cache-ttl")); err != nil {
		return err
	}

	flagSet.BoolP("full-permissions", "", false, "Resolve the full supplementary-group list for every permission-sensitive RPC.")
	if err = viper.BindPFlag("full-permissions", flagSet.Lookup("full-permissions")); err != nil {
		return err
	}

	flagSet.DurationP("groups-ttl", "", DefaultGroupsTTL, "How long a resolved supplementary-groups list is cached per pid.")
	if err = viper.BindPFlag("caches.groups-ttl", flagSet.Lookup("groups-ttl")); err != nil {
		return err
	}

	flagSet.DurationP("groups-reaper-interval", "", DefaultGroupsReaperInterval, "Validated only; the groups-cache reaper uses a fixed 10ms period.")
	if err = viper.BindPFlag("caches.groups-reaper-interval", flagSet.Lookup("groups-reaper-interval")); err != nil {
		return err
	}

	flagSet.IntP("groups-reaper-buckets-per-sweep", "", DefaultGroupsReaperBucketsPerRun, "Validated only; the groups-cache reaper walks a fixed 16 buckets per wakeup.")
	if err = viper.BindPFlag("caches.groups-reaper-buckets-per-sweep", flagSet.Lookup("groups-reaper-buckets-per-sweep")); err != nil {
		return err
	}

	flagSet.DurationP("fsync-before-close-min-time", "", DefaultFsyncBeforeCloseMinTime, "Passed to the handle coordinator, which does not consult it; every close runs a full flush.")
	if err = viper.BindPFlag("handles.fsync-before-close-min-time", flagSet.Lookup("fsync-before-close-min-time")); err != nil {
		return err
	}

	flagSet.BoolP("delayed-release-enabled", "", true, "Defer freeing a released handle until it has been idle for the grace period.")
	if err = viper.BindPFlag("handles.delayed-release-enabled", flagSet.Lookup("delayed-release-enabled")); err != nil {
		return err
	}

	flagSet.DurationP("delayed-release-grace", "", DefaultDelayedReleaseGrace, "How long a delayed-released handle is kept.")
	if err = viper.BindPFlag("handles.delayed-release-grace", flagSet.Lookup("delayed-release-grace")); err != nil {
		return err
	}

	flagSet.DurationP("delayed-release-poll-interval", "", DefaultDelayedReleasePollPeriod, "Poll period of the delayed-release reaper.")
	if err = viper.BindPFlag("handles.delayed-release-poll-interval", flagSet.Lookup("delayed-release-poll-interval")); err != nil {
		return err
	}

	flagSet.DurationP("lock-interrupt-interval", "", DefaultLockInterruptInterval, "Re-signal period for a blocked POSIX/flock lock request.")
	if err = viper.BindPFlag("handles.lock-interrupt-interval", flagSet.Lookup("lock-interrupt-interval")); err != nil {
		return err
	}

	flagSet.StringP("tool-proxy-listen-address", "", "127.0.0.1:0", "Loopback address the tool-proxy listener binds to.")
	if err = viper.BindPFlag("tool-proxy.listen-address", flagSet.Lookup("tool-proxy-listen-address")); err != nil {
		return err
	}

	flagSet.DurationP("tool-proxy-keep-alive-interval", "", DefaultToolProxyKeepAliveInterval, "Keepalive NOP interval for tool-proxy connections.")
	if err = viper.BindPFlag("tool-proxy.keep-alive-interval", flagSet.Lookup("tool-proxy-keep-alive-interval")); err != nil {
		return err
	}

	flagSet.DurationP("tool-proxy-socket-timeout", "", DefaultToolProxySocketTimeout, "Read/write timeout on a single tool-proxy socket operation.")
	if err = viper.BindPFlag("tool-proxy.socket-timeout", flagSet.Lookup("tool-proxy-socket-timeout")); err != nil {
		return err
	}

	flagSet.DurationP("tool-proxy-total-timeout", "", DefaultToolProxyTotalTimeout, "Total timeout for a single tool-proxy request/response round trip.")
	if err = viper.BindPFlag("tool-proxy.total-timeout", flagSet.Lookup("tool-proxy-total-timeout")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to the log file; empty logs to stderr.")
	if err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "json", "Log line format: json or text.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	return nil
}
