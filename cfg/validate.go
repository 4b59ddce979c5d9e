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
	"fmt"
	"net"
)

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidCachesConfig(c *CachesConfig) error {
	if c.ChunkLocationBuckets <= 0 {
		return fmt.Errorf("chunk-location-buckets must be positive")
	}
	if c.GroupsReaperBucketsPerSweep <= 0 {
		return fmt.Errorf("groups-reaper-buckets-per-sweep must be positive")
	}
	if c.GroupsReaperInterval <= 0 {
		return fmt.Errorf("groups-reaper-interval must be positive")
	}
	return nil
}

func isValidHandlesConfig(c *HandlesConfig) error {
	if c.DelayedReleaseEnabled && c.DelayedReleasePollInterval <= 0 {
		return fmt.Errorf("delayed-release-poll-interval must be positive when delayed release is enabled")
	}
	if c.LockInterruptInterval <= 0 {
		return fmt.Errorf("lock-interrupt-interval must be positive")
	}
	return nil
}

func isValidToolProxyConfig(c *ToolProxyConfig) error {
	if c.ListenAddress == "" {
		return fmt.Errorf("tool-proxy listen-address must not be empty")
	}
	host, _, err := net.SplitHostPort(c.ListenAddress)
	if err != nil {
		return fmt.Errorf("tool-proxy listen-address: %w", err)
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return fmt.Errorf("tool-proxy listen-address must be a loopback address")
	}
	if c.SocketTimeout <= 0 {
		return fmt.Errorf("tool-proxy socket-timeout must be positive")
	}
	if c.TotalTimeout < c.SocketTimeout {
		return fmt.Errorf("tool-proxy total-timeout must be at least socket-timeout")
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	if err := isValidCachesConfig(&config.Caches); err != nil {
		return fmt.Errorf("error parsing caches config: %w", err)
	}

	if err := isValidHandlesConfig(&config.Handles); err != nil {
		return fmt.Errorf("error parsing handles config: %w", err)
	}

	if err := isValidToolProxyConfig(&config.ToolProxy); err != nil {
		return fmt.Errorf("error parsing tool-proxy config: %w", err)
	}

	return nil
}
