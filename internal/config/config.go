// Copyright 2025 Google LLC
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

// Package config holds the small set of pre-cfg, legacy-shaped types that
// internal/logger still accepts for rotation settings. The bulk of runtime
// configuration lives in the cfg package; this package only carries the
// log-rotation knobs that predate it.
package config

// Logging severities, from least to most severe (OFF disables logging).
const (
	TRACE   string = "TRACE"
	DEBUG   string = "DEBUG"
	INFO    string = "INFO"
	WARNING string = "WARNING"
	ERROR   string = "ERROR"
	OFF     string = "OFF"
)

// LogRotateConfig controls lumberjack-style file rotation.
type LogRotateConfig struct {
	MaxFileSizeMB   int
	BackupFileCount int
	Compress        bool
}

// DefaultLogRotateConfig matches the mount's historical defaults: 512MB
// files, 10 backups, gzip compression on rotation.
func DefaultLogRotateConfig() LogRotateConfig {
	return LogRotateConfig{
		MaxFileSizeMB:   512,
		BackupFileCount: 10,
		Compress:        true,
	}
}

// LogConfig is the legacy logging configuration block.
type LogConfig struct {
	Severity        string
	File            string
	Format          string
	LogRotateConfig LogRotateConfig
}
