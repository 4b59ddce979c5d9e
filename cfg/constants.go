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

import "time"

const (
	// Logging-level constants.

	TRACE   string = "TRACE"
	DEBUG   string = "DEBUG"
	INFO    string = "INFO"
	WARNING string = "WARNING"
	ERROR   string = "ERROR"
	OFF     string = "OFF"
)

const (
	// C1 negative-entry cache (spec.md §4.1).
	DefaultNegativeEntryTTL = 1 * time.Second

	// C2 chunk-location cache (spec.md §4.2).
	DefaultChunkLocationBuckets = 4093

	// C3 FD cache; internal/fdcache uses its own fixed 1s TTL and does not
	// read this value.
	DefaultFDCacheTTL = 1 * time.Second

	// Dispatcher positive name->inode cache consulted ahead of C3/C1
	// (spec.md §4.8 step 3).
	DefaultDirCacheTTL = 1 * time.Second

	// C5 groups cache (spec.md §4.5).
	DefaultGroupsTTL                 = 300 * time.Second
	DefaultGroupsReaperInterval      = 10 * time.Millisecond
	DefaultGroupsReaperBucketsPerRun = 16

	// C6 per-open-file coordinator (spec.md §4.6).
	DefaultFsyncBeforeCloseMinTime  = 1500 * time.Millisecond
	DefaultDelayedReleaseGrace      = 10 * time.Second
	DefaultDelayedReleasePollPeriod = 1 * time.Second
	DefaultLockInterruptInterval    = 100 * time.Millisecond

	// C7 tool proxy (spec.md §4.7, §6).
	DefaultToolProxyKeepAliveInterval = 5 * time.Second
	DefaultToolProxySocketTimeout     = 10 * time.Second
	DefaultToolProxyTotalTimeout      = 30 * time.Second
)
