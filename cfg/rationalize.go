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

// Rationalize updates the config fields based on the values of other fields,
// after flag/file decoding and before ValidateConfig runs.
func Rationalize(c *Config) error {
	if c.Debug.LogMutex {
		c.Logging.Severity = TraceLogSeverity
	}

	// A negative TTL has no meaning, so clamp it to zero rather than reject
	// it. Zero disables the negative-entry cache and makes groups-cache
	// entries never expire; the FD cache does not read FdCacheTtl.
	if c.Caches.NegativeEntryTtl < 0 {
		c.Caches.NegativeEntryTtl = 0
	}
	if c.Caches.FdCacheTtl < 0 {
		c.Caches.FdCacheTtl = 0
	}
	if c.Caches.GroupsTtl < 0 {
		c.Caches.GroupsTtl = 0
	}

	if c.Caches.ChunkLocationBuckets <= 0 {
		c.Caches.ChunkLocationBuckets = DefaultChunkLocationBuckets
	}
	if c.Caches.GroupsReaperBucketsPerSweep <= 0 {
		c.Caches.GroupsReaperBucketsPerSweep = DefaultGroupsReaperBucketsPerRun
	}

	if !c.Handles.DelayedReleaseEnabled {
		c.Handles.DelayedReleaseGrace = 0
	}

	return nil
}
