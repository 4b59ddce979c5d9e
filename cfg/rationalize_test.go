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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRationalizeBumpsSeverityToTraceWhenLogMutexEnabled(t *testing.T) {
	c := &Config{Debug: DebugConfig{LogMutex: true}, Logging: LoggingConfig{Severity: InfoLogSeverity}}

	require.NoError(t, Rationalize(c))

	assert.Equal(t, TraceLogSeverity, c.Logging.Severity)
}

func TestRationalizeLeavesSeverityAloneWhenLogMutexDisabled(t *testing.T) {
	c := &Config{Logging: LoggingConfig{Severity: WarningLogSeverity}}

	require.NoError(t, Rationalize(c))

	assert.Equal(t, WarningLogSeverity, c.Logging.Severity)
}

func TestRationalizeClampsNegativeTtlsToZero(t *testing.T) {
	c := &Config{Caches: CachesConfig{NegativeEntryTtl: -1, FdCacheTtl: -1, GroupsTtl: -1}}

	require.NoError(t, Rationalize(c))

	assert.Zero(t, c.Caches.NegativeEntryTtl)
	assert.Zero(t, c.Caches.FdCacheTtl)
	assert.Zero(t, c.Caches.GroupsTtl)
}

func TestRationalizeFillsInUnsetBucketCounts(t *testing.T) {
	c := &Config{}

	require.NoError(t, Rationalize(c))

	assert.Equal(t, DefaultChunkLocationBuckets, c.Caches.ChunkLocationBuckets)
	assert.Equal(t, DefaultGroupsReaperBucketsPerRun, c.Caches.GroupsReaperBucketsPerSweep)
}

func TestRationalizeZeroesGraceWhenDelayedReleaseDisabled(t *testing.T) {
	c := &Config{Handles: HandlesConfig{DelayedReleaseEnabled: false, DelayedReleaseGrace: DefaultDelayedReleaseGrace}}

	require.NoError(t, Rationalize(c))

	assert.Zero(t, c.Handles.DelayedReleaseGrace)
}
