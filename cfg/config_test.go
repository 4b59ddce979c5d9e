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

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsRegistersEveryFlagWithoutError(t *testing.T) {
	viper.Reset()
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)

	require.NoError(t, BindFlags(flagSet))

	for _, name := range []string{
		"app-name", "debug_invariants", "debug_mutex",
		"negative-entry-ttl", "chunk-location-buckets", "fd-cache-ttl",
		"dir-cache-ttl", "full-permissions",
		"groups-ttl", "groups-reaper-interval", "groups-reaper-buckets-per-sweep",
		"fsync-before-close-min-time", "delayed-release-enabled",
		"delayed-release-grace", "delayed-release-poll-interval", "lock-interrupt-interval",
		"tool-proxy-listen-address", "tool-proxy-keep-alive-interval",
		"tool-proxy-socket-timeout", "tool-proxy-total-timeout",
		"log-severity", "log-file", "log-format",
	} {
		assert.NotNil(t, flagSet.Lookup(name), "expected flag %q to be registered", name)
	}
}

func TestBindFlagsDefaultsSurviveViperUnmarshal(t *testing.T) {
	viper.Reset()
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(flagSet))

	var c Config
	require.NoError(t, viper.Unmarshal(&c, viper.DecodeHook(DecodeHook()), func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }))

	assert.Equal(t, DefaultNegativeEntryTTL, c.Caches.NegativeEntryTtl)
	assert.Equal(t, DefaultChunkLocationBuckets, c.Caches.ChunkLocationBuckets)
	assert.Equal(t, "127.0.0.1:0", c.ToolProxy.ListenAddress)
	assert.True(t, c.Handles.DelayedReleaseEnabled)
}
