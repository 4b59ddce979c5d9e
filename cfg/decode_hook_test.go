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
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, input map[string]any, out any) {
	t.Helper()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     out,
	})
	require.NoError(t, err)
	require.NoError(t, decoder.Decode(input))
}

func TestDecodeHookParsesOctal(t *testing.T) {
	var c struct {
		Mode Octal
	}
	decode(t, map[string]any{"mode": "755"}, &c)
	require.EqualValues(t, 0755, c.Mode)
}

func TestDecodeHookParsesLogSeverity(t *testing.T) {
	var c struct {
		Severity LogSeverity
	}
	decode(t, map[string]any{"severity": "debug"}, &c)
	require.Equal(t, DebugLogSeverity, c.Severity)
}

func TestDecodeHookParsesResolvedPath(t *testing.T) {
	var c struct {
		Path ResolvedPath
	}
	decode(t, map[string]any{"path": "/var/dir/x.log"}, &c)
	require.Equal(t, ResolvedPath("/var/dir/x.log"), c.Path)
}

func TestDecodeHookParsesDuration(t *testing.T) {
	var c struct {
		Ttl time.Duration
	}
	decode(t, map[string]any{"ttl": "1500ms"}, &c)
	require.Equal(t, 1500*time.Millisecond, c.Ttl)
}
