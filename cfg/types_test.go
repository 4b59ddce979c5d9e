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

package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOctalUnmarshalText(t *testing.T) {
	var o Octal
	require.NoError(t, o.UnmarshalText([]byte("755")))
	assert.EqualValues(t, 0755, o)
}

func TestOctalUnmarshalTextInvalid(t *testing.T) {
	var o Octal
	assert.Error(t, o.UnmarshalText([]byte("not-octal")))
}

func TestOctalMarshalText(t *testing.T) {
	o := Octal(0644)
	b, err := o.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "644", string(b))
}

func TestLogSeverityUnmarshalText(t *testing.T) {
	testCases := []struct {
		input    string
		expected LogSeverity
	}{
		{"trace", TraceLogSeverity},
		{"DEBUG", DebugLogSeverity},
		{"Info", InfoLogSeverity},
		{"WARNING", WarningLogSeverity},
		{"error", ErrorLogSeverity},
		{"OFF", OffLogSeverity},
	}

	for _, tc := range testCases {
		var l LogSeverity
		require.NoError(t, l.UnmarshalText([]byte(tc.input)))
		assert.Equal(t, tc.expected, l)
	}
}

func TestLogSeverityUnmarshalTextInvalid(t *testing.T) {
	var l LogSeverity
	assert.Error(t, l.UnmarshalText([]byte("VERBOSE")))
}

func TestLogSeverityRank(t *testing.T) {
	assert.Less(t, TraceLogSeverity.Rank(), DebugLogSeverity.Rank())
	assert.Less(t, DebugLogSeverity.Rank(), InfoLogSeverity.Rank())
	assert.Less(t, InfoLogSeverity.Rank(), WarningLogSeverity.Rank())
	assert.Less(t, WarningLogSeverity.Rank(), ErrorLogSeverity.Rank())
	assert.Less(t, ErrorLogSeverity.Rank(), OffLogSeverity.Rank())
}

func TestLogSeverityRankUnknown(t *testing.T) {
	assert.Equal(t, -1, LogSeverity("bogus").Rank())
}

func TestResolvedPathUnmarshalText(t *testing.T) {
	var p ResolvedPath
	require.NoError(t, p.UnmarshalText([]byte("/var/dir/x.log")))
	assert.Equal(t, ResolvedPath("/var/dir/x.log"), p)
}
