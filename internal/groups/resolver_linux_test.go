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

//go:build linux

package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinuxResolverReadsPid1Groups(t *testing.T) {
	r := NewResolver()
	gids, err := r.Resolve(int32(1), 0)
	assert.NoError(t, err)
	assert.NotEmpty(t, gids)
	assert.Equal(t, uint32(0), gids[0], "primary gid must be pinned at index 0")
}

func TestLinuxResolverFallsBackOnUnreadablePid(t *testing.T) {
	r := NewResolver()
	// PID 0 never has a /proc/0/status file.
	gids, err := r.Resolve(int32(0), 42)
	assert.NoError(t, err)
	assert.Equal(t, []uint32{42}, gids)
}
