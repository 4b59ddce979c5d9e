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

package attr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeAttrFlags(t *testing.T) {
	var r Record
	r[0] = NoACache | DirectMode

	assert.True(t, r.NoACacheFlag())
	assert.True(t, r.DirectModeFlag())
	assert.False(t, r.NoECacheFlag())
	assert.False(t, r.AllowDataCacheFlag())
	assert.False(t, r.NoXAttrFlag())
}

func TestTypeByte(t *testing.T) {
	var r Record
	r[1] = 0x10 // type nibble 1

	assert.Equal(t, uint8(1), r.Type())
}

func TestLengthRoundTrip(t *testing.T) {
	var r Record
	r.SetLength(123456789)

	assert.Equal(t, uint64(123456789), r.Length())
}

func TestZeroRecordHasNoFlags(t *testing.T) {
	var r Record
	assert.False(t, r.NoACacheFlag())
	assert.False(t, r.NoECacheFlag())
	assert.False(t, r.AllowDataCacheFlag())
	assert.False(t, r.DirectModeFlag())
	assert.False(t, r.NoXAttrFlag())
	assert.Equal(t, uint64(0), r.Length())
}

func TestTypeModeRoundTrip(t *testing.T) {
	var r Record
	r.SetTypeMode(TypeDir, 0755)

	assert.Equal(t, TypeDir, r.Type())
	assert.Equal(t, uint16(0755), r.Mode())
}

func TestOwnerAndTimeFieldsRoundTrip(t *testing.T) {
	var r Record
	r.SetUID(1000)
	r.SetGID(1000)
	r.SetATime(100)
	r.SetMTime(200)
	r.SetCTime(300)
	r.SetNLink(2)

	assert.Equal(t, uint32(1000), r.UID())
	assert.Equal(t, uint32(1000), r.GID())
	assert.Equal(t, uint32(100), r.ATime())
	assert.Equal(t, uint32(200), r.MTime())
	assert.Equal(t, uint32(300), r.CTime())
	assert.Equal(t, uint32(2), r.NLink())
}
