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

package errno

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToErrnoFixedMapping(t *testing.T) {
	testCases := []struct {
		status   MasterStatus
		expected syscall.Errno
	}{
		{StatusQUOTA, syscall.EDQUOT},
		{StatusCHUNKLOST, syscall.ENXIO},
		{StatusNOCHUNKSERVERS, syscall.ENOSPC},
		{StatusNOTSUP, syscall.ENOTSUP},
		{StatusENOENT, syscall.ENOENT},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, ToErrno(tc.status))
	}
}

func TestToErrnoUnknownStatusIsEIO(t *testing.T) {
	assert.Equal(t, syscall.EIO, ToErrno(MasterStatus(9999)))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(StatusLOCKED))
	assert.True(t, IsRetryable(StatusNOCHUNKSERVERS))
	assert.False(t, IsRetryable(StatusENOENT))
}

func TestValidationErrorUnwrapsToErrno(t *testing.T) {
	err := NewValidationError("read", syscall.EINVAL)
	assert.Equal(t, syscall.EINVAL, Errno(err))
	var asErrno syscall.Errno
	assert.True(t, errors.As(err, &asErrno))
}

func TestTransientErrorMapsThroughStatus(t *testing.T) {
	err := NewTransientError("truncate", StatusLOCKED, nil)
	assert.Equal(t, syscall.EAGAIN, Errno(err))
}

func TestFatalErrorAlwaysEIO(t *testing.T) {
	err := NewFatalError("write", errors.New("connection reset"))
	assert.Equal(t, syscall.EIO, Errno(err))
	assert.ErrorContains(t, err, "connection reset")
}

func TestErrnoNilIsZero(t *testing.T) {
	assert.Equal(t, syscall.Errno(0), Errno(nil))
}
