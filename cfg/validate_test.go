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
)

func validConfig() *Config {
	c := &Config{
		Caches:    GetDefaultCachesConfig(),
		Handles:   GetDefaultHandlesConfig(),
		ToolProxy: GetDefaultToolProxyConfig(),
		Logging:   GetDefaultLoggingConfig(),
	}
	return c
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	assert.NoError(t, ValidateConfig(validConfig()))
}

func TestValidateConfigRejectsZeroLogRotateSize(t *testing.T) {
	c := validConfig()
	c.Logging.LogRotate.MaxFileSizeMb = 0

	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsNegativeBackupCount(t *testing.T) {
	c := validConfig()
	c.Logging.LogRotate.BackupFileCount = -1

	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsNonPositiveChunkLocationBuckets(t *testing.T) {
	c := validConfig()
	c.Caches.ChunkLocationBuckets = 0

	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsZeroGroupsReaperInterval(t *testing.T) {
	c := validConfig()
	c.Caches.GroupsReaperInterval = 0

	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsZeroPollIntervalWhenDelayedReleaseEnabled(t *testing.T) {
	c := validConfig()
	c.Handles.DelayedReleaseEnabled = true
	c.Handles.DelayedReleasePollInterval = 0

	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigAllowsZeroPollIntervalWhenDelayedReleaseDisabled(t *testing.T) {
	c := validConfig()
	c.Handles.DelayedReleaseEnabled = false
	c.Handles.DelayedReleasePollInterval = 0

	assert.NoError(t, ValidateConfig(c))
}

func TestValidateConfigRejectsEmptyToolProxyListenAddress(t *testing.T) {
	c := validConfig()
	c.ToolProxy.ListenAddress = ""

	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsTotalTimeoutBelowSocketTimeout(t *testing.T) {
	c := validConfig()
	c.ToolProxy.SocketTimeout = 10 * c.ToolProxy.TotalTimeout

	assert.Error(t, ValidateConfig(c))
}
