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

import "runtime"

// DefaultGroupsResolverWorkers bounds the number of goroutines the groups
// cache uses to resolve cache misses concurrently, scaled to the machine
// regardless of how many mount options were passed.
func DefaultGroupsResolverWorkers() int {
	return max(4, 2*runtime.NumCPU())
}

// IsToolProxyEnabled reports whether mountConfig names a tool-proxy (C7)
// listen address. ValidateConfig rejects an empty address, so a validated
// config always reports true; cmd/mount.go starts the listener without
// consulting this.
func IsToolProxyEnabled(mountConfig *Config) bool {
	return mountConfig.ToolProxy.ListenAddress != ""
}
