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

//go:build !linux

package groups

// stubResolver is the portability fallback for platforms whose
// process-credential tables (Solaris /proc/<pid>/cred, BSD/macOS
// kern.proc.pid sysctl) have no equivalent exposed by
// golang.org/x/sys/unix in a portable way. It always returns the
// single-element primary-gid list, the same "emergency mode" fallback the
// Linux resolver uses when /proc is unreadable.
type stubResolver struct{}

// NewResolver returns the platform resolver: on non-Linux platforms, the
// primary-gid-only stub.
func NewResolver() Resolver {
	return stubResolver{}
}

func (stubResolver) Resolve(pid int32, gid uint32) ([]uint32, error) {
	return []uint32{gid}, nil
}
