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
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// procResolver reads supplementary groups from /proc/<pid>/status, the
// Linux strategy named in spec.md §4.5.
type procResolver struct{}

// NewResolver returns the platform resolver: on Linux, a real /proc/<pid>/
// status reader.
func NewResolver() Resolver {
	return procResolver{}
}

// Resolve returns the supplementary group list for pid with the primary gid
// pinned at index 0 and duplicates of it removed, matching
// original_source/mfsclient/getgroups.c's Linux branch. On any failure it
// falls back to the single-element list {gid}, per spec.md §4.5.
func (procResolver) Resolve(pid int32, gid uint32) ([]uint32, error) {
	path := fmt.Sprintf("/proc/%d/status", pid)

	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return []uint32{gid}, nil
	}
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Groups:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "Groups:"))
		out := make([]uint32, 1, len(fields)+1)
		out[0] = gid
		for _, f := range fields {
			g, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				continue
			}
			if uint32(g) == gid {
				continue
			}
			out = append(out, uint32(g))
		}
		return out, nil
	}
	return []uint32{gid}, nil
}
