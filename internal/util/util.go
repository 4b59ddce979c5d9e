// Copyright 2023 Google Inc. All Rights Reserved.
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

package util

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// MFSCLIENT_PARENT_PROCESS_DIR, when set, is used in place of the current
// working directory to resolve relative mount-option paths (mount point,
// config file, log file, etc.) because a daemonized mount runs with a
// working directory that no longer matches what the invoking shell saw.
const MFSCLIENT_PARENT_PROCESS_DIR = "MFSCLIENT_PARENT_PROCESS_DIR"

// GetResolvedPath resolves filePath to an absolute path:
//   - "" stays "".
//   - a path already absolute is returned unchanged.
//   - "~/..." is resolved against the user's home directory regardless of
//     MFSCLIENT_PARENT_PROCESS_DIR.
//   - any other relative path is resolved against
//     MFSCLIENT_PARENT_PROCESS_DIR if set, else the current working directory.
func GetResolvedPath(filePath string) (string, error) {
	if filePath == "" {
		return "", nil
	}

	if strings.HasPrefix(filePath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(filePath, "~/")), nil
	}

	if filepath.IsAbs(filePath) {
		return filePath, nil
	}

	base := os.Getenv(MFSCLIENT_PARENT_PROCESS_DIR)
	if base == "" {
		var err error
		base, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}

	return filepath.Join(base, filePath), nil
}

// Stringify marshals v to a compact JSON string for use in log lines,
// returning "" if v cannot be marshalled.
func Stringify(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsolateContextFromParentContext returns a context carrying no values or
// cancellation from parent, but which a caller can still cancel directly.
// fuse requests are associated with a context that jacobsa/fuse cancels the
// moment it stops waiting for a reply, and background work started from a
// request handler can use this to outlive that cancellation. No code in this
// module calls it at present.
func IsolateContextFromParentContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}
