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

// Package metrics exports a handful of prometheus gauges describing the
// mount's live cache state, rendered as text for the ".stats" special inode
// (spec.md §4.7) rather than served over its own HTTP listener, since this
// mount has no separate metrics port to bind (spec.md §1 scopes an
// observability stack out of this core).
package metrics

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// handleTable and chunkCounter are the narrow slices of the handle table
// and chunk-location cache this package needs, kept as interfaces so tests
// can supply fakes without constructing the real collaborators.
type handleTable interface {
	OpenHandleCount() int
}

type chunkCounter interface {
	RecordCount() int
}

// Registry wraps a private prometheus.Registry with the gauges this mount
// exports; it is never registered against prometheus's global default
// registry, so more than one can coexist in a test binary.
type Registry struct {
	reg *prometheus.Registry
}

// New builds a Registry reporting live state from handles and chunkCache.
// Either may be nil, in which case its gauge always reports 0.
func New(handles handleTable, chunkCache chunkCounter) *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "mfsclient",
		Subsystem: "handle",
		Name:      "open_count",
		Help:      "Number of file handles currently open (C6).",
	}, func() float64 {
		if handles == nil {
			return 0
		}
		return float64(handles.OpenHandleCount())
	}))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "mfsclient",
		Subsystem: "chunkcache",
		Name:      "record_count",
		Help:      "Number of chunk-location records currently cached (C2).",
	}, func() float64 {
		if chunkCache == nil {
			return 0
		}
		return float64(chunkCache.RecordCount())
	}))

	return &Registry{reg: reg}
}

// Text renders every registered metric in the standard Prometheus exposition
// format, for embedding in the ".stats" special file's contents.
func (r *Registry) Text() string {
	families, err := r.reg.Gather()
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return buf.String()
		}
	}
	return buf.String()
}
